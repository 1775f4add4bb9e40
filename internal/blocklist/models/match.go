package models

import (
	"fmt"
	"strings"

	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
)

// TrafficRecord is one bulk-sender traffic row, owned by the ingestion side.
type TrafficRecord struct {
	SenderName   string `json:"senderName" bson:"senderName"`
	ProviderID   string `json:"providerId" bson:"providerId"`
	ProviderName string `json:"providerName" bson:"providerName"`
}

// MatchReport describes the matches found for one entry in a run.
type MatchReport struct {
	Entry                 *Entry          `json:"entry"`
	MatchingRecords       []TrafficRecord `json:"matchingRecords"`
	DistinctProviderNames []string        `json:"distinctProviderNames"`
}

// NewMatchReport builds a report and collects provider names in first-seen order.
func NewMatchReport(entry *Entry, records []TrafficRecord) MatchReport {
	seen := make(map[string]struct{}, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ProviderName]; ok {
			continue
		}
		seen[r.ProviderName] = struct{}{}
		names = append(names, r.ProviderName)
	}
	return MatchReport{Entry: entry, MatchingRecords: records, DistinctProviderNames: names}
}

// EntryFailure is a per-entry increment that did not apply.
type EntryFailure struct {
	EntryID    id.EntryID `json:"entryId"`
	SenderName string     `json:"senderName"`
	Matches    int        `json:"matches"`
	Err        error      `json:"-"`
	Reason     string     `json:"reason"`
	Retryable  bool       `json:"retryable"`
}

// RunResult is the outcome of one matching run.
type RunResult struct {
	Reports  []MatchReport  `json:"reports"`
	Failures []EntryFailure `json:"failures,omitempty"`
}

// Err returns a CodePartialFailure error naming the failed entries, or nil.
func (r RunResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.SenderName)
	}
	return dErrors.New(dErrors.CodePartialFailure,
		fmt.Sprintf("%d of %d match updates failed: %s",
			len(r.Failures), len(r.Failures)+len(r.Reports), strings.Join(names, ", ")))
}
