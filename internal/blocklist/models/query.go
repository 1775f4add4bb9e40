package models

import "time"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter selects entries for listing. Zero fields do not filter.
type Filter struct {
	// SenderName matches as a case-insensitive substring.
	SenderName string
	IsActive   *bool
	// EffectiveFrom keeps entries with effectiveDate >= EffectiveFrom.
	EffectiveFrom *time.Time
	Page          int
	PageSize      int
}

// Normalize clamps pagination into range.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped for the current page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Page is one page of entries plus the unpaginated total.
type Page struct {
	Entries    []*Entry `json:"blacklist"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}

// NewPage assembles a page for a normalized filter.
func NewPage(entries []*Entry, total int, f Filter) Page {
	pages := 0
	if f.PageSize > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	return Page{Entries: entries, Total: total, Page: f.Page, Limit: f.PageSize, TotalPages: pages}
}
