package matching

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	blmetrics "senderguard/internal/blocklist/metrics"
	"senderguard/internal/blocklist/mocks"
	"senderguard/internal/blocklist/models"
	"senderguard/internal/blocklist/store/entry"
	"senderguard/internal/blocklist/store/traffic"
	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/sentinel"
	"senderguard/pkg/requestcontext"
)

// failingIncrements fails IncrementMatch for the listed entries.
type failingIncrements struct {
	*entry.InMemoryStore
	fail     map[id.EntryID]error
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *failingIncrements) IncrementMatch(ctx context.Context, entryID id.EntryID, delta int64, at time.Time) (*models.Entry, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	if err, ok := f.fail[entryID]; ok {
		return nil, err
	}
	return f.InMemoryStore.IncrementMatch(ctx, entryID, delta, at)
}

type EngineSuite struct {
	suite.Suite
	entries *failingIncrements
	traffic *traffic.InMemoryReader
	metrics *blmetrics.Metrics
	engine  *Engine
	now     time.Time
	ctx     context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.entries = &failingIncrements{InMemoryStore: entry.NewInMemory(), fail: map[id.EntryID]error{}}
	s.traffic = traffic.NewInMemory()
	s.metrics = blmetrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	engine, err := New(s.entries, s.traffic, WithMetrics(s.metrics), WithConcurrency(2))
	s.Require().NoError(err)
	s.engine = engine
}

func (s *EngineSuite) seed(name string, active bool, effective time.Time) *models.Entry {
	e, err := models.NewEntry(id.NewEntryID(), models.NewEntryParams{
		SenderName:    name,
		EffectiveDate: effective,
		IsActive:      &active,
	}, id.UserID(uuid.New()), s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.entries.Create(context.Background(), e))
	return e
}

func (s *EngineSuite) addTraffic(sender string, providers ...string) {
	for i, p := range providers {
		s.traffic.Add(models.TrafficRecord{SenderName: sender, ProviderID: fmt.Sprintf("p-%d", i), ProviderName: p})
	}
}

func (s *EngineSuite) TestNoMatchableEntriesSkipsTrafficQuery() {
	s.seed("INACTIVE", false, s.now.Add(-time.Hour))
	s.seed("FUTURE", true, s.now.Add(time.Hour))
	s.addTraffic("INACTIVE", "acme")

	result, err := s.engine.RunMatch(s.ctx)
	s.Require().NoError(err)
	s.Empty(result.Reports)
	s.NotNil(result.Reports)
	s.Zero(s.traffic.Queries())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MatchRuns.WithLabelValues(OutcomeEmpty)))
}

func (s *EngineSuite) TestSingleEntryTwoRecords() {
	e := s.seed("SPAMCO", true, s.now.Add(-time.Hour))
	s.addTraffic("SPAMCO", "acme", "acme")
	s.addTraffic("OTHER", "globex")

	result, err := s.engine.RunMatch(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(result.Reports, 1)
	report := result.Reports[0]
	s.Len(report.MatchingRecords, 2)
	s.Equal([]string{"acme"}, report.DistinctProviderNames)
	s.Equal(int64(2), report.Entry.MatchCount)
	s.Equal(1, s.traffic.Queries())

	stored, err := s.entries.FindByID(context.Background(), e.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), stored.MatchCount)
	s.Require().NotNil(stored.LastMatchDate)
	s.True(stored.LastMatchDate.Equal(s.now))
}

func (s *EngineSuite) TestRepeatedRunsAccumulate() {
	e := s.seed("SPAMCO", true, s.now.Add(-time.Hour))
	s.addTraffic("SPAMCO", "acme", "globex")

	_, err := s.engine.RunMatch(s.ctx)
	s.Require().NoError(err)
	_, err = s.engine.RunMatch(s.ctx)
	s.Require().NoError(err)

	stored, err := s.entries.FindByID(context.Background(), e.ID)
	s.Require().NoError(err)
	s.Equal(int64(4), stored.MatchCount)
}

func (s *EngineSuite) TestEntriesWithoutTrafficAreNotUpdated() {
	quiet := s.seed("QUIET", true, s.now.Add(-time.Hour))
	s.seed("LOUD", true, s.now.Add(-time.Hour))
	s.addTraffic("LOUD", "acme")

	result, err := s.engine.RunMatch(s.ctx)
	s.Require().NoError(err)
	s.Len(result.Reports, 1)

	stored, err := s.entries.FindByID(context.Background(), quiet.ID)
	s.Require().NoError(err)
	s.Zero(stored.MatchCount)
	s.Nil(stored.LastMatchDate)
}

func (s *EngineSuite) TestOneFailedIncrementDoesNotAbortOthers() {
	names := []string{"A-SENDER", "B-SENDER", "C-SENDER", "D-SENDER"}
	seeded := make(map[string]*models.Entry, len(names))
	for _, n := range names {
		seeded[n] = s.seed(n, true, s.now.Add(-time.Hour))
		s.addTraffic(n, "acme")
	}
	s.entries.fail[seeded["B-SENDER"].ID] = sentinel.ErrUnavailable

	result, err := s.engine.RunMatch(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.Contains(err.Error(), "1 of 4")
	s.Contains(err.Error(), "B-SENDER")

	s.Len(result.Reports, 3)
	s.Require().Len(result.Failures, 1)
	failure := result.Failures[0]
	s.Equal(seeded["B-SENDER"].ID, failure.EntryID)
	s.Equal(1, failure.Matches)
	s.True(failure.Retryable)

	for _, n := range []string{"A-SENDER", "C-SENDER", "D-SENDER"} {
		stored, err := s.entries.FindByID(context.Background(), seeded[n].ID)
		s.Require().NoError(err)
		s.Equal(int64(1), stored.MatchCount, n)
	}
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MatchRuns.WithLabelValues(OutcomePartial)))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MatchEntries.WithLabelValues("failed")))
	s.LessOrEqual(s.entries.peak.Load(), int32(2), "concurrency limit")
}

func TestRunMatchLoadFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	spamco := &models.Entry{ID: id.NewEntryID(), SenderName: "SPAMCO", IsActive: true}

	t.Run("entry load timeout is retryable and skips traffic", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		entries := mocks.NewMockEntryStore(ctrl)
		reader := mocks.NewMockTrafficReader(ctrl)
		entries.EXPECT().ListMatchable(gomock.Any(), now).Return(nil, sentinel.ErrTimeout)

		engine, err := New(entries, reader)
		if err != nil {
			t.Fatal(err)
		}
		_, err = engine.RunMatch(ctx)
		if !dErrors.HasCode(err, dErrors.CodeTimeout) || !dErrors.IsRetryable(err) {
			t.Fatalf("expected retryable timeout, got %v", err)
		}
	})

	t.Run("traffic lookup is one batched call", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		entries := mocks.NewMockEntryStore(ctrl)
		reader := mocks.NewMockTrafficReader(ctrl)
		other := &models.Entry{ID: id.NewEntryID(), SenderName: "OTHER", IsActive: true}
		entries.EXPECT().ListMatchable(gomock.Any(), now).Return([]*models.Entry{spamco, other}, nil)
		reader.EXPECT().FindBySenderNames(gomock.Any(), []string{"SPAMCO", "OTHER"}).Return(nil, sentinel.ErrUnavailable).Times(1)

		engine, err := New(entries, reader)
		if err != nil {
			t.Fatal(err)
		}
		_, err = engine.RunMatch(ctx)
		if !dErrors.HasCode(err, dErrors.CodeUnavailable) {
			t.Fatalf("expected unavailable, got %v", err)
		}
	})

	t.Run("hung increment is reported as a retryable entry failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		entries := mocks.NewMockEntryStore(ctrl)
		reader := mocks.NewMockTrafficReader(ctrl)
		entries.EXPECT().ListMatchable(gomock.Any(), now).Return([]*models.Entry{spamco}, nil)
		reader.EXPECT().FindBySenderNames(gomock.Any(), []string{"SPAMCO"}).
			Return([]models.TrafficRecord{{SenderName: "SPAMCO", ProviderName: "acme"}}, nil)
		entries.EXPECT().IncrementMatch(gomock.Any(), spamco.ID, int64(1), now).
			DoAndReturn(func(c context.Context, _ id.EntryID, _ int64, _ time.Time) (*models.Entry, error) {
				<-c.Done()
				return nil, c.Err()
			})

		engine, err := New(entries, reader, WithStoreTimeout(20*time.Millisecond))
		if err != nil {
			t.Fatal(err)
		}
		result, err := engine.RunMatch(ctx)
		if !dErrors.HasCode(err, dErrors.CodePartialFailure) {
			t.Fatalf("expected partial failure, got %v", err)
		}
		if len(result.Failures) != 1 || !result.Failures[0].Retryable {
			t.Fatalf("unexpected failures %+v", result.Failures)
		}
	})
}
