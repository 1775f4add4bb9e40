package entry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"senderguard/internal/blocklist/models"
	id "senderguard/pkg/domain"
	"senderguard/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newEntry(name string, active bool, effective time.Time, created time.Time) *models.Entry {
	e := &models.Entry{
		ID:            id.NewEntryID(),
		SenderName:    name,
		EffectiveDate: effective,
		IsActive:      active,
		CreatedBy:     id.UserID(uuid.New()),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	s.Require().NoError(s.store.Create(s.ctx, e))
	return e
}

func (s *InMemoryStoreSuite) TestCreateRejectsDuplicateName() {
	s.newEntry("SPAMCO", true, s.base, s.base)
	err := s.store.Create(s.ctx, &models.Entry{ID: id.NewEntryID(), SenderName: "SPAMCO"})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindReturnsCopies() {
	e := s.newEntry("SPAMCO", true, s.base, s.base)
	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	got.SenderName = "MUTATED"

	again, err := s.store.FindBySenderName(s.ctx, "SPAMCO")
	s.Require().NoError(err)
	s.Equal(e.ID, again.ID)
}

func (s *InMemoryStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(s.ctx, id.NewEntryID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, id.NewEntryID()), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, &models.Entry{ID: id.NewEntryID()}), sentinel.ErrNotFound)
	_, err = s.store.IncrementMatch(s.ctx, id.NewEntryID(), 1, s.base)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateKeepsMatchCounters() {
	e := s.newEntry("SPAMCO", true, s.base, s.base)
	_, err := s.store.IncrementMatch(s.ctx, e.ID, 4, s.base)
	s.Require().NoError(err)

	e.IsActive = false
	e.MatchCount = 0
	s.Require().NoError(s.store.Update(s.ctx, e))

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.Equal(int64(4), got.MatchCount)
}

func (s *InMemoryStoreSuite) TestListMatchable() {
	s.newEntry("ACTIVE", true, s.base.Add(-time.Hour), s.base)
	s.newEntry("FUTURE", true, s.base.Add(time.Hour), s.base)
	s.newEntry("INACTIVE", false, s.base.Add(-time.Hour), s.base)
	s.newEntry("EXACT", true, s.base, s.base)

	got, err := s.store.ListMatchable(s.ctx, s.base)
	s.Require().NoError(err)
	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e.SenderName)
	}
	s.Equal([]string{"ACTIVE", "EXACT"}, names)
}

func (s *InMemoryStoreSuite) TestListFiltersOrderAndPages() {
	old := s.newEntry("spam-old", true, s.base, s.base)
	recent := s.newEntry("SPAM-recent", true, s.base, s.base.Add(time.Hour))
	matched := s.newEntry("Spam-matched", true, s.base, s.base.Add(-time.Hour))
	s.newEntry("other", false, s.base.Add(-48*time.Hour), s.base)
	_, err := s.store.IncrementMatch(s.ctx, matched.ID, 1, s.base)
	s.Require().NoError(err)

	s.Run("substring is case-insensitive, matched first then newest", func() {
		got, total, err := s.store.List(s.ctx, models.Filter{SenderName: "spam"})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Require().Len(got, 3)
		s.Equal(matched.ID, got[0].ID)
		s.Equal(recent.ID, got[1].ID)
		s.Equal(old.ID, got[2].ID)
	})

	s.Run("isActive and effectiveFrom", func() {
		inactive := false
		got, total, err := s.store.List(s.ctx, models.Filter{IsActive: &inactive})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("other", got[0].SenderName)

		from := s.base.Add(-time.Hour)
		_, total, err = s.store.List(s.ctx, models.Filter{EffectiveFrom: &from})
		s.Require().NoError(err)
		s.Equal(3, total)
	})

	s.Run("pagination keeps total", func() {
		got, total, err := s.store.List(s.ctx, models.Filter{Page: 2, PageSize: 3})
		s.Require().NoError(err)
		s.Equal(4, total)
		s.Len(got, 1)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentIncrementsDoNotLoseUpdates() {
	e := s.newEntry("SPAMCO", true, s.base, s.base)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.IncrementMatch(s.ctx, e.ID, 2, s.base)
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), got.MatchCount)
	s.Require().NotNil(got.LastMatchDate)
}
