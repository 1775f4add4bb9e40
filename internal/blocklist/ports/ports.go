// Package ports declares the storage contracts the blocklist service and the
// matching engine depend on.
package ports

import (
	"context"
	"time"

	"senderguard/internal/blocklist/models"
	id "senderguard/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

// EntryStore persists blocklist entries.
//
// Errors: sentinel.ErrNotFound for a missing id or name, sentinel.ErrConflict
// when Create or Update would duplicate a senderName.
type EntryStore interface {
	FindByID(ctx context.Context, entryID id.EntryID) (*models.Entry, error)
	FindBySenderName(ctx context.Context, senderName string) (*models.Entry, error)
	// List returns one page for a normalized filter plus the unpaginated total.
	List(ctx context.Context, filter models.Filter) ([]*models.Entry, int, error)
	// ListMatchable returns entries with isActive and effectiveDate <= now.
	ListMatchable(ctx context.Context, now time.Time) ([]*models.Entry, error)
	Create(ctx context.Context, entry *models.Entry) error
	Update(ctx context.Context, entry *models.Entry) error
	Delete(ctx context.Context, entryID id.EntryID) error
	// IncrementMatch atomically adds delta to matchCount and sets lastMatchDate.
	IncrementMatch(ctx context.Context, entryID id.EntryID, delta int64, at time.Time) (*models.Entry, error)
}

// TrafficReader looks up sender traffic in one batched query.
type TrafficReader interface {
	FindBySenderNames(ctx context.Context, senderNames []string) ([]models.TrafficRecord, error)
}
