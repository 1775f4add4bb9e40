// Package ports declares the storage contract the rate limiter depends on.
package ports

import (
	"context"
	"time"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

// CounterStore atomically increments a counter and returns its new value.
// When the increment creates the key (or the key has no expiry) the key is set
// to expire at expireAt; later increments never move the expiry.
//
// expireAt is derived from requestcontext.Now. Stores that judge expiry on
// their own clock (Redis uses the server's) require that clock to agree with
// the API hosts; the in-memory store uses the request time when ctx has one.
type CounterStore interface {
	IncrementWithExpiryOnCreate(ctx context.Context, key string, expireAt time.Time) (int64, error)
}
