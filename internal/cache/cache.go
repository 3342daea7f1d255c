// Package cache holds raw ordinance content per jurisdiction. Entries carry
// an expiry but are never evicted: an expired entry is the last-resort
// fallback when a fresh fetch fails.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// ErrInvalidEntry is returned for entries missing a jurisdiction or fetch time.
var ErrInvalidEntry = errors.New("invalid cache entry")

// CacheError reports that the backing store could not be used. Callers treat
// it as a cache miss.
type CacheError struct {
	Op             string
	JurisdictionID string
	Err            error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.JurisdictionID, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Store is the durable backend of the ordinance cache.
type Store interface {
	// Get returns the entry for a jurisdiction, expired or not.
	// Returns nil, nil if there is no entry.
	Get(ctx context.Context, jurisdictionID string) (*models.OrdinanceCacheEntry, error)

	// Put writes entry unless the stored entry was fetched at the same time
	// or later. It reports whether the entry was written.
	Put(ctx context.Context, entry *models.OrdinanceCacheEntry) (bool, error)
}

// OrdinanceCache applies the deployment TTL on top of a Store.
type OrdinanceCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// New creates an OrdinanceCache with the given TTL.
func New(store Store, ttl time.Duration) *OrdinanceCache {
	return &OrdinanceCache{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for freshness checks.
func (c *OrdinanceCache) WithClock(now func() time.Time) *OrdinanceCache {
	c.now = now
	return c
}

// TTL returns the configured time-to-live.
func (c *OrdinanceCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the stored entry for jurisdictionID. Store failures are
// returned as *CacheError.
func (c *OrdinanceCache) Get(ctx context.Context, jurisdictionID string) (*models.OrdinanceCacheEntry, error) {
	entry, err := c.store.Get(ctx, jurisdictionID)
	if err != nil {
		return nil, &CacheError{Op: "get", JurisdictionID: jurisdictionID, Err: err}
	}
	return entry, nil
}

// Fresh reports whether entry was fetched within the configured TTL. The
// ExpiresAt written by an earlier deployment is not consulted.
func (c *OrdinanceCache) Fresh(entry *models.OrdinanceCacheEntry) bool {
	return entry.Fresh(c.ttl, c.now())
}

// Put stores entry with ExpiresAt set from its fetch time. An entry fetched
// before the stored one is ignored and reported as not written.
func (c *OrdinanceCache) Put(ctx context.Context, entry models.OrdinanceCacheEntry) (bool, error) {
	if entry.JurisdictionID == "" || entry.FetchedAt.IsZero() {
		return false, &CacheError{Op: "put", JurisdictionID: entry.JurisdictionID, Err: ErrInvalidEntry}
	}

	entry.FetchedAt = entry.FetchedAt.UTC()
	entry.ExpiresAt = entry.FetchedAt.Add(c.ttl)
	if entry.ContentHash == "" {
		entry.ContentHash = models.ContentHash(entry.Content)
	}

	written, err := c.store.Put(ctx, &entry)
	if err != nil {
		return false, &CacheError{Op: "put", JurisdictionID: entry.JurisdictionID, Err: err}
	}
	return written, nil
}
