package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// OrdinanceCacheEntry is the raw ordinance content last fetched for a jurisdiction.
// Expired entries are kept and serve as the last-resort fallback source.
type OrdinanceCacheEntry struct {
	JurisdictionID string    `json:"jurisdiction_id"`
	Content        []byte    `json:"content"`
	ContentType    string    `json:"content_type"`
	ContentHash    string    `json:"content_hash"`
	SourceURL      string    `json:"source_url"`
	FetchedAt      time.Time `json:"fetched_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Fresh reports whether the entry fetched within ttl of now. ExpiresAt is
// informational; a changed ttl applies to entries already stored.
func (e *OrdinanceCacheEntry) Fresh(ttl time.Duration, now time.Time) bool {
	return e != nil && now.Before(e.FetchedAt.Add(ttl))
}

// ContentHash returns the hex sha256 digest used to detect ordinance changes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
