package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/zoning-engine/internal/database"
	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// OrdinanceCacheRepository stores raw ordinance content in PostgreSQL.
// It satisfies cache.Store.
type OrdinanceCacheRepository struct {
	db *database.Database
}

// NewOrdinanceCacheRepository creates a new OrdinanceCacheRepository.
func NewOrdinanceCacheRepository(db *database.Database) *OrdinanceCacheRepository {
	return &OrdinanceCacheRepository{db: db}
}

// Get returns the entry for a jurisdiction, expired or not.
// Returns nil, nil if there is no entry.
func (r *OrdinanceCacheRepository) Get(ctx context.Context, jurisdictionID string) (*models.OrdinanceCacheEntry, error) {
	var e models.OrdinanceCacheEntry
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			jurisdiction_id,
			content,
			content_type,
			content_hash,
			source_url,
			fetched_at,
			expires_at
		FROM ordinance_cache
		WHERE jurisdiction_id = $1
	`, jurisdictionID).Scan(
		&e.JurisdictionID,
		&e.Content,
		&e.ContentType,
		&e.ContentHash,
		&e.SourceURL,
		&e.FetchedAt,
		&e.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query ordinance cache for %s: %w", jurisdictionID, err)
	}

	e.FetchedAt = e.FetchedAt.UTC()
	e.ExpiresAt = e.ExpiresAt.UTC()
	return &e, nil
}

// Put upserts entry. The conditional update makes concurrent writers
// converge on the most recent fetch.
func (r *OrdinanceCacheRepository) Put(ctx context.Context, e *models.OrdinanceCacheEntry) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO ordinance_cache (
			jurisdiction_id, content, content_type, content_hash, source_url, fetched_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (jurisdiction_id) DO UPDATE SET
			content      = EXCLUDED.content,
			content_type = EXCLUDED.content_type,
			content_hash = EXCLUDED.content_hash,
			source_url   = EXCLUDED.source_url,
			fetched_at   = EXCLUDED.fetched_at,
			expires_at   = EXCLUDED.expires_at
		WHERE ordinance_cache.fetched_at < EXCLUDED.fetched_at
	`,
		e.JurisdictionID, e.Content, e.ContentType, e.ContentHash, e.SourceURL, e.FetchedAt, e.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert ordinance cache for %s: %w", e.JurisdictionID, err)
	}
	return tag.RowsAffected() > 0, nil
}
