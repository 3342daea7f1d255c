package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/zoning-engine/internal/database"
	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// DistrictVersion is a district as parsed from one version of an ordinance.
type DistrictVersion struct {
	JurisdictionID string                `json:"jurisdiction_id"`
	ContentHash    string                `json:"content_hash"`
	Variant        string                `json:"variant"`
	District       models.ZoningDistrict `json:"district"`
	ParsedAt       time.Time             `json:"parsed_at"`
}

// DistrictRepository keeps a history of parsed districts keyed by the
// content hash of the ordinance they came from.
type DistrictRepository interface {
	// SaveSnapshot records every district of rules. Versions already stored
	// for the same content hash are left untouched.
	SaveSnapshot(ctx context.Context, rules *models.NormalizedRules) error

	// ListVersions returns the stored versions of a district, newest first.
	ListVersions(ctx context.Context, jurisdictionID, code string) ([]DistrictVersion, error)
}

type districtRepository struct {
	db *database.Database
}

// NewDistrictRepository creates a new instance of DistrictRepository.
func NewDistrictRepository(db *database.Database) DistrictRepository {
	return &districtRepository{db: db}
}

func (r *districtRepository) SaveSnapshot(ctx context.Context, rules *models.NormalizedRules) error {
	if rules == nil || len(rules.Districts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range rules.Districts {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode district %s: %w", d.Code, err)
		}
		batch.Queue(`
			INSERT INTO district_versions (
				jurisdiction_id, content_hash, district_code, variant, district, parsed_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (jurisdiction_id, content_hash, district_code) DO NOTHING
		`, rules.JurisdictionID, rules.ContentHash, d.Code, rules.Variant, payload, rules.ParsedAt)
	}

	if err := r.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save district snapshot for %s: %w", rules.JurisdictionID, err)
	}
	return nil
}

func (r *districtRepository) ListVersions(ctx context.Context, jurisdictionID, code string) ([]DistrictVersion, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT
			jurisdiction_id,
			content_hash,
			variant,
			district,
			parsed_at
		FROM district_versions
		WHERE jurisdiction_id = $1 AND district_code = $2
		ORDER BY parsed_at DESC
	`, jurisdictionID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query district versions for %s/%s: %w", jurisdictionID, code, err)
	}
	defer rows.Close()

	results := []DistrictVersion{}
	for rows.Next() {
		var (
			v       DistrictVersion
			payload []byte
		)
		if err := rows.Scan(&v.JurisdictionID, &v.ContentHash, &v.Variant, &payload, &v.ParsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan district version row: %w", err)
		}
		if err := json.Unmarshal(payload, &v.District); err != nil {
			return nil, fmt.Errorf("failed to decode district version: %w", err)
		}
		v.ParsedAt = v.ParsedAt.UTC()
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating district version rows: %w", err)
	}

	return results, nil
}
