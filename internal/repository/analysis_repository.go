package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/zoning-engine/internal/database"
	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// MaxHistoryResults caps the number of analyses returned for one property.
const MaxHistoryResults = 100

// AnalysisRepository defines data access for compliance analyses.
// Analyses are append-only: there is no update or delete.
type AnalysisRepository interface {
	// Create stores the analysis and its violations in one transaction.
	Create(ctx context.Context, analysis *models.ComplianceAnalysis) error

	// GetByID returns the analysis with the given id.
	// Returns nil, nil if no analysis is found (not an error).
	GetByID(ctx context.Context, id string) (*models.ComplianceAnalysis, error)

	// ListByProperty returns the analyses of a property, newest first.
	// Returns an empty slice if none are found.
	ListByProperty(ctx context.Context, propertyID string, limit int) ([]models.ComplianceAnalysis, error)
}

type analysisRepository struct {
	db *database.Database
}

// NewAnalysisRepository creates a new instance of AnalysisRepository.
func NewAnalysisRepository(db *database.Database) AnalysisRepository {
	return &analysisRepository{db: db}
}

const selectAnalysisColumns = `
	SELECT
		id::text,
		correlation_id,
		property_id,
		jurisdiction_id,
		status,
		data_source,
		confidence,
		requires_variance,
		content_hash,
		zoning_district,
		process,
		citations,
		timing,
		cost,
		created_at
	FROM analyses`

func (r *analysisRepository) Create(ctx context.Context, a *models.ComplianceAnalysis) error {
	district, err := marshalNullable(a.ZoningDistrict)
	if err != nil {
		return fmt.Errorf("failed to encode zoning district: %w", err)
	}
	process, err := marshalNullable(a.Process)
	if err != nil {
		return fmt.Errorf("failed to encode process estimate: %w", err)
	}
	citations := a.Citations
	if citations == nil {
		citations = []string{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}
	timing, err := json.Marshal(a.Timing)
	if err != nil {
		return fmt.Errorf("failed to encode timing: %w", err)
	}
	cost, err := json.Marshal(a.Cost)
	if err != nil {
		return fmt.Errorf("failed to encode cost: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO analyses (
			id, correlation_id, property_id, jurisdiction_id, status, data_source,
			confidence, requires_variance, content_hash, zoning_district, process,
			citations, timing, cost, created_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		a.ID, a.CorrelationID, a.PropertyID, a.JurisdictionID, string(a.Status), string(a.DataSource),
		a.Confidence, a.RequiresVariance, a.ContentHash, district, process,
		citationsJSON, timing, cost, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis %s: %w", a.ID, err)
	}

	if len(a.Violations) > 0 {
		batch := &pgx.Batch{}
		for i, v := range a.Violations {
			batch.Queue(`
				INSERT INTO analysis_violations (
					analysis_id, position, type, severity, description,
					code_reference, current_value, required_value, requires_variance
				) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
			`,
				a.ID, i, string(v.Type), string(v.Severity), v.Description,
				v.CodeReference, v.CurrentValue, v.RequiredValue, v.RequiresVariance,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert violations for analysis %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit analysis %s: %w", a.ID, err)
	}
	return nil
}

func (r *analysisRepository) GetByID(ctx context.Context, id string) (*models.ComplianceAnalysis, error) {
	// Malformed ids cannot match any row
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	row := r.db.Pool.QueryRow(ctx, selectAnalysisColumns+` WHERE id = $1::uuid`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query analysis %s: %w", id, err)
	}

	violations, err := r.loadViolations(ctx, []string{a.ID})
	if err != nil {
		return nil, err
	}
	a.Violations = violationsOrEmpty(violations[a.ID])

	return a, nil
}

func (r *analysisRepository) ListByProperty(ctx context.Context, propertyID string, limit int) ([]models.ComplianceAnalysis, error) {
	if limit <= 0 || limit > MaxHistoryResults {
		limit = MaxHistoryResults
	}

	rows, err := r.db.Pool.Query(ctx,
		selectAnalysisColumns+` WHERE property_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses for property %s: %w", propertyID, err)
	}
	defer rows.Close()

	results := []models.ComplianceAnalysis{}
	var ids []string
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		results = append(results, *a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis rows: %w", err)
	}

	if len(ids) == 0 {
		return results, nil
	}

	violations, err := r.loadViolations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Violations = violationsOrEmpty(violations[results[i].ID])
	}

	return results, nil
}

func (r *analysisRepository) loadViolations(ctx context.Context, ids []string) (map[string][]models.Violation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT
			analysis_id::text,
			type,
			severity,
			description,
			code_reference,
			current_value,
			required_value,
			requires_variance
		FROM analysis_violations
		WHERE analysis_id = ANY($1::uuid[])
		ORDER BY analysis_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Violation, len(ids))
	for rows.Next() {
		var (
			analysisID string
			typ, sev   string
			v          models.Violation
		)
		if err := rows.Scan(
			&analysisID,
			&typ,
			&sev,
			&v.Description,
			&v.CodeReference,
			&v.CurrentValue,
			&v.RequiredValue,
			&v.RequiresVariance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan violation row: %w", err)
		}
		v.Type = models.ViolationType(typ)
		v.Severity = models.Severity(sev)
		out[analysisID] = append(out[analysisID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violation rows: %w", err)
	}

	return out, nil
}

func scanAnalysis(row pgx.Row) (*models.ComplianceAnalysis, error) {
	var (
		a                       models.ComplianceAnalysis
		status, source          string
		district, process       []byte
		citations, timing, cost []byte
	)

	err := row.Scan(
		&a.ID,
		&a.CorrelationID,
		&a.PropertyID,
		&a.JurisdictionID,
		&status,
		&source,
		&a.Confidence,
		&a.RequiresVariance,
		&a.ContentHash,
		&district,
		&process,
		&citations,
		&timing,
		&cost,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = models.AnalysisStatus(status)
	a.DataSource = models.DataSource(source)
	a.CreatedAt = a.CreatedAt.UTC()

	if len(district) > 0 {
		if err := json.Unmarshal(district, &a.ZoningDistrict); err != nil {
			return nil, fmt.Errorf("failed to decode zoning district: %w", err)
		}
	}
	if len(process) > 0 {
		if err := json.Unmarshal(process, &a.Process); err != nil {
			return nil, fmt.Errorf("failed to decode process estimate: %w", err)
		}
	}
	if err := json.Unmarshal(citations, &a.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations: %w", err)
	}
	if err := json.Unmarshal(timing, &a.Timing); err != nil {
		return nil, fmt.Errorf("failed to decode timing: %w", err)
	}
	if err := json.Unmarshal(cost, &a.Cost); err != nil {
		return nil, fmt.Errorf("failed to decode cost: %w", err)
	}

	return &a, nil
}

// marshalNullable encodes v as JSON, or returns nil so the column stays NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func violationsOrEmpty(v []models.Violation) []models.Violation {
	if v == nil {
		return []models.Violation{}
	}
	return v
}
