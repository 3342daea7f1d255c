package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/stwalsh4118/zoning-engine/internal/evaluator"
	"github.com/stwalsh4118/zoning-engine/internal/fetcher"
	"github.com/stwalsh4118/zoning-engine/internal/logger"
	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/parser"
	"github.com/stwalsh4118/zoning-engine/internal/registry"
	"github.com/stwalsh4118/zoning-engine/internal/repository"
	"github.com/stwalsh4118/zoning-engine/internal/telemetry"
)

// History limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = repository.MaxHistoryResults
)

// DefaultPersistTimeout bounds the analysis write that follows evaluation.
const DefaultPersistTimeout = 5 * time.Second

// Service-level errors
var (
	ErrInvalidRequest   = errors.New("invalid analysis request")
	ErrAnalysisNotFound = errors.New("analysis not found")
)

// OrdinanceCache is the subset of cache.OrdinanceCache the pipeline uses.
type OrdinanceCache interface {
	Get(ctx context.Context, jurisdictionID string) (*models.OrdinanceCacheEntry, error)
	Put(ctx context.Context, entry models.OrdinanceCacheEntry) (bool, error)
	Fresh(entry *models.OrdinanceCacheEntry) bool
}

// AnalysisService defines the analysis pipeline operations.
type AnalysisService interface {
	// Analyze runs one compliance analysis for property.
	// Returns a *registry.ConfigError for an unknown jurisdiction and
	// ErrInvalidRequest for malformed input. Every other failure degrades
	// the returned analysis instead of producing an error.
	Analyze(ctx context.Context, property models.Property) (*models.ComplianceAnalysis, error)

	// Get returns a stored analysis.
	// Returns ErrAnalysisNotFound if no analysis has the id.
	Get(ctx context.Context, id string) (*models.ComplianceAnalysis, error)

	// History returns the stored analyses of a property, newest first.
	// A zero limit selects DefaultHistoryLimit.
	History(ctx context.Context, propertyID string, limit int) ([]models.ComplianceAnalysis, error)
}

// Dependencies wires the pipeline stages. Districts may be nil to disable
// district snapshots.
type Dependencies struct {
	Registry  registry.Registry
	Cache     OrdinanceCache
	Fetcher   fetcher.Fetcher
	Parser    parser.Parser
	Analyses  repository.AnalysisRepository
	Districts repository.DistrictRepository
	Sink      telemetry.Sink
	Log       *logger.Logger
}

// Options tunes the pipeline.
type Options struct {
	// FetchTimeout bounds the shared fetch, parse and cache write of one flight.
	FetchTimeout   time.Duration
	PersistTimeout time.Duration
}

type analysisService struct {
	Dependencies
	fetchTimeout   time.Duration
	persistTimeout time.Duration
	flights        singleflight.Group
	now            func() time.Time
	newID          func() string
}

// NewAnalysisService creates a new instance of AnalysisService.
func NewAnalysisService(deps Dependencies, opts Options) AnalysisService {
	if deps.Sink == nil {
		deps.Sink = telemetry.NopSink{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}

	return &analysisService{
		Dependencies:   deps,
		fetchTimeout:   opts.FetchTimeout,
		persistTimeout: opts.PersistTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// Analyze walks the fallback chain: fresh cache, shared fetch, stale cache,
// then manual review. Each tier that cannot produce rules hands over to the
// next one.
func (s *analysisService) Analyze(ctx context.Context, property models.Property) (*models.ComplianceAnalysis, error) {
	started := s.now()

	if err := validateProperty(property); err != nil {
		s.Log.Warn("Invalid analysis request", map[string]interface{}{
			"parcel_id": property.ParcelID,
			"error":     err.Error(),
		})
		return nil, err
	}

	correlationID := telemetry.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = s.newID()
		ctx = telemetry.WithCorrelationID(ctx, correlationID)
	}
	log := s.Log.WithCorrelationID(correlationID)

	jurisdiction, err := s.Registry.Get(property.JurisdictionID)
	if err != nil {
		s.emitError(ctx, telemetry.StageRegistry, "config_error", map[string]interface{}{
			"jurisdiction_id": property.JurisdictionID,
		})
		log.Warn("Unknown jurisdiction", map[string]interface{}{
			"jurisdiction_id": property.JurisdictionID,
		})
		return nil, err
	}
	property.JurisdictionID = jurisdiction.ID

	log.Info("Starting analysis", map[string]interface{}{
		"parcel_id":       property.ParcelID,
		"jurisdiction_id": jurisdiction.ID,
		"district":        property.ZoningDistrict,
	})

	res := s.resolveRules(ctx, jurisdiction)
	analysis := s.evaluate(ctx, property, res)

	analysis.ID = s.newID()
	analysis.CorrelationID = correlationID
	analysis.Process = evaluator.EstimateProcess(analysis, jurisdiction)
	analysis.Cost = res.cost

	completed := s.now()
	analysis.CreatedAt = completed.UTC()
	analysis.Timing = models.Timing{
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		DurationMs:  completed.Sub(started).Milliseconds(),
	}

	s.persist(ctx, analysis)

	labels := map[string]string{
		"jurisdiction": jurisdiction.ID,
		"status":       string(analysis.Status),
		"data_source":  string(analysis.DataSource),
	}
	s.emitMetric(ctx, "analysis_duration_ms", float64(analysis.Timing.DurationMs), labels)
	s.emitMetric(ctx, "analysis_confidence", float64(analysis.Confidence), labels)
	s.emitMetric(ctx, "analysis_violations", float64(len(analysis.Violations)), labels)

	log.Info("Analysis complete", map[string]interface{}{
		"analysis_id": analysis.ID,
		"status":      analysis.Status,
		"data_source": analysis.DataSource,
		"confidence":  analysis.Confidence,
		"violations":  len(analysis.Violations),
		"duration_ms": analysis.Timing.DurationMs,
	})

	return analysis, nil
}

// evaluate scores the property, converting a panic into a manual review.
func (s *analysisService) evaluate(ctx context.Context, property models.Property, res resolution) (analysis *models.ComplianceAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			s.emitError(ctx, telemetry.StageEvaluate, "evaluate_panic", map[string]interface{}{
				"jurisdiction_id": property.JurisdictionID,
				"panic":           fmt.Sprint(r),
			})
			analysis = evaluator.ManualReview(property)
		}
	}()

	analysis = evaluator.Evaluate(property, res.rules, res.source)
	if analysis.Status == models.StatusUnknown {
		s.emitError(ctx, telemetry.StageEvaluate, "district_not_found", map[string]interface{}{
			"jurisdiction_id": property.JurisdictionID,
			"district":        property.ZoningDistrict,
		})
	}
	return analysis
}

// persist writes the analysis. Failures are reported to telemetry only; the
// caller still gets its result.
func (s *analysisService) persist(ctx context.Context, analysis *models.ComplianceAnalysis) {
	if s.Analyses == nil {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	if err := s.Analyses.Create(pctx, analysis); err != nil {
		s.emitError(ctx, telemetry.StagePersist, "persist_failed", map[string]interface{}{
			"analysis_id": analysis.ID,
			"error":       err.Error(),
		})
		s.Log.Error("Failed to persist analysis", err, map[string]interface{}{
			"analysis_id":    analysis.ID,
			"correlation_id": analysis.CorrelationID,
		})
	}
}

func (s *analysisService) Get(ctx context.Context, id string) (*models.ComplianceAnalysis, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: analysis id must be a UUID", ErrInvalidRequest)
	}

	analysis, err := s.Analyses.GetByID(ctx, id)
	if err != nil {
		s.Log.Error("Failed to query analysis", err, map[string]interface{}{"analysis_id": id})
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	// Repository returns nil, nil when no analysis found - transform to domain error
	if analysis == nil {
		return nil, ErrAnalysisNotFound
	}
	return analysis, nil
}

func (s *analysisService) History(ctx context.Context, propertyID string, limit int) ([]models.ComplianceAnalysis, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("%w: property id is required", ErrInvalidRequest)
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidRequest, MaxHistoryLimit, limit)
	}

	analyses, err := s.Analyses.ListByProperty(ctx, propertyID, limit)
	if err != nil {
		s.Log.Error("Failed to query analysis history", err, map[string]interface{}{"property_id": propertyID})
		return nil, fmt.Errorf("failed to query analysis history: %w", err)
	}
	return analyses, nil
}

func validateProperty(p models.Property) error {
	if p.ParcelID == "" {
		return fmt.Errorf("%w: parcel id is required", ErrInvalidRequest)
	}
	if p.JurisdictionID == "" {
		return fmt.Errorf("%w: jurisdiction id is required", ErrInvalidRequest)
	}

	d := p.ProposedDimensions
	for name, v := range map[string]*float64{
		"front_setback":  d.FrontSetback,
		"side_setback":   d.SideSetback,
		"rear_setback":   d.RearSetback,
		"corner_setback": d.CornerSetback,
		"height":         d.Height,
		"stories":        d.Stories,
		"lot_coverage":   d.LotCoverage,
		"lot_size":       d.LotSize,
		"lot_width":      d.LotWidth,
		"floor_area":     d.FloorArea,
		"dwelling_units": d.DwellingUnits,
		"parking_spaces": d.ParkingSpaces,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidRequest, name)
		}
	}
	return nil
}

func (s *analysisService) emitMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	s.Sink.EmitMetric(telemetry.MetricEvent{
		Name:          name,
		Value:         value,
		Labels:        labels,
		CorrelationID: telemetry.CorrelationID(ctx),
	})
}

func (s *analysisService) emitError(ctx context.Context, stage, errorType string, fields map[string]interface{}) {
	s.Sink.EmitError(telemetry.ErrorEvent{
		ErrorType:     errorType,
		Stage:         stage,
		Context:       fields,
		CorrelationID: telemetry.CorrelationID(ctx),
	})
}
