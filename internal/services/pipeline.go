package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/zoning-engine/internal/fetcher"
	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/parser"
	"github.com/stwalsh4118/zoning-engine/internal/telemetry"
)

// resolution is the outcome of the rule lookup for one request.
type resolution struct {
	rules  *models.NormalizedRules
	source models.DataSource
	cost   models.Cost
}

// flightResult is shared by every request waiting on the same flight.
type flightResult struct {
	rules   *models.NormalizedRules
	source  models.DataSource
	calls   int
	bytes   int64
	memoHit bool
}

// resolveRules never fails: when no tier yields rules the resolution is a
// manual review.
func (s *analysisService) resolveRules(ctx context.Context, j *models.Jurisdiction) resolution {
	entry, err := s.Cache.Get(ctx, j.ID)
	if err != nil {
		// An unusable cache is a miss
		s.emitError(ctx, telemetry.StageCache, "cache_unavailable", map[string]interface{}{
			"jurisdiction_id": j.ID,
			"error":           err.Error(),
		})
		entry = nil
	}

	staleTried := false
	switch {
	case entry == nil:
		s.emitMetric(ctx, "cache_lookup", 1, map[string]string{"jurisdiction": j.ID, "result": "miss"})
	case s.Cache.Fresh(entry):
		s.emitMetric(ctx, "cache_lookup", 1, map[string]string{"jurisdiction": j.ID, "result": "hit"})
		rules, memoHit, err := s.parse(ctx, j, entry.Content, entry.ContentHash)
		if err == nil {
			return resolution{rules: rules, source: models.SourceFreshCache, cost: models.Cost{ParseMemoHit: memoHit}}
		}
		// The same bytes would fail again as a stale fallback
		staleTried = true
	default:
		s.emitMetric(ctx, "cache_lookup", 1, map[string]string{"jurisdiction": j.ID, "result": "expired"})
	}

	previousHash := ""
	if entry != nil {
		previousHash = entry.ContentHash
	}

	out, err := s.fetchShared(ctx, j, previousHash)
	if err == nil {
		return resolution{
			rules:  out.rules,
			source: out.source,
			cost:   models.Cost{FetchCalls: out.calls, BytesFetched: out.bytes, ParseMemoHit: out.memoHit},
		}
	}

	if entry != nil && !staleTried {
		s.emitError(ctx, telemetry.StageCache, "stale_fallback", map[string]interface{}{
			"jurisdiction_id": j.ID,
			"fetched_at":      entry.FetchedAt,
			"cause":           err.Error(),
		})
		rules, memoHit, perr := s.parse(ctx, j, entry.Content, entry.ContentHash)
		if perr == nil {
			return resolution{rules: rules, source: models.SourceStaleCache, cost: models.Cost{ParseMemoHit: memoHit}}
		}
	}

	s.emitError(ctx, telemetry.StageEvaluate, "manual_review", map[string]interface{}{
		"jurisdiction_id": j.ID,
		"cause":           err.Error(),
	})
	return resolution{source: models.SourceManualReview}
}

// fetchShared joins or starts the flight for the jurisdiction. The flight
// runs detached from ctx so a cancelled caller only stops waiting.
func (s *analysisService) fetchShared(ctx context.Context, j *models.Jurisdiction, previousHash string) (*flightResult, error) {
	ch := s.flights.DoChan(j.ID, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		if s.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, s.fetchTimeout)
			defer cancel()
		}
		return s.fetchAndParse(fctx, j, previousHash)
	})

	select {
	case r := <-ch:
		if r.Shared {
			s.emitMetric(ctx, "fetch_coalesced", 1, map[string]string{"jurisdiction": j.ID})
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*flightResult), nil
	case <-ctx.Done():
		s.emitError(ctx, telemetry.StageFetch, "cancelled", map[string]interface{}{
			"jurisdiction_id": j.ID,
			"error":           ctx.Err().Error(),
		})
		return nil, ctx.Err()
	}
}

// fetchAndParse is the body of a flight. A request that arrives after an
// earlier flight already refreshed the cache reuses that entry instead of
// fetching again.
func (s *analysisService) fetchAndParse(ctx context.Context, j *models.Jurisdiction, previousHash string) (*flightResult, error) {
	if entry, err := s.Cache.Get(ctx, j.ID); err == nil && s.Cache.Fresh(entry) {
		if rules, memoHit, err := s.parse(ctx, j, entry.Content, entry.ContentHash); err == nil {
			return &flightResult{rules: rules, source: models.SourceFreshCache, memoHit: memoHit}, nil
		}
	}

	started := s.now()
	raw, err := s.Fetcher.Fetch(ctx, j.Source)
	if err != nil {
		errorType := "fetch_failed"
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			errorType = "fetch_" + string(fe.Kind)
		}
		s.emitError(ctx, telemetry.StageFetch, errorType, map[string]interface{}{
			"jurisdiction_id": j.ID,
			"error":           err.Error(),
		})
		return nil, err
	}
	s.emitMetric(ctx, "fetch_duration_ms", float64(s.now().Sub(started).Milliseconds()), map[string]string{"jurisdiction": j.ID})
	s.emitMetric(ctx, "fetch_bytes", float64(len(raw.Body)), map[string]string{"jurisdiction": j.ID})

	rules, memoHit, err := s.parse(ctx, j, raw.Body, raw.Hash)
	if err != nil {
		// Unparseable content is not cached
		return nil, err
	}

	written, err := s.Cache.Put(ctx, models.OrdinanceCacheEntry{
		JurisdictionID: j.ID,
		Content:        raw.Body,
		ContentType:    raw.ContentType,
		ContentHash:    raw.Hash,
		SourceURL:      raw.SourceURL,
		FetchedAt:      raw.FetchedAt,
	})
	if err != nil {
		s.emitError(ctx, telemetry.StageCache, "cache_write_failed", map[string]interface{}{
			"jurisdiction_id": j.ID,
			"error":           err.Error(),
		})
	} else if !written {
		s.Log.Debug("Newer ordinance already cached", map[string]interface{}{"jurisdiction_id": j.ID})
	}

	if previousHash != "" && previousHash != raw.Hash {
		s.emitMetric(ctx, "ordinance_changed", 1, map[string]string{
			"jurisdiction":  j.ID,
			"previous_hash": previousHash,
			"current_hash":  raw.Hash,
		})
		s.Log.Info("Ordinance content changed", map[string]interface{}{
			"jurisdiction_id": j.ID,
			"previous_hash":   previousHash,
			"current_hash":    raw.Hash,
		})
	}

	return &flightResult{
		rules:   rules,
		source:  models.SourceFreshFetch,
		calls:   raw.Calls,
		bytes:   int64(len(raw.Body)),
		memoHit: memoHit,
	}, nil
}

// parse normalizes content with the jurisdiction's parser variant. Panics
// are converted into parse errors.
func (s *analysisService) parse(ctx context.Context, j *models.Jurisdiction, content []byte, hash string) (rules *models.NormalizedRules, memoHit bool, err error) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			rules, memoHit = nil, false
			err = &parser.ParseError{Variant: j.Parser, Err: fmt.Errorf("%w: panic: %v", parser.ErrMalformedDocument, r)}
		}
		if err != nil {
			s.emitError(ctx, telemetry.StageParse, "parse_failed", map[string]interface{}{
				"jurisdiction_id": j.ID,
				"variant":         j.Parser,
				"error":           err.Error(),
			})
			return
		}
		s.emitMetric(ctx, "parse_duration_ms", float64(s.now().Sub(started).Milliseconds()), map[string]string{
			"jurisdiction": j.ID,
			"memo_hit":     fmt.Sprint(memoHit),
		})
		if rules.Partial {
			s.emitError(ctx, telemetry.StageParse, "partial_parse", map[string]interface{}{
				"jurisdiction_id": j.ID,
				"warnings":        len(rules.Warnings),
			})
		}
		if !memoHit {
			s.snapshot(ctx, rules)
		}
	}()

	return s.Parser.Parse(parser.Document{JurisdictionID: j.ID, Content: content, Hash: hash}, j.Parser)
}

// snapshot records the parsed districts for version history.
func (s *analysisService) snapshot(ctx context.Context, rules *models.NormalizedRules) {
	if s.Districts == nil {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	if err := s.Districts.SaveSnapshot(pctx, rules); err != nil {
		s.emitError(ctx, telemetry.StagePersist, "snapshot_failed", map[string]interface{}{
			"jurisdiction_id": rules.JurisdictionID,
			"error":           err.Error(),
		})
	}
}
