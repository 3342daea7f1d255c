package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/zoning-engine/internal/cache"
	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/testutil"
)

var _ cache.Store = (*OrdinanceCacheRepository)(nil)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleAnalysis(propertyID string, createdAt time.Time) *models.ComplianceAnalysis {
	return &models.ComplianceAnalysis{
		ID:             uuid.NewString(),
		CorrelationID:  "corr-" + propertyID,
		PropertyID:     propertyID,
		JurisdictionID: "melbourne",
		Status:         models.StatusNonCompliant,
		DataSource:     models.SourceFreshCache,
		ContentHash:    "abc123",
		Confidence:     95,
		ZoningDistrict: &models.ZoningDistrict{
			Code:     "R-2",
			Name:     "Multi-Family Residential",
			Category: models.CategoryResidential,
			Standards: &models.DimensionalStandards{
				MaxHeight: models.Float(35),
			},
		},
		Violations: []models.Violation{
			{
				Type:             models.ViolationHeight,
				Severity:         models.SeverityMinor,
				Description:      "Height exceeds maximum",
				CodeReference:    "Sec. 4.2, district R-2, maximum height",
				CurrentValue:     "36 ft",
				RequiredValue:    "35 ft",
				RequiresVariance: true,
			},
			{
				Type:             models.ViolationSetback,
				Severity:         models.SeverityMajor,
				Description:      "Front setback below minimum",
				CurrentValue:     "15 ft",
				RequiredValue:    "25 ft",
				RequiresVariance: true,
			},
		},
		Citations:        []string{"Sec. 4.2, district R-2"},
		RequiresVariance: true,
		Process: &models.ProcessEstimate{
			EstimatedFees:         1200,
			EstimatedTimelineDays: 75,
			PublicHearing:         true,
		},
		Timing:    models.Timing{StartedAt: createdAt, CompletedAt: createdAt.Add(40 * time.Millisecond), DurationMs: 40},
		Cost:      models.Cost{FetchCalls: 2, BytesFetched: 2048},
		CreatedAt: createdAt,
	}
}

func TestAnalysisRepository_CreateAndGet(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewAnalysisRepository(tdb.DB)
	ctx := context.Background()

	want := sampleAnalysis("parcel-1", baseTime)
	require.NoError(t, repo.Create(ctx, want))

	got, err := repo.GetByID(ctx, want.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.DataSource, got.DataSource)
	assert.Equal(t, want.Confidence, got.Confidence)
	assert.Equal(t, want.Violations, got.Violations, "violations keep their order")
	assert.Equal(t, want.Citations, got.Citations)
	assert.Equal(t, want.Process, got.Process)
	assert.Equal(t, want.Cost, got.Cost)
	assert.Equal(t, "R-2", got.ZoningDistrict.Code)
	assert.Equal(t, 35.0, *got.ZoningDistrict.Standards.MaxHeight)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestAnalysisRepository_CreateWithoutDistrict(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewAnalysisRepository(tdb.DB)
	ctx := context.Background()

	a := sampleAnalysis("parcel-mr", baseTime)
	a.Status = models.StatusManualReview
	a.DataSource = models.SourceManualReview
	a.Confidence = 0
	a.ZoningDistrict = nil
	a.Process = nil
	a.Violations = nil
	a.Citations = nil
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ZoningDistrict)
	assert.Nil(t, got.Process)
	assert.Empty(t, got.Violations)
	assert.NotNil(t, got.Violations)
	assert.Empty(t, got.Citations)
}

func TestAnalysisRepository_DuplicateIDFails(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewAnalysisRepository(tdb.DB)
	ctx := context.Background()

	a := sampleAnalysis("parcel-dup", baseTime)
	require.NoError(t, repo.Create(ctx, a))
	assert.Error(t, repo.Create(ctx, a), "analyses are append-only")
}

func TestAnalysisRepository_GetByID_NotFound(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	repo := NewAnalysisRepository(tdb.DB)

	got, err := repo.GetByID(context.Background(), uuid.NewString())
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByID(context.Background(), "not-a-uuid")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestAnalysisRepository_ListByProperty(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewAnalysisRepository(tdb.DB)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, sampleAnalysis("parcel-h", baseTime.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, sampleAnalysis("parcel-other", baseTime)))

	list, err := repo.ListByProperty(ctx, "parcel-h", 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt), "newest first")
	assert.Len(t, list[0].Violations, 2)

	limited, err := repo.ListByProperty(ctx, "parcel-h", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := repo.ListByProperty(ctx, "parcel-none", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestOrdinanceCacheRepository_PutAndGet(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewOrdinanceCacheRepository(tdb.DB)
	ctx := context.Background()

	missing, err := repo.Get(ctx, "melbourne")
	require.NoError(t, err)
	assert.Nil(t, missing)

	entry := &models.OrdinanceCacheEntry{
		JurisdictionID: "melbourne",
		Content:        []byte("<table></table>"),
		ContentType:    "text/html",
		ContentHash:    models.ContentHash([]byte("<table></table>")),
		SourceURL:      "https://library.municode.com/fl/melbourne",
		FetchedAt:      baseTime,
		ExpiresAt:      baseTime.Add(7 * 24 * time.Hour),
	}
	written, err := repo.Put(ctx, entry)
	require.NoError(t, err)
	assert.True(t, written)

	got, err := repo.Get(ctx, "melbourne")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Content, got.Content)
	assert.Equal(t, entry.ContentHash, got.ContentHash)
	assert.True(t, entry.FetchedAt.Equal(got.FetchedAt))
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))
}

func TestOrdinanceCacheRepository_OlderFetchNeverOverwritesNewer(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewOrdinanceCacheRepository(tdb.DB)
	ctx := context.Background()

	newer := &models.OrdinanceCacheEntry{
		JurisdictionID: "titusville", Content: []byte("newer"), ContentHash: "n",
		FetchedAt: baseTime.Add(time.Hour), ExpiresAt: baseTime.Add(2 * time.Hour),
	}
	older := &models.OrdinanceCacheEntry{
		JurisdictionID: "titusville", Content: []byte("older"), ContentHash: "o",
		FetchedAt: baseTime, ExpiresAt: baseTime.Add(time.Hour),
	}

	written, err := repo.Put(ctx, newer)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repo.Put(ctx, older)
	require.NoError(t, err)
	assert.False(t, written)

	got, err := repo.Get(ctx, "titusville")
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got.Content))
}

func TestOrdinanceCacheRepository_ConcurrentWritersConverge(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewOrdinanceCacheRepository(tdb.DB)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fetched := baseTime.Add(time.Duration(i) * time.Minute)
			_, err := repo.Put(ctx, &models.OrdinanceCacheEntry{
				JurisdictionID: "palm-bay", Content: []byte{byte('a' + i)}, ContentHash: "hash",
				FetchedAt: fetched, ExpiresAt: fetched.Add(time.Hour),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "palm-bay")
	require.NoError(t, err)
	assert.Equal(t, "h", string(got.Content), "the latest fetch wins")
	assert.True(t, baseTime.Add(7*time.Minute).Equal(got.FetchedAt))
}

func TestOrdinanceCacheRepository_ThroughOrdinanceCache(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	c := cache.New(NewOrdinanceCacheRepository(tdb.DB), time.Hour).
		WithClock(func() time.Time { return baseTime.Add(2 * time.Hour) })
	ctx := context.Background()

	_, err := c.Put(ctx, models.OrdinanceCacheEntry{
		JurisdictionID: "melbourne", Content: []byte("x"), FetchedAt: baseTime,
	})
	require.NoError(t, err)

	entry, err := c.Get(ctx, "melbourne")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, c.Fresh(entry), "expired entries are kept for fallback")
	assert.Equal(t, models.ContentHash([]byte("x")), entry.ContentHash)
}

func TestDistrictRepository_SaveSnapshot(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	tdb.Reset(t)
	repo := NewDistrictRepository(tdb.DB)
	ctx := context.Background()

	rules := &models.NormalizedRules{
		JurisdictionID: "melbourne",
		Variant:        models.ParserHTMLTable,
		ContentHash:    "v1",
		ParsedAt:       baseTime,
		Districts: []models.ZoningDistrict{
			{Code: "R-1", Name: "Single-Family", Category: models.CategoryResidential},
			{Code: "C-1", Name: "Commercial", Category: models.CategoryCommercial},
		},
	}
	require.NoError(t, repo.SaveSnapshot(ctx, rules))
	require.NoError(t, repo.SaveSnapshot(ctx, rules), "saving the same version twice is a no-op")

	next := *rules
	next.ContentHash = "v2"
	next.ParsedAt = baseTime.Add(24 * time.Hour)
	next.Districts = []models.ZoningDistrict{
		{Code: "R-1", Name: "Single-Family Residential", Category: models.CategoryResidential},
	}
	require.NoError(t, repo.SaveSnapshot(ctx, &next))

	versions, err := repo.ListVersions(ctx, "melbourne", "R-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].ContentHash)
	assert.Equal(t, "Single-Family Residential", versions[0].District.Name)
	assert.Equal(t, "v1", versions[1].ContentHash)

	none, err := repo.ListVersions(ctx, "melbourne", "I-1")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.NoError(t, repo.SaveSnapshot(ctx, nil))
}
