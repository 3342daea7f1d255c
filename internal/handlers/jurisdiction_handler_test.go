package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/stwalsh4118/zoning-engine/internal/errors"
	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/registry"
	"github.com/stwalsh4118/zoning-engine/internal/repository"
)

const handlerManifest = `
version: 3.0.0
jurisdictions:
  - id: titusville
    name: City of Titusville
    version: 1.0.3
    parser: plain_text
    source:
      urls:
        - https://example.test/titusville/zoning.txt
      headers:
        Authorization: Bearer secret
    fees:
      application: 300
  - id: melbourne
    name: City of Melbourne
    version: 2.1.0
    parser: html_table
    source:
      urls:
        - https://example.test/melbourne/districts
    fees:
      application: 450
      variance: 750
`

// MockDistrictRepository is a mock implementation of repository.DistrictRepository for testing.
type MockDistrictRepository struct {
	mock.Mock
}

func (m *MockDistrictRepository) SaveSnapshot(ctx context.Context, rules *models.NormalizedRules) error {
	args := m.Called(ctx, rules)
	return args.Error(0)
}

func (m *MockDistrictRepository) ListVersions(ctx context.Context, jurisdictionID, code string) ([]repository.DistrictVersion, error) {
	args := m.Called(ctx, jurisdictionID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.DistrictVersion), args.Error(1)
}

func setupJurisdictionTestRouterWith(t *testing.T, districts repository.DistrictRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := registry.Parse([]byte(handlerManifest), []string{"html_table", "plain_text"})
	require.NoError(t, err)

	handler := NewJurisdictionHandler(reg, districts)
	router := gin.New()
	router.GET("/api/v1/jurisdictions", handler.List)
	router.GET("/api/v1/jurisdictions/:id", handler.Get)
	router.GET("/api/v1/jurisdictions/:id/districts/:code/versions", handler.DistrictVersions)
	return router
}

func setupJurisdictionTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return setupJurisdictionTestRouterWith(t, new(MockDistrictRepository))
}

func TestJurisdictionHandler_List(t *testing.T) {
	router := setupJurisdictionTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response JurisdictionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "3.0.0", response.ManifestVersion)
	require.Equal(t, 2, response.Count)
	assert.Equal(t, "melbourne", response.Jurisdictions[0].ID)
	assert.Equal(t, "titusville", response.Jurisdictions[1].ID)
}

func TestJurisdictionHandler_List_HidesSourceHeaders(t *testing.T) {
	router := setupJurisdictionTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions", nil))

	assert.NotContains(t, w.Body.String(), "secret")
}

func TestJurisdictionHandler_Get(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		expectedStatus int
		expectedName   string
	}{
		{name: "exact id", id: "melbourne", expectedStatus: http.StatusOK, expectedName: "City of Melbourne"},
		{name: "case-insensitive id", id: "TITUSVILLE", expectedStatus: http.StatusOK, expectedName: "City of Titusville"},
		{name: "unknown id", id: "atlantis", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupJurisdictionTestRouter(t)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions/"+tt.id, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				var response apierrors.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, apierrors.ErrNotFound, response.Error.Code)
				return
			}

			var got models.Jurisdiction
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.expectedName, got.Name)
		})
	}
}

func TestJurisdictionHandler_DistrictVersions(t *testing.T) {
	parsedAt := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	versions := []repository.DistrictVersion{
		{
			JurisdictionID: "melbourne",
			ContentHash:    "hash-new",
			Variant:        "html_table",
			District:       models.ZoningDistrict{Code: "R-2", Name: "Two-Family Residential"},
			ParsedAt:       parsedAt,
		},
		{
			JurisdictionID: "melbourne",
			ContentHash:    "hash-old",
			Variant:        "html_table",
			District:       models.ZoningDistrict{Code: "R-2", Name: "Duplex Residential"},
			ParsedAt:       parsedAt.Add(-30 * 24 * time.Hour),
		},
	}

	t.Run("lists versions with a normalized code", func(t *testing.T) {
		districts := new(MockDistrictRepository)
		districts.On("ListVersions", mock.Anything, "melbourne", "R-2").Return(versions, nil)
		router := setupJurisdictionTestRouterWith(t, districts)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions/Melbourne/districts/r%202/versions", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response DistrictVersionsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "melbourne", response.JurisdictionID)
		assert.Equal(t, "R-2", response.DistrictCode)
		require.Equal(t, 2, response.Count)
		assert.Equal(t, "hash-new", response.Versions[0].ContentHash)
		districts.AssertExpectations(t)
	})

	t.Run("unknown jurisdiction", func(t *testing.T) {
		districts := new(MockDistrictRepository)
		router := setupJurisdictionTestRouterWith(t, districts)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions/atlantis/districts/R-2/versions", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		districts.AssertNotCalled(t, "ListVersions", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("district never parsed", func(t *testing.T) {
		districts := new(MockDistrictRepository)
		districts.On("ListVersions", mock.Anything, "melbourne", "C-9").Return([]repository.DistrictVersion{}, nil)
		router := setupJurisdictionTestRouterWith(t, districts)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions/melbourne/districts/C-9/versions", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		districts := new(MockDistrictRepository)
		districts.On("ListVersions", mock.Anything, "melbourne", "R-2").Return(nil, errors.New("connection reset"))
		router := setupJurisdictionTestRouterWith(t, districts)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jurisdictions/melbourne/districts/R-2/versions", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var response apierrors.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, apierrors.ErrInternalServer, response.Error.Code)
	})
}
