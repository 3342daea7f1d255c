package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/stwalsh4118/zoning-engine/internal/errors"
	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/parser"
	"github.com/stwalsh4118/zoning-engine/internal/registry"
	"github.com/stwalsh4118/zoning-engine/internal/repository"
)

// JurisdictionHandler exposes the loaded jurisdiction manifest and the parsed
// district history.
type JurisdictionHandler struct {
	registry  registry.Registry
	districts repository.DistrictRepository
}

// NewJurisdictionHandler creates a new JurisdictionHandler instance.
func NewJurisdictionHandler(reg registry.Registry, districts repository.DistrictRepository) *JurisdictionHandler {
	return &JurisdictionHandler{registry: reg, districts: districts}
}

// JurisdictionListResponse is the body of GET /api/v1/jurisdictions.
type JurisdictionListResponse struct {
	ManifestVersion string                `json:"manifest_version"`
	Jurisdictions   []models.Jurisdiction `json:"jurisdictions"`
	Count           int                   `json:"count"`
}

// DistrictVersionsResponse is the body of the district history endpoint.
type DistrictVersionsResponse struct {
	JurisdictionID string                       `json:"jurisdiction_id"`
	DistrictCode   string                       `json:"district_code"`
	Versions       []repository.DistrictVersion `json:"versions"`
	Count          int                          `json:"count"`
}

// List handles GET /api/v1/jurisdictions.
func (h *JurisdictionHandler) List(c *gin.Context) {
	jurisdictions := h.registry.List()

	c.JSON(http.StatusOK, JurisdictionListResponse{
		ManifestVersion: h.registry.ManifestVersion(),
		Jurisdictions:   jurisdictions,
		Count:           len(jurisdictions),
	})
}

// Get handles GET /api/v1/jurisdictions/:id.
func (h *JurisdictionHandler) Get(c *gin.Context) {
	id := c.Param("id")

	jurisdiction, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrJurisdictionNotFound) {
			apierrors.NotFound(c, "Jurisdiction not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load jurisdiction", err)
		return
	}

	c.JSON(http.StatusOK, jurisdiction)
}

// DistrictVersions handles GET /api/v1/jurisdictions/:id/districts/:code/versions.
// Every distinct ordinance text that produced the district is listed, newest first.
func (h *JurisdictionHandler) DistrictVersions(c *gin.Context) {
	jurisdiction, err := h.registry.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrJurisdictionNotFound) {
			apierrors.NotFound(c, "Jurisdiction not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load jurisdiction", err)
		return
	}

	code := parser.NormalizeCode(c.Param("code"))
	versions, err := h.districts.ListVersions(c.Request.Context(), jurisdiction.ID, code)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to query district versions", err)
		return
	}
	if len(versions) == 0 {
		apierrors.NotFound(c, "No parsed versions of this district")
		return
	}

	c.JSON(http.StatusOK, DistrictVersionsResponse{
		JurisdictionID: jurisdiction.ID,
		DistrictCode:   code,
		Versions:       versions,
		Count:          len(versions),
	})
}
