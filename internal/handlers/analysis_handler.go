package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/stwalsh4118/zoning-engine/internal/errors"
	"github.com/stwalsh4118/zoning-engine/internal/middleware"
	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/registry"
	"github.com/stwalsh4118/zoning-engine/internal/services"
)

// AnalysisHandler handles compliance analysis requests.
type AnalysisHandler struct {
	service services.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler instance.
func NewAnalysisHandler(service services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
	}
}

// AnalyzeRequest is the body of POST /api/v1/analyses.
type AnalyzeRequest struct {
	PropertyID         string                    `json:"property_id" binding:"required,max=128"`
	JurisdictionID     string                    `json:"jurisdiction_id" binding:"required,max=64"`
	ZoningDistrict     string                    `json:"zoning_district" binding:"max=32"`
	Address            string                    `json:"address" binding:"max=500"`
	CurrentUse         string                    `json:"current_use" binding:"max=200"`
	ProposedUse        string                    `json:"proposed_use" binding:"max=200"`
	ProposedDimensions models.ProposedDimensions `json:"proposed_dimensions"`
}

// HistoryRequest holds the query parameters of the history endpoint.
type HistoryRequest struct {
	Limit int `form:"limit" json:"limit" binding:"omitempty,min=1,max=100"`
}

// HistoryResponse lists stored analyses for one property.
type HistoryResponse struct {
	PropertyID string                      `json:"property_id"`
	Analyses   []models.ComplianceAnalysis `json:"analyses"`
	Count      int                         `json:"count"`
}

// Create handles POST /api/v1/analyses.
// Only an unknown jurisdiction or malformed input fails the request; every
// pipeline failure is reflected in the returned analysis instead.
func (h *AnalysisHandler) Create(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing analysis request", map[string]interface{}{
			"property_id":     req.PropertyID,
			"jurisdiction_id": req.JurisdictionID,
			"district":        req.ZoningDistrict,
		})
	}

	analysis, err := h.service.Analyze(c.Request.Context(), req.toProperty())
	if err != nil {
		var configErr *registry.ConfigError
		if errors.As(err, &configErr) {
			apierrors.UnknownJurisdiction(c, configErr.JurisdictionID)
			return
		}
		if errors.Is(err, services.ErrInvalidRequest) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to analyze property", err)
		return
	}

	c.Header(middleware.LocationHeader, "/api/v1/analyses/"+analysis.ID)
	c.JSON(http.StatusCreated, analysis)
}

// Get handles GET /api/v1/analyses/:id.
func (h *AnalysisHandler) Get(c *gin.Context) {
	id := c.Param("id")

	analysis, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			apierrors.BadRequest(c, err.Error(), map[string]interface{}{"id": id})
			return
		}
		if errors.Is(err, services.ErrAnalysisNotFound) {
			apierrors.NotFound(c, "Analysis not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to query analysis", err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// History handles GET /api/v1/properties/:propertyId/analyses.
func (h *AnalysisHandler) History(c *gin.Context) {
	propertyID := c.Param("propertyId")

	var req HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", map[string]interface{}{
			"limit": c.Query("limit"),
		})
		return
	}

	analyses, err := h.service.History(c.Request.Context(), propertyID, req.Limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			apierrors.BadRequest(c, err.Error(), map[string]interface{}{"limit": strconv.Itoa(req.Limit)})
			return
		}
		apierrors.InternalServerError(c, "Failed to query analysis history", err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		PropertyID: propertyID,
		Analyses:   analyses,
		Count:      len(analyses),
	})
}

func (r AnalyzeRequest) toProperty() models.Property {
	return models.Property{
		ParcelID:           r.PropertyID,
		Address:            r.Address,
		JurisdictionID:     r.JurisdictionID,
		ZoningDistrict:     r.ZoningDistrict,
		CurrentUse:         r.CurrentUse,
		ProposedUse:        r.ProposedUse,
		ProposedDimensions: r.ProposedDimensions,
	}
}
