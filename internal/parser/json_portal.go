package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// portalExport is the zoning export of an electronic permitting portal.
type portalExport struct {
	Section   string           `json:"section"`
	Districts []portalDistrict `json:"districts"`
}

type portalDistrict struct {
	Code        string                     `json:"code"`
	Name        string                     `json:"name"`
	Category    string                     `json:"category"`
	Description string                     `json:"description"`
	Section     string                     `json:"section"`
	Standards   map[string]json.RawMessage `json:"standards"`
	Uses        []portalUse                `json:"uses"`
}

type portalUse struct {
	Name       string `json:"name"`
	Permission string `json:"permission"`
	Conditions string `json:"conditions"`
}

// portalMeasure is the object form of a standard value: {"value": 25, "unit": "ft"}.
type portalMeasure struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

type jsonPortalAdapter struct {
	districts []models.ZoningDistrict
	standards map[string]models.DimensionalStandards
	uses      []models.AllowedUse
	warnings  []string
}

// NewJSONPortalAdapter parses a permitting portal JSON export.
func NewJSONPortalAdapter(content []byte) (Extractor, error) {
	var export portalExport
	if err := json.Unmarshal(content, &export); err != nil {
		return nil, fmt.Errorf("invalid portal export: %w", err)
	}

	a := &jsonPortalAdapter{standards: make(map[string]models.DimensionalStandards)}
	for i, pd := range export.Districts {
		if pd.Code == "" {
			a.warnings = append(a.warnings, fmt.Sprintf("district %d: missing code", i+1))
			continue
		}

		section := pd.Section
		if section == "" {
			section = export.Section
		}
		d := models.ZoningDistrict{
			Code:        pd.Code,
			Name:        pd.Name,
			Description: pd.Description,
			Section:     section,
		}
		if c, ok := parseCategory(pd.Category); ok {
			d.Category = c
		}
		a.districts = append(a.districts, d)

		if len(pd.Standards) > 0 {
			a.standards[pd.Code] = a.readStandards(pd.Code, pd.Standards)
		}

		for _, u := range pd.Uses {
			permission, ok := parsePermission(u.Permission)
			if !ok || u.Name == "" {
				a.warnings = append(a.warnings, fmt.Sprintf("district %s: use %q has permission %q", pd.Code, u.Name, u.Permission))
				continue
			}
			a.uses = append(a.uses, models.AllowedUse{
				District:   pd.Code,
				Use:        u.Name,
				Permission: permission,
				Conditions: u.Conditions,
			})
		}
	}

	return a, nil
}

func (a *jsonPortalAdapter) readStandards(code string, raw map[string]json.RawMessage) models.DimensionalStandards {
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var s models.DimensionalStandards
	for _, label := range labels {
		value := raw[label]
		field := standardField(&s, label)
		if field == nil {
			continue
		}
		v, err := decodePortalValue(value)
		if err != nil {
			a.warnings = append(a.warnings, fmt.Sprintf("district %s: %s: %v", code, label, err))
			continue
		}
		if v != nil {
			*field = v
		}
	}
	return s
}

// decodePortalValue accepts a number, a string such as "25 ft", an object
// with value and unit, or null.
func decodePortalValue(raw json.RawMessage) (*float64, error) {
	var number *float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parseMeasure(text)
	}

	var measure portalMeasure
	if err := json.Unmarshal(raw, &measure); err == nil {
		if measure.Value == nil {
			return nil, nil
		}
		return parseMeasure(strconv.FormatFloat(*measure.Value, 'f', -1, 64) + " " + measure.Unit)
	}

	return nil, fmt.Errorf("%w: %s", errMalformedValue, string(raw))
}

func (a *jsonPortalAdapter) ExtractDistricts() []models.ZoningDistrict { return a.districts }

func (a *jsonPortalAdapter) ExtractDimensionalStandards() map[string]models.DimensionalStandards {
	return a.standards
}

func (a *jsonPortalAdapter) ExtractAllowedUses() []models.AllowedUse { return a.uses }

func (a *jsonPortalAdapter) Warnings() []string { return a.warnings }
