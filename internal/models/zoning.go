package models

import "time"

// DistrictCategory is the broad land-use class of a zoning district.
type DistrictCategory string

const (
	CategoryResidential  DistrictCategory = "residential"
	CategoryCommercial   DistrictCategory = "commercial"
	CategoryIndustrial   DistrictCategory = "industrial"
	CategoryMixed        DistrictCategory = "mixed"
	CategoryAgricultural DistrictCategory = "agricultural"
	CategoryOther        DistrictCategory = "other"
)

// Permission is the permission tier of a use within a district.
type Permission string

const (
	PermissionByRight     Permission = "by_right"
	PermissionConditional Permission = "conditional"
	PermissionProhibited  Permission = "prohibited"
)

// ZoningDistrict is a named zoning designation within a jurisdiction.
type ZoningDistrict struct {
	Code        string                `json:"code"`
	Name        string                `json:"name"`
	Category    DistrictCategory      `json:"category"`
	Description string                `json:"description,omitempty"`
	Section     string                `json:"section,omitempty"`
	Standards   *DimensionalStandards `json:"standards,omitempty"`
	Uses        []AllowedUse          `json:"uses,omitempty"`
}

// DimensionalStandards holds the numeric constraints of a district.
// A nil field means the ordinance did not state it; it is never defaulted to zero.
// Units: lot size in square feet, lengths in feet, coverage in percent,
// density in dwelling units per acre, parking in spaces per dwelling unit.
type DimensionalStandards struct {
	MinLotSize       *float64 `json:"min_lot_size,omitempty"`
	MinLotWidth      *float64 `json:"min_lot_width,omitempty"`
	FrontSetback     *float64 `json:"front_setback,omitempty"`
	SideSetback      *float64 `json:"side_setback,omitempty"`
	RearSetback      *float64 `json:"rear_setback,omitempty"`
	CornerSetback    *float64 `json:"corner_setback,omitempty"`
	MaxHeight        *float64 `json:"max_height,omitempty"`
	MaxStories       *float64 `json:"max_stories,omitempty"`
	MaxLotCoverage   *float64 `json:"max_lot_coverage,omitempty"`
	MaxFAR           *float64 `json:"max_far,omitempty"`
	MaxDensity       *float64 `json:"max_density,omitempty"`
	MinParkingSpaces *float64 `json:"min_parking_spaces,omitempty"`
}

// AllowedUse is a (district, use) pair with its permission tier.
type AllowedUse struct {
	District   string     `json:"district"`
	Use        string     `json:"use"`
	Permission Permission `json:"permission"`
	Conditions string     `json:"conditions,omitempty"`
}

// NormalizedRules is the jurisdiction-independent rule set produced by the parser.
// Instances are shared between concurrent analyses and must not be mutated
// after parsing.
type NormalizedRules struct {
	JurisdictionID string           `json:"jurisdiction_id"`
	Variant        string           `json:"variant"`
	ContentHash    string           `json:"content_hash"`
	Districts      []ZoningDistrict `json:"districts"`
	Partial        bool             `json:"partial"`
	Warnings       []string         `json:"warnings,omitempty"`
	Flags          []string         `json:"flags,omitempty"`
	ParsedAt       time.Time        `json:"parsed_at"`
}

// District returns the district with the given code, or nil.
func (r *NormalizedRules) District(code string) *ZoningDistrict {
	if r == nil {
		return nil
	}
	for i := range r.Districts {
		if r.Districts[i].Code == code {
			return &r.Districts[i]
		}
	}
	return nil
}

// Float returns a pointer to v. Used for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
