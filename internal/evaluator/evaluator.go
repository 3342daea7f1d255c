// Package evaluator compares a property proposal against normalized zoning
// rules. Evaluation is pure and cannot fail: missing data degrades the
// status or the confidence instead.
package evaluator

import (
	"fmt"
	"math"
	"strconv"

	"github.com/stwalsh4118/zoning-engine/internal/models"
	"github.com/stwalsh4118/zoning-engine/internal/parser"
)

// Confidence deductions.
const (
	MaxConfidence       = 100
	FreshCachePenalty   = 5
	StaleCachePenalty   = 25
	MissingFieldPenalty = 10
	MaxMissingPenalty   = 30
	PartialParsePenalty = 15
)

// MinorOverageRatio is the overage of a maximum below which a violation is minor.
const MinorOverageRatio = 0.05

type bound int

const (
	atLeast bound = iota
	atMost
)

type check struct {
	typ      models.ViolationType
	label    string
	unit     string
	bound    bound
	proposed *float64
	required *float64
	derived  bool // computed from other fields, never counted as missing
}

// Evaluate scores property against rules. source is recorded as the data
// provenance and drives the freshness deduction. A nil rules value yields a
// manual-review result.
func Evaluate(property models.Property, rules *models.NormalizedRules, source models.DataSource) *models.ComplianceAnalysis {
	if rules == nil || source == models.SourceManualReview {
		return ManualReview(property)
	}

	a := newAnalysis(property, source)
	a.ContentHash = rules.ContentHash

	district := rules.District(parser.NormalizeCode(property.ZoningDistrict))
	if district == nil {
		a.Status = models.StatusUnknown
		a.Confidence = 0
		return a
	}

	matched := *district
	a.ZoningDistrict = &matched
	ref := referencer{jurisdiction: property.JurisdictionID, district: district}
	a.Citations = append(a.Citations, ref.citation())

	if v := checkUse(property.ProposedUse, district, ref); v != nil {
		a.Violations = append(a.Violations, *v)
	}

	missing := 0
	for _, c := range dimensionalChecks(property.ProposedDimensions.Resolved(), district.Standards) {
		if c.proposed == nil {
			continue
		}
		if c.required == nil {
			if !c.derived {
				missing++
			}
			continue
		}
		if v := c.evaluate(ref); v != nil {
			a.Violations = append(a.Violations, *v)
		}
	}

	a.Status = models.StatusCompliant
	for _, v := range a.Violations {
		a.Status = models.StatusNonCompliant
		if v.RequiresVariance {
			a.RequiresVariance = true
		}
		a.Citations = appendUnique(a.Citations, v.CodeReference)
	}

	a.Confidence = confidence(source, missing, rules.Partial)
	return a
}

// ManualReview returns the result used when no rules could be obtained.
func ManualReview(property models.Property) *models.ComplianceAnalysis {
	a := newAnalysis(property, models.SourceManualReview)
	a.Status = models.StatusManualReview
	a.Confidence = 0
	return a
}

func newAnalysis(property models.Property, source models.DataSource) *models.ComplianceAnalysis {
	return &models.ComplianceAnalysis{
		PropertyID:     property.ParcelID,
		JurisdictionID: property.JurisdictionID,
		DataSource:     source,
		Violations:     []models.Violation{},
		Citations:      []string{},
	}
}

func confidence(source models.DataSource, missing int, partial bool) int {
	score := MaxConfidence

	switch source {
	case models.SourceFreshCache:
		score -= FreshCachePenalty
	case models.SourceStaleCache:
		score -= StaleCachePenalty
	}

	score -= min(missing*MissingFieldPenalty, MaxMissingPenalty)

	if partial {
		score -= PartialParsePenalty
	}

	return max(score, 0)
}

// checkUse looks the proposed use up in the district. Unlisted uses are
// treated as prohibited.
func checkUse(proposed string, district *models.ZoningDistrict, ref referencer) *models.Violation {
	if proposed == "" {
		return nil
	}

	key := parser.NormalizeUse(proposed)
	var found *models.AllowedUse
	for i := range district.Uses {
		if parser.NormalizeUse(district.Uses[i].Use) == key {
			found = &district.Uses[i]
			break
		}
	}

	switch {
	case found == nil:
		return &models.Violation{
			Type:          models.ViolationUse,
			Severity:      models.SeverityCritical,
			Description:   fmt.Sprintf("%q is not a listed use in district %s", proposed, district.Code),
			CodeReference: ref.uses(),
			CurrentValue:  proposed,
			RequiredValue: "listed use",
		}
	case found.Permission == models.PermissionProhibited:
		return &models.Violation{
			Type:          models.ViolationUse,
			Severity:      models.SeverityCritical,
			Description:   fmt.Sprintf("%s is prohibited in district %s", found.Use, district.Code),
			CodeReference: ref.uses(),
			CurrentValue:  proposed,
			RequiredValue: string(models.PermissionByRight),
		}
	case found.Permission == models.PermissionConditional:
		desc := fmt.Sprintf("%s requires conditional use approval in district %s", found.Use, district.Code)
		if found.Conditions != "" {
			desc += " (" + found.Conditions + ")"
		}
		return &models.Violation{
			Type:             models.ViolationUse,
			Severity:         models.SeverityMajor,
			Description:      desc,
			CodeReference:    ref.uses(),
			CurrentValue:     proposed,
			RequiredValue:    string(models.PermissionByRight),
			RequiresVariance: true,
		}
	}
	return nil
}

func dimensionalChecks(d models.ProposedDimensions, s *models.DimensionalStandards) []check {
	if s == nil {
		s = &models.DimensionalStandards{}
	}

	parking := s.MinParkingSpaces
	if parking != nil && d.DwellingUnits != nil && *d.DwellingUnits > 1 {
		parking = models.Float(*parking * *d.DwellingUnits)
	}

	return []check{
		{models.ViolationSetback, "front setback", "ft", atLeast, d.FrontSetback, s.FrontSetback, false},
		{models.ViolationSetback, "side setback", "ft", atLeast, d.SideSetback, s.SideSetback, false},
		{models.ViolationSetback, "rear setback", "ft", atLeast, d.RearSetback, s.RearSetback, false},
		{models.ViolationSetback, "corner setback", "ft", atLeast, d.CornerSetback, s.CornerSetback, false},
		{models.ViolationHeight, "building height", "ft", atMost, d.Height, s.MaxHeight, false},
		{models.ViolationStories, "stories", "", atMost, d.Stories, s.MaxStories, false},
		{models.ViolationCoverage, "lot coverage", "%", atMost, d.LotCoverage, s.MaxLotCoverage, false},
		{models.ViolationLotSize, "lot size", "sq ft", atLeast, d.LotSize, s.MinLotSize, false},
		{models.ViolationLotWidth, "lot width", "ft", atLeast, d.LotWidth, s.MinLotWidth, false},
		{models.ViolationFAR, "floor area ratio", "", atMost, d.FAR(), s.MaxFAR, true},
		{models.ViolationDensity, "density", "du/ac", atMost, d.Density(), s.MaxDensity, true},
		{models.ViolationParking, "parking spaces", "", atLeast, d.ParkingSpaces, parking, false},
	}
}

func (c check) evaluate(ref referencer) *models.Violation {
	proposed, required := *c.proposed, *c.required

	v := &models.Violation{
		Type:             c.typ,
		Severity:         models.SeverityMajor,
		CodeReference:    ref.standard(c.label),
		CurrentValue:     formatValue(proposed, c.unit),
		RequiresVariance: true,
	}

	switch c.bound {
	case atLeast:
		if proposed >= required {
			return nil
		}
		v.RequiredValue = ">= " + formatValue(required, c.unit)
		v.Description = fmt.Sprintf("Proposed %s of %s is below the required minimum of %s",
			c.label, v.CurrentValue, formatValue(required, c.unit))
	case atMost:
		if proposed <= required {
			return nil
		}
		v.RequiredValue = "<= " + formatValue(required, c.unit)
		v.Description = fmt.Sprintf("Proposed %s of %s exceeds the maximum of %s",
			c.label, v.CurrentValue, formatValue(required, c.unit))
		if required > 0 && (proposed-required)/required < MinorOverageRatio {
			v.Severity = models.SeverityMinor
		}
	}

	return v
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	switch unit {
	case "":
		return s
	case "%":
		return s + "%"
	}
	return s + " " + unit
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// referencer builds code references for one district.
type referencer struct {
	jurisdiction string
	district     *models.ZoningDistrict
}

func (r referencer) base() string {
	if r.district.Section != "" {
		return r.district.Section
	}
	return r.jurisdiction + " zoning code"
}

func (r referencer) citation() string {
	return fmt.Sprintf("%s, district %s", r.base(), r.district.Code)
}

func (r referencer) uses() string {
	return fmt.Sprintf("%s, district %s permitted uses", r.base(), r.district.Code)
}

func (r referencer) standard(label string) string {
	return fmt.Sprintf("%s, district %s %s", r.base(), r.district.Code, label)
}
