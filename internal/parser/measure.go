package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

const squareFeetPerAcre = 43560.0

var errMalformedValue = errors.New("malformed value")

var (
	measurePattern = regexp.MustCompile(`^(-?\d[\d,]*(?:\.\d+)?|-?\.\d+)\s*(.*)$`)
	parenthetical  = regexp.MustCompile(`\([^)]*\)`)
	labelNoise     = regexp.MustCompile(`\b(minimum|min|maximum|max|required|allowed|permitted)\b`)
)

// unitFactors converts a unit suffix to the canonical unit of its standard.
var unitFactors = map[string]float64{
	"": 1, "ft": 1, "feet": 1, "foot": 1, "'": 1,
	"sf": 1, "sq ft": 1, "sqft": 1, "square feet": 1,
	"%": 1, "percent": 1,
	"stories": 1, "story": 1,
	"units/acre": 1, "units per acre": 1, "du/ac": 1, "du/acre": 1, "du": 1, "units": 1,
	"spaces": 1, "spaces/unit": 1, "spaces per unit": 1, "per unit": 1, "per du": 1,
	"per dwelling unit": 1, "spaces per dwelling unit": 1,
	"ac": squareFeetPerAcre, "acre": squareFeetPerAcre, "acres": squareFeetPerAcre,
}

var blankValues = map[string]bool{
	"": true, "-": true, "n/a": true, "na": true, "none": true, "nr": true, "—": true, "–": true,
}

// parseMeasure parses a dimensional value such as "7,500 sq ft", "25'",
// "35%" or "0.5 acres". A blank or "n/a" value returns nil and no error;
// a value that cannot be read returns errMalformedValue.
func parseMeasure(raw string) (*float64, error) {
	s := strings.ToLower(NormalizeText(raw))
	if blankValues[s] {
		return nil, nil
	}

	m := measurePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", errMalformedValue, raw)
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errMalformedValue, raw)
	}

	unit := strings.TrimSpace(parenthetical.ReplaceAllString(m[2], ""))
	unit = strings.Join(strings.Fields(strings.ReplaceAll(unit, ".", "")), " ")
	factor, ok := unitFactors[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unknown unit %q in %q", errMalformedValue, unit, raw)
	}

	return models.Float(v * factor), nil
}

type fieldAccessor func(*models.DimensionalStandards) **float64

var (
	lotSizeField  fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MinLotSize }
	lotWidthField fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MinLotWidth }
	frontField    fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.FrontSetback }
	sideField     fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.SideSetback }
	rearField     fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.RearSetback }
	cornerField   fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.CornerSetback }
	heightField   fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MaxHeight }
	storiesField  fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MaxStories }
	coverageField fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MaxLotCoverage }
	farField      fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MaxFAR }
	densityField  fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MaxDensity }
	parkingField  fieldAccessor = func(s *models.DimensionalStandards) **float64 { return &s.MinParkingSpaces }
)

var standardLabels = map[string]fieldAccessor{
	"lot size": lotSizeField, "lot area": lotSizeField,
	"lot width": lotWidthField,
	"front": frontField, "front setback": frontField, "front yard": frontField, "front yard setback": frontField,
	"side": sideField, "side setback": sideField, "side yard": sideField, "side yard setback": sideField,
	"interior side setback": sideField, "interior side yard": sideField,
	"rear": rearField, "rear setback": rearField, "rear yard": rearField, "rear yard setback": rearField,
	"corner": cornerField, "corner setback": cornerField, "corner side setback": cornerField,
	"corner side yard": cornerField, "street side setback": cornerField, "street side yard": cornerField,
	"height": heightField, "building height": heightField,
	"stories": storiesField, "number of stories": storiesField, "building stories": storiesField,
	"lot coverage": coverageField, "coverage": coverageField, "building coverage": coverageField,
	"far": farField, "floor area ratio": farField,
	"density": densityField, "residential density": densityField,
	"dwelling units per acre": densityField, "units per acre": densityField,
	"parking": parkingField, "parking spaces": parkingField, "parking spaces per unit": parkingField,
	"parking per unit": parkingField, "off street parking": parkingField,
}

// standardField resolves an ordinance label like "Minimum Front Yard (ft)"
// to the matching field of s. It returns nil for labels that are not
// dimensional standards.
func standardField(s *models.DimensionalStandards, label string) **float64 {
	key := NormalizeUse(parenthetical.ReplaceAllString(label, ""))
	key = strings.Join(strings.Fields(labelNoise.ReplaceAllString(key, "")), " ")
	if accessor, ok := standardLabels[key]; ok {
		return accessor(s)
	}
	return nil
}

// isStandardLabel reports whether label names a dimensional standard.
func isStandardLabel(label string) bool {
	return standardField(&models.DimensionalStandards{}, label) != nil
}
