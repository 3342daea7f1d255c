package parser

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

var dashReplacer = strings.NewReplacer(
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "−", "-",
)

var useSeparators = strings.NewReplacer("-", " ", "_", " ", "/", " ", ".", "", ",", "", "*", "", "’", "'")

// NormalizeText applies NFKC and collapses whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// NormalizeUse returns the comparison key for a use name. Two names with the
// same key refer to the same use.
func NormalizeUse(s string) string {
	folded := cases.Fold().String(NormalizeText(dashReplacer.Replace(s)))
	return strings.Join(strings.Fields(useSeparators.Replace(folded)), " ")
}

// NormalizeCode returns the canonical form of a district code, e.g. "r 2" -> "R-2".
func NormalizeCode(s string) string {
	code := cases.Upper(language.Und).String(NormalizeText(dashReplacer.Replace(s)))
	code = strings.ReplaceAll(code, " - ", "-")
	return strings.Join(strings.Fields(code), "-")
}

// parsePermission maps a use-matrix cell or permission label to a tier.
// ok is false for blank cells (use not listed) and unrecognized values.
func parsePermission(s string) (models.Permission, bool) {
	switch NormalizeUse(s) {
	case "p", "y", "yes", "permitted", "by right", "allowed", "permitted by right", "principal", "accessory":
		return models.PermissionByRight, true
	case "c", "s", "se", "cu", "sup", "conditional", "conditional use", "special exception", "special use":
		return models.PermissionConditional, true
	case "x", "", "n", "no", "np", "prohibited", "not permitted":
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return models.PermissionProhibited, true
	}
	return "", false
}

// inferCategory guesses a district category from its code and name when the
// ordinance does not state one.
func inferCategory(code, name string) models.DistrictCategory {
	if c, ok := parseCategory(name); ok {
		return c
	}

	code = NormalizeCode(code)
	switch {
	case strings.HasPrefix(code, "MU"), strings.HasPrefix(code, "PUD"), strings.HasPrefix(code, "MX"):
		return models.CategoryMixed
	case strings.HasPrefix(code, "AG"), strings.HasPrefix(code, "A-"), code == "A":
		return models.CategoryAgricultural
	case strings.HasPrefix(code, "R"):
		return models.CategoryResidential
	case strings.HasPrefix(code, "C"), strings.HasPrefix(code, "B"):
		return models.CategoryCommercial
	case strings.HasPrefix(code, "I"), strings.HasPrefix(code, "M"):
		return models.CategoryIndustrial
	}
	return models.CategoryOther
}

// parseCategory recognizes explicit category labels and district names that
// contain one.
func parseCategory(s string) (models.DistrictCategory, bool) {
	key := NormalizeUse(s)
	switch {
	case key == "":
		return "", false
	case strings.Contains(key, "mixed"):
		return models.CategoryMixed, true
	case strings.Contains(key, "residential"), strings.Contains(key, "single family"), strings.Contains(key, "multi family"):
		return models.CategoryResidential, true
	case strings.Contains(key, "commercial"), strings.Contains(key, "business"), strings.Contains(key, "retail"):
		return models.CategoryCommercial, true
	case strings.Contains(key, "industrial"), strings.Contains(key, "manufacturing"):
		return models.CategoryIndustrial, true
	case strings.Contains(key, "agricultur"), strings.Contains(key, "rural"):
		return models.CategoryAgricultural, true
	case key == "other":
		return models.CategoryOther, true
	}
	return "", false
}
