package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

var (
	districtHeading = regexp.MustCompile(`(?i)^(?:((?:sec(?:tion)?\.?|§)\s*[\d.\-]+)\s+)?district\s+([a-z0-9][a-z0-9.\-]{0,7})\s*(?:[:\-–—]\s*(.*))?$`)
	labelLine       = regexp.MustCompile(`^([A-Za-z][A-Za-z /()&'\-]*?)\s*:\s*(.*)$`)
)

// plainTextAdapter reads text extracted from PDF ordinances. Each district
// starts with a "DISTRICT <code>: <name>" heading followed by "Label: value"
// lines; prose lines are ignored.
type plainTextAdapter struct {
	districts []models.ZoningDistrict
	standards map[string]models.DimensionalStandards
	uses      []models.AllowedUse
	warnings  []string
}

// NewPlainTextAdapter parses a plain text ordinance.
func NewPlainTextAdapter(content []byte) (Extractor, error) {
	if !isText(content) {
		return nil, fmt.Errorf("content is not text")
	}

	a := &plainTextAdapter{standards: make(map[string]models.DimensionalStandards)}
	var current *models.ZoningDistrict
	var standards models.DimensionalStandards

	flush := func() {
		if current == nil {
			return
		}
		a.districts = append(a.districts, *current)
		if standards != (models.DimensionalStandards{}) {
			a.standards[current.Code] = standards
		}
		current = nil
		standards = models.DimensionalStandards{}
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := NormalizeText(scanner.Text())
		if line == "" {
			continue
		}

		if m := districtHeading.FindStringSubmatch(line); m != nil {
			flush()
			current = &models.ZoningDistrict{Code: m[2], Name: m[3], Section: m[1]}
			continue
		}
		if strings.HasPrefix(strings.ToUpper(line), "DISTRICT ") {
			a.warnings = append(a.warnings, fmt.Sprintf("line %d: unreadable district heading %q", lineNo, line))
			continue
		}
		if current == nil {
			continue
		}

		m := labelLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		a.readLabel(lineNo, current, &standards, m[1], m[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	flush()

	return a, nil
}

func (a *plainTextAdapter) readLabel(lineNo int, d *models.ZoningDistrict, s *models.DimensionalStandards, label, value string) {
	key := NormalizeUse(label)

	switch key {
	case "category", "district category", "type":
		if c, ok := parseCategory(value); ok {
			d.Category = c
		}
		return
	case "description", "purpose", "intent":
		d.Description = value
		return
	case "name":
		d.Name = value
		return
	}

	if strings.HasSuffix(key, "uses") || strings.HasSuffix(key, "use") {
		permission, ok := parsePermission(strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(key, "uses"), "use")))
		if !ok {
			a.warnings = append(a.warnings, fmt.Sprintf("line %d: unrecognized use list %q", lineNo, label))
			return
		}
		for _, item := range splitList(value) {
			use, conditions := splitConditions(item)
			if use == "" {
				continue
			}
			a.uses = append(a.uses, models.AllowedUse{
				District:   d.Code,
				Use:        use,
				Permission: permission,
				Conditions: conditions,
			})
		}
		return
	}

	field := standardField(s, label)
	if field == nil {
		return
	}
	v, err := parseMeasure(value)
	if err != nil {
		a.warnings = append(a.warnings, fmt.Sprintf("line %d: %s: %v", lineNo, label, err))
		return
	}
	if v != nil {
		*field = v
	}
}

func (a *plainTextAdapter) ExtractDistricts() []models.ZoningDistrict { return a.districts }

func (a *plainTextAdapter) ExtractDimensionalStandards() map[string]models.DimensionalStandards {
	return a.standards
}

func (a *plainTextAdapter) ExtractAllowedUses() []models.AllowedUse { return a.uses }

func (a *plainTextAdapter) Warnings() []string { return a.warnings }

// splitList splits a use list on semicolons, or on commas outside
// parentheses when no semicolon is present.
func splitList(s string) []string {
	if strings.Contains(s, ";") {
		return trimAll(strings.Split(s, ";"))
	}

	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return trimAll(parts)
}

func trimAll(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), ".")); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isText rejects binary content such as an unextracted PDF.
func isText(content []byte) bool {
	if bytes.HasPrefix(content, []byte("%PDF")) {
		return false
	}
	sample := content
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	return !bytes.ContainsRune(sample, 0)
}
