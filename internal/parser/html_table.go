package parser

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// table is one <table> flattened to cell text.
type table struct {
	section string
	rows    [][]string
}

type tableKind int

const (
	tableUnknown tableKind = iota
	tableDistricts
	tableStandardsByDistrict
	tableStandardsByRow
	tableUseMatrix
)

// htmlTableAdapter reads code-publisher style HTML where districts, dimensional
// standards and permitted uses are laid out as tables. Tables are recognized
// by their header row, so their order in the document does not matter.
type htmlTableAdapter struct {
	districts []models.ZoningDistrict
	standards map[string]models.DimensionalStandards
	uses      []models.AllowedUse
	warnings  []string
}

// NewHTMLTableAdapter parses an HTML ordinance.
func NewHTMLTableAdapter(content []byte) (Extractor, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("invalid html: %w", err)
	}

	tables := collectTables(doc)
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found")
	}

	a := &htmlTableAdapter{standards: make(map[string]models.DimensionalStandards)}
	for i, t := range tables {
		switch classify(t) {
		case tableDistricts:
			a.readDistricts(i, t)
		case tableStandardsByDistrict:
			a.readStandardsByDistrict(i, t)
		case tableStandardsByRow:
			a.readStandardsByRow(i, t)
		case tableUseMatrix:
			a.readUseMatrix(i, t)
		}
	}

	return a, nil
}

func (a *htmlTableAdapter) ExtractDistricts() []models.ZoningDistrict { return a.districts }

func (a *htmlTableAdapter) ExtractDimensionalStandards() map[string]models.DimensionalStandards {
	return a.standards
}

func (a *htmlTableAdapter) ExtractAllowedUses() []models.AllowedUse { return a.uses }

func (a *htmlTableAdapter) Warnings() []string { return a.warnings }

func (a *htmlTableAdapter) warn(tableIdx, rowIdx int, format string, args ...interface{}) {
	a.warnings = append(a.warnings, fmt.Sprintf("table %d row %d: ", tableIdx+1, rowIdx+1)+fmt.Sprintf(format, args...))
}

func classify(t table) tableKind {
	if len(t.rows) < 2 || len(t.rows[0]) < 2 {
		return tableUnknown
	}
	header := t.rows[0]
	first := NormalizeUse(header[0])

	switch first {
	case "use", "uses", "land use", "use type", "principal use", "principal uses":
		return tableUseMatrix
	case "standard", "standards", "requirement", "requirements", "dimension", "dimensional standard":
		return tableStandardsByRow
	case "district", "zoning district", "code", "district code", "zone":
		for _, h := range header[1:] {
			if isStandardLabel(h) {
				return tableStandardsByDistrict
			}
		}
		return tableDistricts
	}
	return tableUnknown
}

func (a *htmlTableAdapter) readDistricts(ti int, t table) {
	cols := make(map[string]int)
	for i, h := range t.rows[0] {
		cols[NormalizeUse(h)] = i
	}
	cell := func(row []string, names ...string) string {
		for _, n := range names {
			if i, ok := cols[n]; ok && i < len(row) {
				return row[i]
			}
		}
		return ""
	}

	for ri, row := range t.rows[1:] {
		if len(row) != len(t.rows[0]) {
			a.warn(ti, ri+1, "expected %d cells, got %d", len(t.rows[0]), len(row))
			continue
		}
		code := row[0]
		if strings.TrimSpace(code) == "" {
			a.warn(ti, ri+1, "missing district code")
			continue
		}

		d := models.ZoningDistrict{
			Code:        code,
			Name:        cell(row, "name", "district name", "title"),
			Description: cell(row, "description", "purpose", "intent"),
			Section:     t.section,
		}
		if c, ok := parseCategory(cell(row, "category", "type", "class")); ok {
			d.Category = c
		}
		a.districts = append(a.districts, d)
	}
}

func (a *htmlTableAdapter) readStandardsByDistrict(ti int, t table) {
	header := t.rows[0]
	for ri, row := range t.rows[1:] {
		if len(row) != len(header) {
			a.warn(ti, ri+1, "expected %d cells, got %d", len(header), len(row))
			continue
		}
		code := row[0]
		if strings.TrimSpace(code) == "" {
			a.warn(ti, ri+1, "missing district code")
			continue
		}

		s := a.standards[code]
		for ci := 1; ci < len(header); ci++ {
			a.setStandard(ti, ri+1, &s, header[ci], row[ci])
		}
		a.standards[code] = s
	}
}

func (a *htmlTableAdapter) readStandardsByRow(ti int, t table) {
	header := t.rows[0]
	for ri, row := range t.rows[1:] {
		if len(row) != len(header) {
			a.warn(ti, ri+1, "expected %d cells, got %d", len(header), len(row))
			continue
		}
		if !isStandardLabel(row[0]) {
			continue
		}
		for ci := 1; ci < len(header); ci++ {
			code := header[ci]
			s := a.standards[code]
			a.setStandard(ti, ri+1, &s, row[0], row[ci])
			a.standards[code] = s
		}
	}
}

func (a *htmlTableAdapter) setStandard(ti, ri int, s *models.DimensionalStandards, label, value string) {
	field := standardField(s, label)
	if field == nil {
		return
	}
	v, err := parseMeasure(value)
	if err != nil {
		a.warn(ti, ri, "%s: %v", label, err)
		return
	}
	if v != nil {
		*field = v
	}
}

func (a *htmlTableAdapter) readUseMatrix(ti int, t table) {
	header := t.rows[0]
	for ri, row := range t.rows[1:] {
		if len(row) != len(header) {
			a.warn(ti, ri+1, "expected %d cells, got %d", len(header), len(row))
			continue
		}
		use, conditions := splitConditions(row[0])
		if use == "" {
			a.warn(ti, ri+1, "missing use name")
			continue
		}

		for ci := 1; ci < len(header); ci++ {
			if strings.TrimSpace(row[ci]) == "" {
				continue
			}
			permission, ok := parsePermission(row[ci])
			if !ok {
				a.warn(ti, ri+1, "unrecognized permission %q for %s in %s", row[ci], use, header[ci])
				continue
			}
			a.uses = append(a.uses, models.AllowedUse{
				District:   header[ci],
				Use:        use,
				Permission: permission,
				Conditions: conditions,
			})
		}
	}
}

// splitConditions separates a trailing parenthetical, as in
// "Day care center (max. 12 children)", from the use name.
func splitConditions(s string) (string, string) {
	s = NormalizeText(s)
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, ""
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1 : len(s)-1])
}

// collectTables walks the document in order, remembering the most recent
// heading as the section label of each table that has no caption.
func collectTables(doc *html.Node) []table {
	var tables []table
	var heading string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5:
				heading = textOf(n)
				return
			case atom.Table:
				t := table{section: heading}
				readTable(n, &t)
				if len(t.rows) > 0 {
					tables = append(tables, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return tables
}

func readTable(n *html.Node, t *table) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Caption:
			t.section = textOf(c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			readTable(c, t)
		case atom.Tr:
			var row []string
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
					row = append(row, textOf(cell))
				}
			}
			if len(row) > 0 {
				t.rows = append(t.rows, row)
			}
		}
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return NormalizeText(b.String())
}
