package parser

import (
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// Extractor exposes what an adapter found in one ordinance document.
// Codes are returned as written; normalization happens once, in the parser.
type Extractor interface {
	ExtractDistricts() []models.ZoningDistrict
	ExtractDimensionalStandards() map[string]models.DimensionalStandards
	ExtractAllowedUses() []models.AllowedUse
	// Warnings lists rows or values that were skipped as malformed.
	Warnings() []string
}

// AdapterFactory reads a document and returns its Extractor. It returns an
// error only when the document as a whole cannot be read.
type AdapterFactory func(content []byte) (Extractor, error)

// DefaultAdapters returns the adapters shipped with the engine keyed by variant id.
func DefaultAdapters() map[string]AdapterFactory {
	return map[string]AdapterFactory{
		models.ParserHTMLTable:  NewHTMLTableAdapter,
		models.ParserPlainText:  NewPlainTextAdapter,
		models.ParserJSONPortal: NewJSONPortalAdapter,
	}
}

// Document is a raw ordinance to parse.
type Document struct {
	JurisdictionID string
	Content        []byte
	// Hash is the content hash; it is computed when empty.
	Hash string
}

// Parser converts raw ordinance content into normalized rules. Parsing does
// no I/O. Returned rules are shared between callers and must not be mutated.
type Parser interface {
	// Parse normalizes doc with the adapter registered for variant.
	// memoHit reports whether the rules were served from the memo.
	// All failures are returned as *ParseError.
	Parse(doc Document, variant string) (rules *models.NormalizedRules, memoHit bool, err error)

	// Variants lists the registered variant ids in sorted order.
	Variants() []string
}

type parser struct {
	adapters map[string]AdapterFactory
	memo     *lru.Cache[string, *models.NormalizedRules]
	now      func() time.Time
}

// New creates a Parser over adapters. memoSize bounds the number of parsed
// documents kept; zero disables memoization.
func New(adapters map[string]AdapterFactory, memoSize int) (Parser, error) {
	p := &parser{adapters: adapters, now: time.Now}

	if memoSize > 0 {
		memo, err := lru.New[string, *models.NormalizedRules](memoSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create parse memo: %w", err)
		}
		p.memo = memo
	}

	return p, nil
}

func (p *parser) Variants() []string {
	out := make([]string, 0, len(p.adapters))
	for v := range p.adapters {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (p *parser) Parse(doc Document, variant string) (*models.NormalizedRules, bool, error) {
	factory, ok := p.adapters[variant]
	if !ok {
		return nil, false, &ParseError{Variant: variant, Err: ErrUnknownVariant}
	}

	if doc.Hash == "" {
		doc.Hash = models.ContentHash(doc.Content)
	}

	key := variant + "|" + doc.JurisdictionID + "|" + doc.Hash
	if p.memo != nil {
		if rules, ok := p.memo.Get(key); ok {
			return rules, true, nil
		}
	}

	extractor, err := factory(doc.Content)
	if err != nil {
		return nil, false, &ParseError{Variant: variant, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)}
	}

	rules, err := p.normalize(doc, variant, extractor)
	if err != nil {
		return nil, false, err
	}

	if p.memo != nil {
		p.memo.Add(key, rules)
	}
	return rules, false, nil
}

// normalize merges the three extractions into one rule set keyed by
// canonical district code.
func (p *parser) normalize(doc Document, variant string, ex Extractor) (*models.NormalizedRules, error) {
	warnings := append([]string(nil), ex.Warnings()...)

	var order []string
	byCode := make(map[string]*models.ZoningDistrict)
	for _, d := range ex.ExtractDistricts() {
		code := NormalizeCode(d.Code)
		if code == "" {
			warnings = append(warnings, fmt.Sprintf("district %q has no code", d.Name))
			continue
		}
		d.Code = code
		d.Name = NormalizeText(d.Name)
		if d.Name == "" {
			d.Name = code
		}
		if d.Category == "" {
			d.Category = inferCategory(code, d.Name)
		}
		d.Standards = nil
		d.Uses = nil

		if _, seen := byCode[code]; !seen {
			order = append(order, code)
		}
		district := d
		byCode[code] = &district
	}

	ensure := func(raw string) *models.ZoningDistrict {
		code := NormalizeCode(raw)
		if code == "" {
			return nil
		}
		if d, ok := byCode[code]; ok {
			return d
		}
		order = append(order, code)
		d := &models.ZoningDistrict{Code: code, Name: code, Category: inferCategory(code, "")}
		byCode[code] = d
		return d
	}

	extracted := ex.ExtractDimensionalStandards()
	rawCodes := make([]string, 0, len(extracted))
	for raw := range extracted {
		rawCodes = append(rawCodes, raw)
	}
	sort.Strings(rawCodes)

	for _, raw := range rawCodes {
		d := ensure(raw)
		if d == nil {
			warnings = append(warnings, fmt.Sprintf("dimensional standards with empty district code %q", raw))
			continue
		}
		s := extracted[raw]
		warnings = append(warnings, dropNegatives(d.Code, &s)...)
		if d.Standards == nil {
			d.Standards = &s
			continue
		}
		// Several spellings of one code
		warnings = append(warnings, mergeStandards(d.Code, d.Standards, &s)...)
	}

	var flags []string
	for _, code := range order {
		if s := byCode[code].Standards; s != nil {
			if flag := setbackFlag(code, s); flag != "" {
				flags = append(flags, flag)
			}
		}
	}

	useIndex := make(map[string]map[string]int)
	for _, u := range ex.ExtractAllowedUses() {
		d := ensure(u.District)
		name := NormalizeText(u.Use)
		key := NormalizeUse(name)
		if d == nil || key == "" {
			warnings = append(warnings, fmt.Sprintf("use %q for district %q skipped", u.Use, u.District))
			continue
		}

		u.District = d.Code
		u.Use = name
		u.Conditions = NormalizeText(u.Conditions)

		if useIndex[d.Code] == nil {
			useIndex[d.Code] = make(map[string]int)
		}
		if i, dup := useIndex[d.Code][key]; dup {
			d.Uses[i] = u
			continue
		}
		useIndex[d.Code][key] = len(d.Uses)
		d.Uses = append(d.Uses, u)
	}

	if len(order) == 0 {
		return nil, &ParseError{Variant: variant, Err: ErrNoDistricts}
	}

	districts := make([]models.ZoningDistrict, 0, len(order))
	for _, code := range order {
		districts = append(districts, *byCode[code])
	}
	sort.Strings(flags)

	return &models.NormalizedRules{
		JurisdictionID: doc.JurisdictionID,
		Variant:        variant,
		ContentHash:    doc.Hash,
		Districts:      districts,
		Partial:        len(warnings) > 0,
		Warnings:       warnings,
		Flags:          flags,
		ParsedAt:       p.now().UTC(),
	}, nil
}

// standardColumns names every dimensional standard field.
var standardColumns = map[string]fieldAccessor{
	"min_lot_size": lotSizeField, "min_lot_width": lotWidthField,
	"front_setback": frontField, "side_setback": sideField, "rear_setback": rearField,
	"corner_setback": cornerField, "max_height": heightField, "max_stories": storiesField,
	"max_lot_coverage": coverageField, "max_far": farField, "max_density": densityField,
	"min_parking_spaces": parkingField,
}

// mergeStandards copies the known values of src into dst. A value already
// present in dst is replaced and reported when the two disagree.
func mergeStandards(code string, dst, src *models.DimensionalStandards) []string {
	var warnings []string
	for label, accessor := range standardColumns {
		from, to := accessor(src), accessor(dst)
		if *from == nil {
			continue
		}
		if *to != nil && **to != **from {
			warnings = append(warnings, fmt.Sprintf("district %s: conflicting %s %.2f replaced by %.2f", code, label, **to, **from))
		}
		v := **from
		*to = &v
	}
	sort.Strings(warnings)
	return warnings
}

// dropNegatives turns negative values into unknowns.
func dropNegatives(code string, s *models.DimensionalStandards) []string {
	var warnings []string
	for label, accessor := range standardColumns {
		field := accessor(s)
		if *field != nil && **field < 0 {
			warnings = append(warnings, fmt.Sprintf("district %s: negative %s %.2f treated as unknown", code, label, **field))
			*field = nil
		}
	}
	sort.Strings(warnings)
	return warnings
}

// setbackFlag reports districts whose required side setbacks leave no
// buildable width on a minimum-width lot.
func setbackFlag(code string, s *models.DimensionalStandards) string {
	if s.SideSetback == nil || s.MinLotWidth == nil || *s.MinLotWidth <= 0 {
		return ""
	}
	if 2*(*s.SideSetback) >= *s.MinLotWidth {
		return fmt.Sprintf("district %s: side setbacks (2 x %.1f ft) consume the minimum lot width (%.1f ft)",
			code, *s.SideSetback, *s.MinLotWidth)
	}
	return ""
}
