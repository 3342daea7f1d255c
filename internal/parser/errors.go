package parser

import (
	"errors"
	"fmt"
)

// Parse failure causes. Every one of them is returned wrapped in *ParseError.
var (
	ErrUnknownVariant    = errors.New("unknown parser variant")
	ErrNoDistricts       = errors.New("no zoning districts found")
	ErrMalformedDocument = errors.New("malformed ordinance document")
)

// ParseError reports that an ordinance document could not be normalized.
type ParseError struct {
	Variant string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Variant, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
