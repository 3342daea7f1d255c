package registry

import (
	"errors"
	"fmt"
)

// ErrJurisdictionNotFound is returned for an id that is not in the manifest.
var ErrJurisdictionNotFound = errors.New("jurisdiction not found")

// ErrInvalidManifest is returned when the manifest fails validation.
var ErrInvalidManifest = errors.New("invalid jurisdiction manifest")

// ConfigError reports a jurisdiction configuration problem. An unknown
// jurisdiction is a client error and is never retried.
type ConfigError struct {
	JurisdictionID string
	Err            error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for jurisdiction %q: %v", e.JurisdictionID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
