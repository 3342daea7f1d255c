package registry

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// MaxSourceURLs bounds the number of documents fetched per jurisdiction.
const MaxSourceURLs = 4

// semverPattern matches MAJOR.MINOR.PATCH with optional pre-release and build metadata.
var semverPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// Manifest is the versioned jurisdiction configuration file.
type Manifest struct {
	Version       string                `yaml:"version"`
	Jurisdictions []models.Jurisdiction `yaml:"jurisdictions"`
}

// Registry resolves jurisdiction configuration by id.
type Registry interface {
	// Get returns the jurisdiction with the given id.
	// Returns a *ConfigError wrapping ErrJurisdictionNotFound for unknown ids.
	Get(jurisdictionID string) (*models.Jurisdiction, error)

	// List returns every configured jurisdiction ordered by id.
	List() []models.Jurisdiction

	// ManifestVersion returns the version of the loaded manifest.
	ManifestVersion() string

	// Replace validates manifest and swaps it in for subsequent lookups.
	// The previous snapshot stays active if validation fails.
	Replace(manifest Manifest) error
}

// registry holds a read-only snapshot of the manifest. Replace swaps the
// snapshot atomically so a reload mechanism can be layered on later.
type registry struct {
	mu            sync.RWMutex
	version       string
	jurisdictions map[string]models.Jurisdiction
	knownParsers  map[string]bool
}

// LoadManifest reads and validates the manifest at path. knownParsers lists the parser
// variants available in this build; entries naming any other variant are rejected.
func LoadManifest(path string, knownParsers []string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(data, knownParsers)
}

// Parse builds a Registry from manifest bytes.
func Parse(data []byte, knownParsers []string) (Registry, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	r := &registry{knownParsers: make(map[string]bool, len(knownParsers))}
	for _, p := range knownParsers {
		r.knownParsers[p] = true
	}

	if err := r.Replace(manifest); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates the manifest and swaps it in.
func (r *registry) Replace(manifest Manifest) error {
	if !semverPattern.MatchString(manifest.Version) {
		return fmt.Errorf("%w: manifest version %q is not semantic", ErrInvalidManifest, manifest.Version)
	}

	byID := make(map[string]models.Jurisdiction, len(manifest.Jurisdictions))
	for _, j := range manifest.Jurisdictions {
		j.ID = normalizeID(j.ID)
		if err := r.validate(j); err != nil {
			return err
		}
		if _, dup := byID[j.ID]; dup {
			return fmt.Errorf("%w: duplicate jurisdiction id %q", ErrInvalidManifest, j.ID)
		}

		headers := make(map[string]string, len(j.Source.Headers))
		for k, v := range j.Source.Headers {
			headers[k] = os.ExpandEnv(v)
		}
		j.Source.Headers = headers
		j.Source.URLs = append([]string(nil), j.Source.URLs...)

		byID[j.ID] = j
	}

	r.mu.Lock()
	r.version = manifest.Version
	r.jurisdictions = byID
	r.mu.Unlock()

	return nil
}

func (r *registry) validate(j models.Jurisdiction) error {
	switch {
	case j.ID == "":
		return fmt.Errorf("%w: jurisdiction without id", ErrInvalidManifest)
	case j.Name == "":
		return fmt.Errorf("%w: jurisdiction %q has no name", ErrInvalidManifest, j.ID)
	case !semverPattern.MatchString(j.Version):
		return fmt.Errorf("%w: jurisdiction %q version %q is not semantic", ErrInvalidManifest, j.ID, j.Version)
	case !r.knownParsers[j.Parser]:
		return fmt.Errorf("%w: jurisdiction %q uses unknown parser %q", ErrInvalidManifest, j.ID, j.Parser)
	case len(j.Source.URLs) == 0:
		return fmt.Errorf("%w: jurisdiction %q has no source urls", ErrInvalidManifest, j.ID)
	case len(j.Source.URLs) > MaxSourceURLs:
		return fmt.Errorf("%w: jurisdiction %q has %d source urls, max %d",
			ErrInvalidManifest, j.ID, len(j.Source.URLs), MaxSourceURLs)
	case j.Parser == models.ParserJSONPortal && len(j.Source.URLs) > 1:
		return fmt.Errorf("%w: jurisdiction %q json sources must be a single document", ErrInvalidManifest, j.ID)
	}

	for _, u := range j.Source.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%w: jurisdiction %q source %q is not an http(s) url", ErrInvalidManifest, j.ID, u)
		}
	}

	if j.Fees.Application < 0 || j.Fees.Variance < 0 || j.Fees.ConditionalUse < 0 {
		return fmt.Errorf("%w: jurisdiction %q has negative fees", ErrInvalidManifest, j.ID)
	}
	if j.Timeline.ReviewDays < 0 || j.Timeline.HearingDays < 0 {
		return fmt.Errorf("%w: jurisdiction %q has negative timeline", ErrInvalidManifest, j.ID)
	}

	return nil
}

// Get returns a copy of the jurisdiction configuration.
func (r *registry) Get(jurisdictionID string) (*models.Jurisdiction, error) {
	id := normalizeID(jurisdictionID)

	r.mu.RLock()
	j, ok := r.jurisdictions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, &ConfigError{JurisdictionID: jurisdictionID, Err: ErrJurisdictionNotFound}
	}

	j.Source.URLs = append([]string(nil), j.Source.URLs...)
	headers := make(map[string]string, len(j.Source.Headers))
	for k, v := range j.Source.Headers {
		headers[k] = v
	}
	j.Source.Headers = headers
	return &j, nil
}

func (r *registry) List() []models.Jurisdiction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Jurisdiction, 0, len(r.jurisdictions))
	for _, j := range r.jurisdictions {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (r *registry) ManifestVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
