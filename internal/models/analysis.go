package models

import "time"

// AnalysisStatus is the compliance verdict.
type AnalysisStatus string

const (
	StatusCompliant    AnalysisStatus = "COMPLIANT"
	StatusNonCompliant AnalysisStatus = "NON_COMPLIANT"
	StatusUnknown      AnalysisStatus = "UNKNOWN"
	StatusManualReview AnalysisStatus = "MANUAL_REVIEW"
)

// DataSource records where the rules behind an analysis came from.
type DataSource string

const (
	SourceFreshFetch   DataSource = "fresh_fetch"
	SourceFreshCache   DataSource = "fresh_cache"
	SourceStaleCache   DataSource = "stale_cache"
	SourceManualReview DataSource = "manual_review"
)

// ViolationType classifies a rule breach.
type ViolationType string

const (
	ViolationUse      ViolationType = "use"
	ViolationSetback  ViolationType = "setback"
	ViolationHeight   ViolationType = "height"
	ViolationLotSize  ViolationType = "lot_size"
	ViolationLotWidth ViolationType = "lot_width"
	ViolationCoverage ViolationType = "coverage"
	ViolationStories  ViolationType = "stories"
	ViolationFAR      ViolationType = "far"
	ViolationDensity  ViolationType = "density"
	ViolationParking  ViolationType = "parking"
	ViolationOther    ViolationType = "other"
)

// Severity ranks a violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Violation is one specific rule breach found during evaluation.
type Violation struct {
	Type             ViolationType `json:"type"`
	Severity         Severity      `json:"severity"`
	Description      string        `json:"description"`
	CodeReference    string        `json:"code_reference,omitempty"`
	CurrentValue     string        `json:"current_value,omitempty"`
	RequiredValue    string        `json:"required_value,omitempty"`
	RequiresVariance bool          `json:"requires_variance"`
}

// ProcessEstimate summarizes the approval path implied by the violations,
// using the jurisdiction's fee and timeline constants.
type ProcessEstimate struct {
	EstimatedFees         float64 `json:"estimated_fees"`
	EstimatedTimelineDays int     `json:"estimated_timeline_days"`
	PreApplicationMeeting bool    `json:"pre_application_meeting"`
	PublicHearing         bool    `json:"public_hearing"`
}

// Timing records when an analysis ran.
type Timing struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// Cost records the external work spent on an analysis.
type Cost struct {
	FetchCalls   int   `json:"fetch_calls"`
	BytesFetched int64 `json:"bytes_fetched"`
	ParseMemoHit bool  `json:"parse_memo_hit"`
}

// ComplianceAnalysis is the immutable result of one analysis request.
type ComplianceAnalysis struct {
	CreatedAt        time.Time        `json:"created_at"`
	ZoningDistrict   *ZoningDistrict  `json:"zoning_district"`
	Process          *ProcessEstimate `json:"process,omitempty"`
	ID               string           `json:"id"`
	CorrelationID    string           `json:"correlation_id"`
	PropertyID       string           `json:"property_id"`
	JurisdictionID   string           `json:"jurisdiction_id"`
	Status           AnalysisStatus   `json:"status"`
	DataSource       DataSource       `json:"data_source"`
	ContentHash      string           `json:"content_hash,omitempty"`
	Violations       []Violation      `json:"violations"`
	Citations        []string         `json:"citations"`
	Timing           Timing           `json:"timing"`
	Cost             Cost             `json:"cost"`
	Confidence       int              `json:"confidence"`
	RequiresVariance bool             `json:"requires_variance"`
}
