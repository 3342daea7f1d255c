package models

// Jurisdiction describes a governing body and where its ordinance lives.
// Entries come from the jurisdiction manifest and are read-only at runtime.
type Jurisdiction struct {
	ID       string          `yaml:"id" json:"id"`
	Name     string          `yaml:"name" json:"name"`
	Version  string          `yaml:"version" json:"version"`
	Parser   string          `yaml:"parser" json:"parser"`
	Source   OrdinanceSource `yaml:"source" json:"source"`
	Fees     FeeSchedule     `yaml:"fees" json:"fees"`
	Timeline ReviewTimeline  `yaml:"timeline" json:"timeline"`
	Workflow WorkflowFlags   `yaml:"workflow" json:"workflow"`
}

// OrdinanceSource holds the location and optional auth headers of an ordinance.
// Header values are never serialized back to API clients.
type OrdinanceSource struct {
	URLs    []string          `yaml:"urls" json:"urls"`
	Headers map[string]string `yaml:"headers" json:"-"`
	Format  string            `yaml:"format" json:"format,omitempty"`
}

// FeeSchedule holds application fees in US dollars.
type FeeSchedule struct {
	Application    float64 `yaml:"application" json:"application"`
	Variance       float64 `yaml:"variance" json:"variance"`
	ConditionalUse float64 `yaml:"conditional_use" json:"conditional_use"`
}

// ReviewTimeline holds typical review durations in calendar days.
type ReviewTimeline struct {
	ReviewDays  int `yaml:"review_days" json:"review_days"`
	HearingDays int `yaml:"hearing_days" json:"hearing_days"`
}

// WorkflowFlags captures per-jurisdiction process quirks.
type WorkflowFlags struct {
	PreApplicationMeeting       bool `yaml:"pre_application_meeting" json:"pre_application_meeting"`
	PublicHearingForConditional bool `yaml:"public_hearing_for_conditional" json:"public_hearing_for_conditional"`
}

// Parser variants shipped with the engine.
const (
	ParserHTMLTable  = "html_table"
	ParserPlainText  = "plain_text"
	ParserJSONPortal = "json_portal"
)
