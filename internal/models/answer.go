package models

import "time"

// Evidence is one cited observation in a structured answer. SourceEntryID
// always refers to an entry that was present in the assembled context.
type Evidence struct {
	Text          string `json:"text"`
	SourceEntryID string `json:"source_entry_id,omitempty"`
}

// StructuredAnswer is the four-field response contract for all generated text.
type StructuredAnswer struct {
	Verdict    string     `json:"verdict"`
	Evidence   []Evidence `json:"evidence"`
	Action     string     `json:"action,omitempty"`
	Confidence float64    `json:"confidence"`
}

// InsightStatus is the state of a daily insight cache record.
type InsightStatus string

const (
	InsightPending  InsightStatus = "pending"
	InsightReady    InsightStatus = "ready"
	InsightFallback InsightStatus = "fallback"
)

// Insight is the daily, rate-limited reflection returned on open. While an
// async generation is outstanding, Answer holds the previous or stats-only
// fallback content and LLMProcessing is true.
type Insight struct {
	Date          string           `json:"date"`
	Status        InsightStatus    `json:"status"`
	Answer        StructuredAnswer `json:"answer"`
	LLMProcessing bool             `json:"llm_processing"`
	GeneratedAt   time.Time        `json:"generated_at"`
}
