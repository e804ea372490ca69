package models

import (
	"fmt"
	"time"
)

// PeriodKind identifies the roll-up level of a summary.
type PeriodKind string

const (
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
	PeriodYearly  PeriodKind = "yearly"
)

// AggregateStats are the non-LLM statistics computed over a summary's period.
type AggregateStats struct {
	EntryCount      int            `json:"entry_count"`
	AvgEnergy       float64        `json:"avg_energy"`
	ShowedUpRate    float64        `json:"showed_up_rate"`
	EmotionCounts   map[string]int `json:"emotion_counts,omitempty"`
	HabitCompletion map[string]int `json:"habit_completion,omitempty"`
	// ChildCount is the number of child summaries folded in (weeks for a
	// monthly summary, months for a yearly one). Zero for weekly summaries.
	ChildCount int `json:"child_count,omitempty"`
}

// Summary is a roll-up of entries (weekly) or of child summaries (monthly,
// yearly) over a closed period. Each entry belongs to exactly one summary per
// period kind once the period has closed.
type Summary struct {
	PeriodKind  PeriodKind     `json:"period_kind"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Stats       AggregateStats `json:"stats"`
	Narrative   string         `json:"narrative"`
	// NarrativeGenerated is false when the narrative is a stats-only
	// placeholder written because LLM generation failed; the roll-up job
	// retries the narrative on its next run.
	NarrativeGenerated bool      `json:"narrative_generated"`
	SourceIDs          []string  `json:"source_ids,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Key returns the summary's storage key, unique per (kind, period start).
func (s *Summary) Key() string {
	return fmt.Sprintf("%s_%s", s.PeriodKind, s.PeriodStart.Format("2006-01-02"))
}

// PlaceholderNarrative is stored when the LLM could not produce a narrative,
// so the coverage invariant holds even during generation outages.
const PlaceholderNarrative = "Narrative not yet available; statistics for this period are complete."
