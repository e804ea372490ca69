// Package models defines core data structures for journal entries, summaries, and answers.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Derived holds fields computed from an entry at creation time.
type Derived struct {
	Sentiment float64  `json:"sentiment"`
	Themes    []string `json:"themes,omitempty"`
	Flags     []string `json:"flags,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

// Entry is one journal submission. Entries are immutable after creation;
// the engine only ever reads them.
type Entry struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Emotion    string          `json:"emotion"`
	Energy     int             `json:"energy"`
	ShowedUp   bool            `json:"showed_up"`
	Habits     map[string]bool `json:"habits,omitempty"`
	Goals      []string        `json:"goals,omitempty"`
	FreeText   string          `json:"free_text"`
	Reflection string          `json:"reflection,omitempty"`
	Derived    Derived         `json:"derived"`
}

// MaxFreeTextLen is the maximum length of an entry's short free text.
const MaxFreeTextLen = 200

// Vocab is the configured emotion and habit vocabulary. Entries are validated
// against it at the storage boundary, never inside the retrieval core.
type Vocab struct {
	Emotions []string `yaml:"emotions" json:"emotions"`
	Habits   []string `yaml:"habits" json:"habits"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Validate checks the entry against the vocabulary and field constraints.
// An empty vocabulary list disables the corresponding check.
func (e *Entry) Validate(vocab Vocab) error {
	if e.ID == "" {
		return fmt.Errorf("entry id cannot be empty")
	}
	if e.Energy < 1 || e.Energy > 10 {
		return fmt.Errorf("energy must be in [1,10], got %d", e.Energy)
	}
	if len(e.FreeText) > MaxFreeTextLen {
		return fmt.Errorf("free_text exceeds %d characters", MaxFreeTextLen)
	}
	if len(vocab.Emotions) > 0 && !contains(vocab.Emotions, e.Emotion) {
		return fmt.Errorf("unknown emotion %q", e.Emotion)
	}
	if len(vocab.Habits) > 0 {
		for habit := range e.Habits {
			if !contains(vocab.Habits, habit) {
				return fmt.Errorf("unknown habit %q", habit)
			}
		}
	}
	return nil
}

// Date returns the entry's calendar day as YYYY-MM-DD.
func (e *Entry) Date() string {
	return e.CreatedAt.Format("2006-01-02")
}

// SearchText returns the text that represents this entry in the embedding index:
// emotion, energy, showed-up flag, free text, reflection, and the derived one-line summary.
func (e *Entry) SearchText() string {
	parts := []string{
		fmt.Sprintf("Emotion: %s", e.Emotion),
		fmt.Sprintf("Energy: %d", e.Energy),
		fmt.Sprintf("Showed up: %t", e.ShowedUp),
	}
	if e.FreeText != "" {
		parts = append(parts, e.FreeText)
	}
	if e.Reflection != "" {
		parts = append(parts, e.Reflection)
	}
	if e.Derived.Summary != "" {
		parts = append(parts, fmt.Sprintf("Summary: %s", e.Derived.Summary))
	}
	return strings.Join(parts, " ")
}
