package models

import "time"

// ActionItem is a follow-up the user accepted from a generated answer or
// created by hand.
type ActionItem struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Source      string     `json:"source,omitempty"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
