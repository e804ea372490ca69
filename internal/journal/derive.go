package journal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/tsuzuri/internal/models"
)

var themeKeywords = map[string][]string{
	"work":          {"work", "project", "meeting", "deadline", "task"},
	"health":        {"exercise", "sleep", "energy", "tired", "rest"},
	"relationships": {"friend", "family", "partner", "talk", "connect"},
	"growth":        {"learn", "read", "practice", "improve", "skill"},
	"stress":        {"stress", "anxious", "worried", "pressure", "overwhelm"},
	"gratitude":     {"grateful", "thankful", "appreciate", "blessed", "lucky"},
}

var positiveWords = []string{"good", "great", "happy", "grateful", "proud", "calm", "excited", "love", "progress", "win"}
var negativeWords = []string{"bad", "tired", "stressed", "anxious", "sad", "angry", "worried", "overwhelm", "fail", "stuck"}

// Derive computes the derived fields for an entry from its raw fields. It is
// deterministic and purely lexical so entry creation never depends on a model
// being available.
func Derive(entry *models.Entry) models.Derived {
	text := strings.ToLower(entry.FreeText + " " + entry.Reflection)
	return models.Derived{
		Sentiment: sentimentOf(text),
		Themes:    themesOf(text),
		Flags:     flagsOf(entry, text),
		Summary:   summarize(entry),
	}
}

// sentimentOf scores text in [-1, 1] from a small word lexicon.
func sentimentOf(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(text, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(text, w) {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

// themesOf returns the top three themes by keyword hit count.
func themesOf(text string) []string {
	type scored struct {
		theme string
		score int
	}
	var hits []scored
	for theme, keywords := range themeKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{theme, score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].theme < hits[j].theme
	})
	if len(hits) > 3 {
		hits = hits[:3]
	}
	themes := make([]string, len(hits))
	for i, h := range hits {
		themes[i] = h.theme
	}
	return themes
}

func flagsOf(entry *models.Entry, text string) []string {
	var flags []string
	if (strings.Contains(text, "procrastinat") || strings.Contains(text, "late night")) && entry.Energy < 4 {
		flags = append(flags, "evening_procrastination")
	}
	if entry.Energy < 3 {
		flags = append(flags, "low_energy")
	}
	emotion := strings.ToLower(entry.Emotion)
	if (emotion == "stressed" || emotion == "anxious" || emotion == "angry") && entry.Energy < 5 {
		flags = append(flags, "high_stress")
	}
	if !entry.ShowedUp && entry.Energy < 5 {
		flags = append(flags, "consistency_concern")
	}
	return flags
}

func summarize(entry *models.Entry) string {
	parts := []string{
		fmt.Sprintf("Felt %s", entry.Emotion),
		fmt.Sprintf("energy level %d/10", entry.Energy),
	}
	if entry.ShowedUp {
		parts = append(parts, "showed up despite challenges")
	} else {
		parts = append(parts, "struggled to show up")
	}
	if entry.FreeText != "" {
		text := entry.FreeText
		if len(text) > 50 {
			text = text[:50]
		}
		parts = append(parts, fmt.Sprintf("- %s...", text))
	}
	return strings.Join(parts, " ")
}
