// Package answer orchestrates retrieval, generation, and parsing of
// structured answers to free-form questions.
package answer

import (
	"strconv"
	"strings"

	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/pkg/utils"
)

// Parse extracts the VERDICT / EVIDENCE / ACTION / CONFIDENCE_ESTIMATE
// sections from model output. contextEntryIDs are the entries present in the
// assembled context; an evidence line that does not cite one of them is
// dropped rather than surfaced with a made-up citation.
//
// Parsing never fails: when no VERDICT label is found, the whole response
// becomes the verdict at reduced confidence.
func Parse(response string, contextEntryIDs []string) models.StructuredAnswer {
	result := models.StructuredAnswer{Evidence: []models.Evidence{}}

	inEvidence := false
	confidencePct := 0
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "VERDICT:"):
			result.Verdict = strings.TrimSpace(strings.TrimPrefix(line, "VERDICT:"))
			inEvidence = false
		case strings.HasPrefix(line, "EVIDENCE:"):
			inEvidence = true
		case strings.HasPrefix(line, "ACTION:"):
			result.Action = strings.TrimSpace(strings.TrimPrefix(line, "ACTION:"))
			inEvidence = false
		case strings.HasPrefix(line, "CONFIDENCE_ESTIMATE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE_ESTIMATE:"))
			if v, err := strconv.Atoi(raw); err == nil {
				confidencePct = v
			}
			inEvidence = false
		case inEvidence && strings.HasPrefix(line, "-"):
			text := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if ev, ok := resolveEvidence(text, contextEntryIDs); ok {
				result.Evidence = append(result.Evidence, ev)
			}
		}
	}

	if result.Verdict == "" {
		result.Verdict = utils.Truncate(strings.TrimSpace(response), 200)
	}

	if confidencePct <= 0 {
		confidencePct = 20 * len(result.Evidence)
	}
	if confidencePct > 100 {
		confidencePct = 100
	}
	result.Confidence = float64(confidencePct) / 100

	return result
}

// resolveEvidence finds which context entry a line cites. The model is asked
// to include the entry id; any context id appearing in the line counts.
func resolveEvidence(text string, contextEntryIDs []string) (models.Evidence, bool) {
	for _, id := range contextEntryIDs {
		if id != "" && strings.Contains(text, id) {
			return models.Evidence{Text: text, SourceEntryID: id}, true
		}
	}
	return models.Evidence{}, false
}
