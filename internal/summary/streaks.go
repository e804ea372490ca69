package summary

import (
	"time"

	"github.com/hyperjump/tsuzuri/internal/models"
)

// ShowedUpStreak returns the current run of consecutive calendar days with a
// showed-up entry, ending today or yesterday. The streak is computed over the
// full history: a day with no entry, or an entry with showed_up false, breaks
// it. Multiple entries on one day count once; the day shows up if any of its
// entries did.
func ShowedUpStreak(entries []*models.Entry, now time.Time) int {
	showedUpByDay := make(map[string]bool)
	for _, e := range entries {
		day := e.CreatedAt.In(now.Location()).Format("2006-01-02")
		if e.ShowedUp {
			showedUpByDay[day] = true
		} else if _, seen := showedUpByDay[day]; !seen {
			showedUpByDay[day] = false
		}
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// Today may not have an entry yet; that does not break a streak.
	if v, ok := showedUpByDay[day.Format("2006-01-02")]; !ok || !v {
		if ok && !v {
			return 0
		}
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		v, ok := showedUpByDay[day.Format("2006-01-02")]
		if !ok || !v {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
