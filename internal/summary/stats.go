// Package summary computes period statistics and rolls entries up into
// weekly, monthly, and yearly summaries.
package summary

import (
	"math"
	"sort"

	"github.com/hyperjump/tsuzuri/internal/models"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeStats calculates aggregate statistics over a period's entries.
func ComputeStats(entries []*models.Entry) models.AggregateStats {
	stats := models.AggregateStats{
		EntryCount:      len(entries),
		EmotionCounts:   make(map[string]int),
		HabitCompletion: make(map[string]int),
	}
	if len(entries) == 0 {
		return stats
	}

	totalEnergy := 0
	showedUp := 0
	for _, e := range entries {
		totalEnergy += e.Energy
		if e.ShowedUp {
			showedUp++
		}
		if e.Emotion != "" {
			stats.EmotionCounts[e.Emotion]++
		}
		for habit, done := range e.Habits {
			if done {
				stats.HabitCompletion[habit]++
			}
		}
	}
	stats.AvgEnergy = round2(float64(totalEnergy) / float64(len(entries)))
	stats.ShowedUpRate = round2(float64(showedUp) / float64(len(entries)))
	return stats
}

// AggregateChildren folds child summaries (weeks into a month, months into a
// year) into one set of stats. Averages are weighted by each child's entry
// count so a one-entry week cannot skew a month.
func AggregateChildren(children []*models.Summary) models.AggregateStats {
	stats := models.AggregateStats{
		ChildCount:      len(children),
		EmotionCounts:   make(map[string]int),
		HabitCompletion: make(map[string]int),
	}
	if len(children) == 0 {
		return stats
	}

	var totalEntries int
	var weightedEnergy, weightedShowedUp float64
	for _, child := range children {
		n := child.Stats.EntryCount
		totalEntries += n
		weightedEnergy += child.Stats.AvgEnergy * float64(n)
		weightedShowedUp += child.Stats.ShowedUpRate * float64(n)
		for emotion, count := range child.Stats.EmotionCounts {
			stats.EmotionCounts[emotion] += count
		}
		for habit, count := range child.Stats.HabitCompletion {
			stats.HabitCompletion[habit] += count
		}
	}
	stats.EntryCount = totalEntries
	if totalEntries > 0 {
		stats.AvgEnergy = round2(weightedEnergy / float64(totalEntries))
		stats.ShowedUpRate = round2(weightedShowedUp / float64(totalEntries))
	}
	return stats
}

// TopEmotions returns the n most frequent emotions, most frequent first.
// Ties break alphabetically so output is stable.
func TopEmotions(counts map[string]int, n int) []string {
	type scored struct {
		emotion string
		count   int
	}
	all := make([]scored, 0, len(counts))
	for emotion, count := range counts {
		all = append(all, scored{emotion, count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].emotion < all[j].emotion
	})
	if n > len(all) {
		n = len(all)
	}
	top := make([]string, n)
	for i := 0; i < n; i++ {
		top[i] = all[i].emotion
	}
	return top
}
