package summary

import (
	"math"
	"testing"
	"time"

	"github.com/hyperjump/tsuzuri/internal/models"
)

func entryOn(day time.Time, energy int, showedUp bool, emotion string) *models.Entry {
	return &models.Entry{
		ID:        "e-" + day.Format("2006-01-02"),
		CreatedAt: day,
		Emotion:   emotion,
		Energy:    energy,
		ShowedUp:  showedUp,
	}
}

func TestComputeStatsWeek(t *testing.T) {
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	energies := []int{8, 3, 6, 7, 2, 5, 9}
	showedUp := []bool{true, false, true, true, false, true, true}
	emotions := []string{"content", "tired", "content", "motivated", "stressed", "content", "motivated"}

	entries := make([]*models.Entry, len(energies))
	for i := range energies {
		entries[i] = entryOn(base.AddDate(0, 0, i), energies[i], showedUp[i], emotions[i])
		entries[i].Habits = map[string]bool{"exercise": i%2 == 0}
	}

	stats := ComputeStats(entries)
	if stats.EntryCount != 7 {
		t.Errorf("EntryCount = %d, want 7", stats.EntryCount)
	}
	if math.Abs(stats.AvgEnergy-5.71) > 0.01 {
		t.Errorf("AvgEnergy = %f, want 5.71 +/- 0.01", stats.AvgEnergy)
	}
	if math.Abs(stats.ShowedUpRate-5.0/7.0) > 0.01 {
		t.Errorf("ShowedUpRate = %f, want %f", stats.ShowedUpRate, 5.0/7.0)
	}
	if stats.EmotionCounts["content"] != 3 || stats.EmotionCounts["motivated"] != 2 {
		t.Errorf("EmotionCounts = %v", stats.EmotionCounts)
	}
	if stats.HabitCompletion["exercise"] != 4 {
		t.Errorf("HabitCompletion = %v", stats.HabitCompletion)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.EntryCount != 0 || stats.AvgEnergy != 0 || stats.ShowedUpRate != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestAggregateChildrenWeighted(t *testing.T) {
	children := []*models.Summary{
		{Stats: models.AggregateStats{
			EntryCount: 6, AvgEnergy: 6.0, ShowedUpRate: 1.0,
			EmotionCounts:   map[string]int{"content": 4, "tired": 2},
			HabitCompletion: map[string]int{"exercise": 3},
		}},
		{Stats: models.AggregateStats{
			EntryCount: 2, AvgEnergy: 2.0, ShowedUpRate: 0.0,
			EmotionCounts:   map[string]int{"tired": 2},
			HabitCompletion: map[string]int{"exercise": 1},
		}},
	}

	stats := AggregateChildren(children)
	if stats.ChildCount != 2 || stats.EntryCount != 8 {
		t.Fatalf("counts = %+v", stats)
	}
	// (6*6 + 2*2) / 8 = 5.0; a plain mean of 4.0 would ignore the weights.
	if math.Abs(stats.AvgEnergy-5.0) > 0.001 {
		t.Errorf("AvgEnergy = %f, want 5.0 (entry-weighted)", stats.AvgEnergy)
	}
	if math.Abs(stats.ShowedUpRate-0.75) > 0.001 {
		t.Errorf("ShowedUpRate = %f, want 0.75", stats.ShowedUpRate)
	}
	if stats.EmotionCounts["tired"] != 4 {
		t.Errorf("EmotionCounts = %v", stats.EmotionCounts)
	}
	if stats.HabitCompletion["exercise"] != 4 {
		t.Errorf("HabitCompletion = %v", stats.HabitCompletion)
	}
}

func TestTopEmotions(t *testing.T) {
	counts := map[string]int{"content": 5, "tired": 3, "calm": 3, "sad": 1}
	top := TopEmotions(counts, 3)
	if len(top) != 3 {
		t.Fatalf("len = %d", len(top))
	}
	if top[0] != "content" {
		t.Errorf("top[0] = %s", top[0])
	}
	// Tie between calm and tired breaks alphabetically.
	if top[1] != "calm" || top[2] != "tired" {
		t.Errorf("tie break order = %v", top)
	}
}

func TestShowedUpStreak(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	tests := []struct {
		name    string
		entries []*models.Entry
		want    int
	}{
		{
			name: "streak ending today",
			entries: []*models.Entry{
				entryOn(day(-2), 5, true, "calm"),
				entryOn(day(-1), 5, true, "calm"),
				entryOn(day(0), 5, true, "calm"),
			},
			want: 3,
		},
		{
			name: "no entry today keeps streak alive",
			entries: []*models.Entry{
				entryOn(day(-2), 5, true, "calm"),
				entryOn(day(-1), 5, true, "calm"),
			},
			want: 2,
		},
		{
			name: "gap day resets",
			entries: []*models.Entry{
				entryOn(day(-3), 5, true, "calm"),
				entryOn(day(-1), 5, true, "calm"),
				entryOn(day(0), 5, true, "calm"),
			},
			want: 2,
		},
		{
			name: "false value today resets",
			entries: []*models.Entry{
				entryOn(day(-1), 5, true, "calm"),
				entryOn(day(0), 5, false, "tired"),
			},
			want: 0,
		},
		{
			name:    "no entries",
			entries: nil,
			want:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShowedUpStreak(tt.entries, now); got != tt.want {
				t.Errorf("ShowedUpStreak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2025, 6, 4, 13, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},  // Wednesday
		{time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},   // Monday
		{time.Date(2025, 6, 8, 23, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},  // Sunday
		{time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)},   // next Monday
	}
	for _, tt := range tests {
		if got := WeekStart(tt.in); !got.Equal(tt.want) {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
