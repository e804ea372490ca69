package answer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tsuzuri/internal/assemble"
	"github.com/hyperjump/tsuzuri/internal/embedding"
	"github.com/hyperjump/tsuzuri/internal/index"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/llm"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/storage"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, gen llm.Generator) (*Engine, *journal.FileStore) {
	t.Helper()
	entries, err := journal.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	idx, err := index.New(embedding.NewMockEmbedder(64), entries, "")
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	assembler := assemble.New(idx, entries, store, assemble.Options{
		RecentWindowDays: 7,
		ArchiveAfterDays: 30,
		CharBudget:       1500,
		MaxSummaries:     3,
		RetrievalK:       5,
	}, assemble.WithClock(func() time.Time { return testNow }))

	engine := NewEngine(assembler, llm.NewGateway(gen, time.Second), 512)
	return engine, entries
}

func addRecentEntry(t *testing.T, entries *journal.FileStore, id, text string) {
	t.Helper()
	err := entries.Save(&models.Entry{
		ID:        id,
		CreatedAt: testNow.Add(-24 * time.Hour),
		Emotion:   "content",
		Energy:    6,
		ShowedUp:  true,
		FreeText:  text,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestAnswerEmptyJournalSkipsLLM(t *testing.T) {
	gen := &llm.MockGenerator{Default: "should never be called"}
	engine, _ := newTestEngine(t, gen)

	got, err := engine.Answer(context.Background(), "how is my energy?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(got.Verdict, "Not enough journal data") {
		t.Errorf("Verdict = %q", got.Verdict)
	}
	if got.Confidence != 0 || len(got.Evidence) != 0 {
		t.Errorf("canned answer = %+v", got)
	}
	if gen.Calls() != 0 {
		t.Errorf("LLM called %d times for empty journal, want 0", gen.Calls())
	}
}

func TestAnswerParsesAndGroundsEvidence(t *testing.T) {
	gen := &llm.MockGenerator{}
	gen.Enqueue(`VERDICT: You kept showing up.
EVIDENCE:
- Consistent entries this week (e1)
- An invented citation (ghost-entry)
ACTION: Keep the streak alive.
CONFIDENCE_ESTIMATE: 80`)

	engine, entries := newTestEngine(t, gen)
	addRecentEntry(t, entries, "e1", "showed up again today")
	addRecentEntry(t, entries, "e2", "another steady day")

	got, err := engine.Answer(context.Background(), "am I consistent?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Verdict != "You kept showing up." {
		t.Errorf("Verdict = %q", got.Verdict)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].SourceEntryID != "e1" {
		t.Errorf("Evidence = %+v, want only the grounded line", got.Evidence)
	}
	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %f", got.Confidence)
	}
}

func TestAnswerDegradesOnGenerationFailure(t *testing.T) {
	gen := &llm.MockGenerator{Err: llm.ErrModelUnavailable}
	engine, entries := newTestEngine(t, gen)
	addRecentEntry(t, entries, "e1", "an entry")

	got, err := engine.Answer(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("Answer should not surface generation errors, got %v", err)
	}
	if !strings.Contains(got.Verdict, "Unable to generate") {
		t.Errorf("Verdict = %q", got.Verdict)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %f", got.Confidence)
	}
}
