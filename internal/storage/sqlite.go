// Package storage persists summaries, daily insights, and action items in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tsuzuri/internal/models"
)

// SQLiteStore is the durable store for everything derived from entries.
// Entries themselves live as files; this database can always be regenerated
// from them except for insight history.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS summaries (
		kind TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		stats TEXT NOT NULL,
		narrative TEXT NOT NULL,
		narrative_generated INTEGER NOT NULL DEFAULT 0,
		source_ids TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, period_start)
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_kind_start ON summaries(kind, period_start);

	CREATE TABLE IF NOT EXISTS insights (
		date TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		answer TEXT NOT NULL,
		llm_processing INTEGER NOT NULL DEFAULT 0,
		generated_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS action_items (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		source TEXT,
		done INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_action_items_done ON action_items(done);
	`
	_, err := db.Exec(schema)
	return err
}

const dateLayout = "2006-01-02"

// UpsertSummary inserts or replaces a summary keyed by (kind, period start).
func (s *SQLiteStore) UpsertSummary(ctx context.Context, sum *models.Summary) error {
	statsJSON, err := json.Marshal(sum.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	sourceJSON, err := json.Marshal(sum.SourceIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal source ids: %w", err)
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (kind, period_start, period_end, stats, narrative, narrative_generated, source_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, period_start) DO UPDATE SET
		   period_end = excluded.period_end,
		   stats = excluded.stats,
		   narrative = excluded.narrative,
		   narrative_generated = excluded.narrative_generated,
		   source_ids = excluded.source_ids,
		   created_at = excluded.created_at`,
		string(sum.PeriodKind), sum.PeriodStart.Format(dateLayout), sum.PeriodEnd.Format(dateLayout),
		string(statsJSON), sum.Narrative, sum.NarrativeGenerated, string(sourceJSON), sum.CreatedAt,
	)
	return err
}

// GetSummary returns the summary for a period, or nil when none exists.
func (s *SQLiteStore) GetSummary(ctx context.Context, kind models.PeriodKind, periodStart time.Time) (*models.Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT kind, period_start, period_end, stats, narrative, narrative_generated, source_ids, created_at
		 FROM summaries WHERE kind = ? AND period_start = ?`,
		string(kind), periodStart.Format(dateLayout),
	)
	sum, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sum, err
}

// ListSummaries returns all summaries of a kind ordered by period start
// ascending (oldest first).
func (s *SQLiteStore) ListSummaries(ctx context.Context, kind models.PeriodKind) ([]*models.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, period_start, period_end, stats, narrative, narrative_generated, source_ids, created_at
		 FROM summaries WHERE kind = ? ORDER BY period_start`,
		string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []*models.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// ListSummariesInRange returns summaries of a kind whose period start falls in
// [from, to), oldest first.
func (s *SQLiteStore) ListSummariesInRange(ctx context.Context, kind models.PeriodKind, from, to time.Time) ([]*models.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, period_start, period_end, stats, narrative, narrative_generated, source_ids, created_at
		 FROM summaries WHERE kind = ? AND period_start >= ? AND period_start < ? ORDER BY period_start`,
		string(kind), from.Format(dateLayout), to.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []*models.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.Summary, error) {
	var sum models.Summary
	var kind, start, end, statsJSON string
	var sourceJSON sql.NullString
	if err := row.Scan(&kind, &start, &end, &statsJSON, &sum.Narrative, &sum.NarrativeGenerated, &sourceJSON, &sum.CreatedAt); err != nil {
		return nil, err
	}
	sum.PeriodKind = models.PeriodKind(kind)
	var err error
	if sum.PeriodStart, err = time.Parse(dateLayout, start); err != nil {
		return nil, fmt.Errorf("failed to parse period start: %w", err)
	}
	if sum.PeriodEnd, err = time.Parse(dateLayout, end); err != nil {
		return nil, fmt.Errorf("failed to parse period end: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &sum.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	if sourceJSON.Valid && sourceJSON.String != "" {
		if err := json.Unmarshal([]byte(sourceJSON.String), &sum.SourceIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source ids: %w", err)
		}
	}
	return &sum, nil
}

// DeleteSummariesBefore removes summaries of a kind whose period starts before cutoff.
func (s *SQLiteStore) DeleteSummariesBefore(ctx context.Context, kind models.PeriodKind, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE kind = ? AND period_start < ?`,
		string(kind), cutoff.Format(dateLayout),
	)
	return err
}

// PutInsight inserts or replaces the insight record for its date.
func (s *SQLiteStore) PutInsight(ctx context.Context, ins *models.Insight) error {
	answerJSON, err := json.Marshal(ins.Answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO insights (date, status, answer, llm_processing, generated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		   status = excluded.status,
		   answer = excluded.answer,
		   llm_processing = excluded.llm_processing,
		   generated_at = excluded.generated_at`,
		ins.Date, string(ins.Status), string(answerJSON), ins.LLMProcessing, ins.GeneratedAt,
	)
	return err
}

// GetInsight returns the insight for a date (YYYY-MM-DD), or nil when none exists.
func (s *SQLiteStore) GetInsight(ctx context.Context, date string) (*models.Insight, error) {
	var ins models.Insight
	var status, answerJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT date, status, answer, llm_processing, generated_at FROM insights WHERE date = ?`, date,
	).Scan(&ins.Date, &status, &answerJSON, &ins.LLMProcessing, &ins.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ins.Status = models.InsightStatus(status)
	if err := json.Unmarshal([]byte(answerJSON), &ins.Answer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answer: %w", err)
	}
	return &ins, nil
}

// DeleteInsightsBefore removes insight records older than the given date. Only
// the current day's record is ever kept.
func (s *SQLiteStore) DeleteInsightsBefore(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM insights WHERE date < ?`, date)
	return err
}

// CreateActionItem inserts an action item.
func (s *SQLiteStore) CreateActionItem(ctx context.Context, item *models.ActionItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_items (id, text, source, done, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Text, item.Source, item.Done, item.CreatedAt, item.CompletedAt,
	)
	return err
}

// GetActionItem returns an action item by ID.
func (s *SQLiteStore) GetActionItem(ctx context.Context, id string) (*models.ActionItem, error) {
	var item models.ActionItem
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, source, done, created_at, completed_at FROM action_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Text, &item.Source, &item.Done, &item.CreatedAt, &item.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action item not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListActionItems returns action items newest first. When openOnly is true,
// completed items are excluded.
func (s *SQLiteStore) ListActionItems(ctx context.Context, openOnly bool) ([]*models.ActionItem, error) {
	query := `SELECT id, text, source, done, created_at, completed_at FROM action_items`
	if openOnly {
		query += ` WHERE done = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ActionItem
	for rows.Next() {
		var item models.ActionItem
		if err := rows.Scan(&item.ID, &item.Text, &item.Source, &item.Done, &item.CreatedAt, &item.CompletedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// UpdateActionItem updates an action item's text and done state.
func (s *SQLiteStore) UpdateActionItem(ctx context.Context, item *models.ActionItem) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE action_items SET text = ?, done = ?, completed_at = ? WHERE id = ?`,
		item.Text, item.Done, item.CompletedAt, item.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("action item not found: %s", item.ID)
	}
	return nil
}

// DeleteActionItem removes an action item by ID.
func (s *SQLiteStore) DeleteActionItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM action_items WHERE id = ?`, id)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
