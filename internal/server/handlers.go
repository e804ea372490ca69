package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/config"
	"github.com/hyperjump/tsuzuri/internal/export"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/models"
)

type entryInput struct {
	Emotion    string          `json:"emotion"`
	Energy     int             `json:"energy"`
	ShowedUp   bool            `json:"showed_up"`
	Habits     map[string]bool `json:"habits,omitempty"`
	Goals      []string        `json:"goals,omitempty"`
	FreeText   string          `json:"free_text"`
	Reflection string          `json:"reflection,omitempty"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var input entryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry := &models.Entry{
		ID:         journal.NewEntryID(),
		CreatedAt:  time.Now(),
		Emotion:    input.Emotion,
		Energy:     input.Energy,
		ShowedUp:   input.ShowedUp,
		Habits:     input.Habits,
		Goals:      input.Goals,
		FreeText:   input.FreeText,
		Reflection: input.Reflection,
	}
	if err := entry.Validate(s.config.Vocab); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry.Derived = journal.Derive(entry)

	if err := s.entries.Save(entry); err != nil {
		s.logger.Error("save entry failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Index failures do not lose the entry; a rebuild picks it up later.
	if err := s.index.IndexEntry(r.Context(), entry); err != nil {
		s.logger.Warn("embedding index update failed", zap.String("id", entry.ID), zap.Error(err))
	}
	if s.keyword != nil {
		if err := s.keyword.Index(r.Context(), entry); err != nil {
			s.logger.Warn("keyword index update failed", zap.String("id", entry.ID), zap.Error(err))
		}
	}

	s.respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var entries []*models.Entry
	var err error
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		days, parseErr := strconv.Atoi(daysParam)
		if parseErr != nil || days <= 0 {
			s.respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		now := time.Now()
		entries, err = s.entries.ListRange(now.AddDate(0, 0, -days), now.Add(time.Second))
	} else {
		entries, err = s.entries.List()
	}
	if err != nil {
		s.logger.Error("list entries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.entries.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "entry not found")
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query))
	ans, err := s.engine.Answer(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword search not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	hits, err := s.keyword.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type searchHit struct {
		Entry *models.Entry `json:"entry"`
		Score float64       `json:"score"`
	}
	results := make([]searchHit, 0, len(hits))
	for _, hit := range hits {
		entry, err := s.entries.Get(hit.ID)
		if err != nil {
			s.logger.Warn("search hit refers to missing entry", zap.String("id", hit.ID))
			continue
		}
		results = append(results, searchHit{Entry: entry, Score: hit.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	count, err := s.index.Rebuild(r.Context())
	if err != nil {
		s.logger.Error("index rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "rebuilt", "indexed": count})
}

func (s *Server) handleInsightOnOpen(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	ins, err := s.insights.OnOpen(r.Context(), force)
	if err != nil {
		s.logger.Error("insight failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ins)
}

func (s *Server) handleRunSummaries(w http.ResponseWriter, r *http.Request) {
	if err := s.hierarchy.RunDue(r.Context()); err != nil {
		s.logger.Error("summary run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	kinds := []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly}
	if v := r.URL.Query().Get("kind"); v != "" {
		kind := models.PeriodKind(v)
		switch kind {
		case models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly:
			kinds = []models.PeriodKind{kind}
		default:
			s.respondError(w, http.StatusBadRequest, "kind must be weekly, monthly, or yearly")
			return
		}
	}

	all := make([]*models.Summary, 0)
	for _, kind := range kinds {
		summaries, err := s.store.ListSummaries(r.Context(), kind)
		if err != nil {
			s.logger.Error("list summaries failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		all = append(all, summaries...)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"summaries": all, "count": len(all)})
}

type actionInput struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var input actionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	item := &models.ActionItem{
		ID:        journal.NewEntryID(),
		Text:      input.Text,
		Source:    input.Source,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateActionItem(r.Context(), item); err != nil {
		s.logger.Error("create action item failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") == "true"
	items, err := s.store.ListActionItems(r.Context(), openOnly)
	if err != nil {
		s.logger.Error("list action items failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"actions": items, "count": len(items)})
}

type actionUpdate struct {
	Done *bool   `json:"done,omitempty"`
	Text *string `json:"text,omitempty"`
}

func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.store.GetActionItem(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.respondError(w, http.StatusNotFound, "action item not found")
		return
	}

	var update actionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.Text != nil {
		item.Text = *update.Text
	}
	if update.Done != nil {
		item.Done = *update.Done
		if item.Done {
			now := time.Now()
			item.CompletedAt = &now
		} else {
			item.CompletedAt = nil
		}
	}
	if err := s.store.UpdateActionItem(r.Context(), item); err != nil {
		s.logger.Error("update action item failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteActionItem(r.Context(), id); err != nil {
		s.logger.Error("delete action item failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := s.entries.List()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summaries := make([]*models.Summary, 0)
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly} {
		list, err := s.store.ListSummaries(r.Context(), kind)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		summaries = append(summaries, list...)
	}

	f, err := export.Workbook(r.Context(), entries, summaries)
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="journal-export.xlsx"`)
	if err := f.Write(w); err != nil {
		s.logger.Error("export write failed", zap.Error(err))
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.respondJSON(w, http.StatusOK, s.config)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var updated config.Config
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	config.ApplyDefaults(&updated)

	s.configMu.Lock()
	*s.config = updated
	if s.configPath != "" {
		if err := config.Save(s.configPath, s.config); err != nil {
			s.logger.Warn("failed to persist config", zap.Error(err))
		}
	}
	s.configMu.Unlock()

	s.logger.Info("config updated")
	s.respondJSON(w, http.StatusOK, s.config)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	entryCount, err := s.entries.Count()
	if err != nil {
		s.logger.Error("status: count entries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"entries":           entryCount,
		"vector_index_size": s.index.Size(),
	}
	if s.keyword != nil {
		if kwCount, err := s.keyword.Count(); err == nil {
			resp["keyword_index_size"] = kwCount
		}
	}
	resp["config"] = map[string]any{
		"embedding_model":      s.config.Embedding.ModelName,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"recent_window_days":   s.config.Context.RecentWindowDays,
		"char_budget":          s.config.Context.CharBudget,
		"database_path":        s.config.Storage.DatabasePath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
