// Package main is the Tsuzuri CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/answer"
	"github.com/hyperjump/tsuzuri/internal/assemble"
	"github.com/hyperjump/tsuzuri/internal/config"
	"github.com/hyperjump/tsuzuri/internal/embedding"
	"github.com/hyperjump/tsuzuri/internal/export"
	"github.com/hyperjump/tsuzuri/internal/index"
	"github.com/hyperjump/tsuzuri/internal/insight"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/keyword"
	"github.com/hyperjump/tsuzuri/internal/llm"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/internal/scheduler"
	"github.com/hyperjump/tsuzuri/internal/server"
	"github.com/hyperjump/tsuzuri/internal/storage"
	"github.com/hyperjump/tsuzuri/internal/summary"
	"github.com/hyperjump/tsuzuri/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tsuzuri/config.yaml"

// Entries and summaries older than this are pruned; yearly summaries are kept.
const retentionDays = 365

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "entry":
		runEntry()
	case "query":
		runQuery()
	case "insight":
		runInsight()
	case "summarize":
		runSummarize()
	case "rebuild":
		runRebuild()
	case "export":
		runExport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("tsuzuri version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: tsuzuri <command> [flags]

Commands:
  server     Run the local HTTP API with file watching and scheduled roll-ups
  entry      Add a journal entry
  query      Ask a question over the journal
  insight    Show today's insight (use -force to regenerate)
  summarize  Generate summaries for completed weeks, months, and years
  rebuild    Rebuild the embedding index from stored entries
  export     Export entries and summaries to an Excel workbook
  status     Show counts and configuration
  version    Print version
  help       Show this help
`)
}

func mustSetup(configPath string) (*config.Config, string, *zap.Logger) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolvedPath, logger
}

// Components holds the wired services.
type Components struct {
	Entries   *journal.FileStore
	Store     *storage.SQLiteStore
	Embedder  embedding.Embedder
	Index     *index.EmbeddingIndex
	Keyword   *keyword.EntryIndex
	Gateway   *llm.Gateway
	Assembler *assemble.Assembler
	Engine    *answer.Engine
	Insights  *insight.Cache
	Hierarchy *summary.Hierarchy
	Archiver  *summary.Archiver
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Save()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	entries, err := journal.NewFileStore(cfg.Storage.EntriesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open entries dir: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// A broken model setup is a hard error. Falling back to a different
	// embedder here would make the stored index look stale and trigger a
	// rebuild that overwrites real vectors.
	var embedder embedding.Embedder
	switch cfg.Embedding.Backend {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		embedder, err = embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.ModelName,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			return nil, fmt.Errorf("embedding model unavailable (set embedding.backend to \"mock\" to run without it): %w", err)
		}
	}

	idx, err := index.New(embedder, entries, cfg.Storage.VectorIndexPath, index.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding index: %w", err)
	}
	if err := idx.Load(ctx); err != nil {
		if errors.Is(err, index.ErrModelMismatch) {
			// Only reachable after a deliberate change of the configured
			// model, since a missing model fails above.
			logger.Warn("embedding index built with a different model, rebuilding", zap.Error(err))
			if _, rebuildErr := idx.Rebuild(ctx); rebuildErr != nil {
				return nil, fmt.Errorf("failed to rebuild embedding index: %w", rebuildErr)
			}
		} else {
			return nil, fmt.Errorf("failed to load embedding index: %w", err)
		}
	}

	kw, err := keyword.NewEntryIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	gateway := llm.NewGateway(
		llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.Model),
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
		llm.WithLogger(logger),
	)
	assembler := assemble.New(idx, entries, store, assemble.Options{
		RecentWindowDays: cfg.Context.RecentWindowDays,
		ArchiveAfterDays: cfg.Context.ArchiveAfterDays,
		CharBudget:       cfg.Context.CharBudget,
		MaxSummaries:     cfg.Context.MaxSummaries,
		RetrievalK:       cfg.Context.RetrievalK,
	}, assemble.WithLogger(logger))
	engine := answer.NewEngine(assembler, gateway, cfg.LLM.MaxTokens, answer.WithLogger(logger))
	insights := insight.NewCache(store, assembler, gateway, entries, cfg.LLM.MaxTokens,
		insight.WithLogger(logger),
		insight.WithPollBudget(
			time.Duration(cfg.Insight.PollIntervalSeconds)*time.Second,
			cfg.Insight.MaxPolls,
		))
	hierarchy := summary.NewHierarchy(entries, store, gateway, summary.WithLogger(logger))
	archiver := summary.NewArchiver(entries, store, idx, retentionDays*24*time.Hour, logger)

	return &Components{
		Entries:   entries,
		Store:     store,
		Embedder:  embedder,
		Index:     idx,
		Keyword:   kw,
		Gateway:   gateway,
		Assembler: assembler,
		Engine:    engine,
		Insights:  insights,
		Hierarchy: hierarchy,
		Archiver:  archiver,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := mustSetup(*configPath)
	defer logger.Sync()

	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath))

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Entries written directly into the entries dir (or synced in from another
	// machine) are picked up without a restart.
	watchSvc := journal.NewWatcher(
		components.Entries.Dir(),
		func(id string) {
			entry, err := components.Entries.Get(id)
			if err != nil {
				logger.Warn("watch: entry unreadable", zap.String("id", id), zap.Error(err))
				return
			}
			if err := components.Index.IndexEntry(context.Background(), entry); err != nil {
				logger.Warn("watch: embedding index failed", zap.String("id", id), zap.Error(err))
			}
			if err := components.Keyword.Index(context.Background(), entry); err != nil {
				logger.Warn("watch: keyword index failed", zap.String("id", id), zap.Error(err))
			}
		},
		func(id string) {
			if err := components.Index.RemoveEntry(context.Background(), id); err != nil {
				logger.Warn("watch: embedding remove failed", zap.String("id", id), zap.Error(err))
			}
			if err := components.Keyword.Remove(context.Background(), id); err != nil {
				logger.Warn("watch: keyword remove failed", zap.String("id", id), zap.Error(err))
			}
		},
		journal.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}

	sched, err := scheduler.New(components.Hierarchy, components.Archiver, scheduler.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	srv := server.NewServer(server.Deps{
		Entries:   components.Entries,
		Store:     components.Store,
		Index:     components.Index,
		Keyword:   components.Keyword,
		Engine:    components.Engine,
		Insights:  components.Insights,
		Hierarchy: components.Hierarchy,
	}, cfg, resolvedConfigPath, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	_ = sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runEntry() {
	fs := flag.NewFlagSet("entry", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	emotion := fs.String("emotion", "", "emotion from the configured vocabulary")
	energy := fs.Int("energy", 5, "energy level 1-10")
	showedUp := fs.Bool("showed-up", false, "did you show up for yourself today")
	habitsFlag := fs.String("habits", "", "comma-separated completed habits")
	text := fs.String("text", "", "short free text")
	reflection := fs.String("reflection", "", "longer reflection")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	habits := make(map[string]bool)
	for _, h := range strings.Split(*habitsFlag, ",") {
		if h = strings.TrimSpace(h); h != "" {
			habits[h] = true
		}
	}
	entry := &models.Entry{
		ID:         journal.NewEntryID(),
		CreatedAt:  time.Now(),
		Emotion:    *emotion,
		Energy:     *energy,
		ShowedUp:   *showedUp,
		Habits:     habits,
		FreeText:   *text,
		Reflection: *reflection,
	}
	if err := entry.Validate(cfg.Vocab); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid entry: %v\n", err)
		os.Exit(1)
	}
	entry.Derived = journal.Derive(entry)

	if err := components.Entries.Save(entry); err != nil {
		fmt.Fprintf(os.Stderr, "Save failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Index.IndexEntry(ctx, entry); err != nil {
		logger.Warn("embedding index failed", zap.Error(err))
	}
	if err := components.Keyword.Index(ctx, entry); err != nil {
		logger.Warn("keyword index failed", zap.Error(err))
	}
	fmt.Printf("Entry saved: %s\n", entry.ID)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = direct access)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tsuzuri query [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	if *serverURL != "" {
		ans, err := queryViaHTTP(*serverURL, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		printAnswer(ans)
		return
	}

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ans, err := components.Engine.Answer(ctx, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	printAnswer(&ans)
}

func queryViaHTTP(serverURL, question string) (*models.StructuredAnswer, error) {
	body, err := json.Marshal(map[string]string{"query": question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var ans models.StructuredAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ans, nil
}

func printAnswer(ans *models.StructuredAnswer) {
	fmt.Printf("\n%s\n", ans.Verdict)
	if len(ans.Evidence) > 0 {
		fmt.Println("\nEvidence:")
		for _, ev := range ans.Evidence {
			fmt.Printf("  - %s\n", ev.Text)
		}
	}
	if ans.Action != "" {
		fmt.Printf("\nSuggestion: %s\n", ans.Action)
	}
	fmt.Printf("\nConfidence: %.0f%%\n", ans.Confidence*100)
}

func runInsight() {
	fs := flag.NewFlagSet("insight", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "regenerate today's insight")
	wait := fs.Bool("wait", false, "wait for pending generation to resolve")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ins, err := components.Insights.OnOpen(ctx, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Insight failed: %v\n", err)
		os.Exit(1)
	}
	if *wait {
		for ins.Status == models.InsightPending || ins.LLMProcessing {
			time.Sleep(time.Second)
			ins, err = components.Insights.OnOpen(ctx, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Insight failed: %v\n", err)
				os.Exit(1)
			}
		}
	}
	fmt.Printf("Insight for %s (%s):\n", ins.Date, ins.Status)
	printAnswer(&ins.Answer)
}

func runSummarize() {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Hierarchy.RunDue(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Summarize failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Summaries up to date.")
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	count, err := components.Index.Rebuild(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rebuilt embedding index: %d entries\n", count)
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "journal-export.xlsx", "output file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	entries, err := components.Entries.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "List entries failed: %v\n", err)
		os.Exit(1)
	}
	summaries := make([]*models.Summary, 0)
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly} {
		list, err := components.Store.ListSummaries(ctx, kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List summaries failed: %v\n", err)
			os.Exit(1)
		}
		summaries = append(summaries, list...)
	}
	if err := export.WriteFile(ctx, *out, entries, summaries); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d entries and %d summaries to %s\n", len(entries), len(summaries), *out)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = direct access)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(body)
		return
	}

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	entryCount, err := components.Entries.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("entries:            %d\n", entryCount)
	fmt.Printf("vector_index_size:  %d\n", components.Index.Size())
	if kwCount, err := components.Keyword.Count(); err == nil {
		fmt.Printf("keyword_index_size: %d\n", kwCount)
	}
	fmt.Printf("embedding_model:    %s (%d dims)\n", cfg.Embedding.ModelName, cfg.Embedding.Dimensions)
	fmt.Printf("database_path:      %s\n", cfg.Storage.DatabasePath)
}
