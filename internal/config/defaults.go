package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.EntriesDir == "" {
		cfg.Storage.EntriesDir = "/usr/local/var/tsuzuri/data/entries"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tsuzuri/data/db/journal.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/tsuzuri/data/indices/vectors.bin"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/tsuzuri/data/indices/bleve"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/tsuzuri/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Context.RecentWindowDays == 0 {
		cfg.Context.RecentWindowDays = 7
	}
	if cfg.Context.ArchiveAfterDays == 0 {
		cfg.Context.ArchiveAfterDays = 30
	}
	if cfg.Context.CharBudget == 0 {
		cfg.Context.CharBudget = 1500
	}
	if cfg.Context.MaxSummaries == 0 {
		cfg.Context.MaxSummaries = 3
	}
	if cfg.Context.RetrievalK == 0 {
		cfg.Context.RetrievalK = 5
	}
	if cfg.Insight.PollIntervalSeconds == 0 {
		cfg.Insight.PollIntervalSeconds = 5
	}
	if cfg.Insight.MaxPolls == 0 {
		// 24 polls at 5s is a two-minute ceiling on total wait.
		cfg.Insight.MaxPolls = 24
	}
	if cfg.Vocab.Emotions == nil {
		cfg.Vocab.Emotions = []string{"content", "motivated", "calm", "tired", "stressed", "anxious", "sad", "angry"}
	}
	if cfg.Vocab.Habits == nil {
		cfg.Vocab.Habits = []string{"exercise", "deep_work", "sleep_on_time"}
	}
}
