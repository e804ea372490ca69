package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/assemble"
	"github.com/hyperjump/tsuzuri/internal/llm"
	"github.com/hyperjump/tsuzuri/internal/models"
	"github.com/hyperjump/tsuzuri/pkg/utils"
)

// SystemPrompt is the fixed tone and structure contract for all generation.
const SystemPrompt = `You are a gentle, supportive personal coach. Your role is to help someone understand their patterns and make small, sustainable changes. You must:
- Never shame or judge
- Present evidence neutrally
- Give ONE small, actionable suggestion
- Be indirect and gentle in your tone
- Only use information from the provided context
- If data is insufficient, say so clearly

Your response must follow this structure:
VERDICT: [One sentence neutral observation]
EVIDENCE:
- [Evidence item citing a source entry id from the context]
- [Evidence item citing a source entry id from the context]
ACTION: [One small, specific action]
CONFIDENCE_ESTIMATE: [Integer 0-100]`

// InsufficientData is returned when nothing eligible exists in the journal.
// No model call is made: there is nothing to ground an answer in.
func InsufficientData() models.StructuredAnswer {
	return models.StructuredAnswer{
		Verdict:    "Not enough journal data yet to answer this confidently.",
		Evidence:   []models.Evidence{},
		Action:     "Continue journaling to build a clearer picture.",
		Confidence: 0,
	}
}

// Engine answers free-form questions over the journal.
type Engine struct {
	assembler *assemble.Assembler
	gateway   *llm.Gateway
	maxTokens int
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a query engine.
func NewEngine(assembler *assemble.Assembler, gateway *llm.Gateway, maxTokens int, opts ...Option) *Engine {
	e := &Engine{
		assembler: assembler,
		gateway:   gateway,
		maxTokens: maxTokens,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer assembles context for the query, generates, and parses the result.
// Generation failures degrade to a low-confidence answer; they never surface
// as errors to the caller.
func (e *Engine) Answer(ctx context.Context, query string) (models.StructuredAnswer, error) {
	c, err := e.assembler.ForQuery(ctx, query)
	if err != nil {
		return models.StructuredAnswer{}, fmt.Errorf("assemble context: %w", err)
	}
	if c.Empty() {
		e.logger.Debug("query with empty context, returning canned answer", zap.String("query", query))
		return InsufficientData(), nil
	}

	prompt := BuildQueryPrompt(c, query)
	e.logger.Debug("generating answer",
		zap.String("query", query),
		zap.Int("prompt_tokens_est", utils.EstimateTokens(prompt)))
	resp, err := e.gateway.Generate(ctx, &llm.Request{
		System:      SystemPrompt,
		Prompt:      prompt,
		MaxTokens:   e.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		e.logger.Warn("generation failed, degrading", zap.Error(err))
		return models.StructuredAnswer{
			Verdict:    "Unable to generate a response at this time.",
			Evidence:   []models.Evidence{},
			Action:     "Please try again later.",
			Confidence: 0,
		}, nil
	}

	parsed := Parse(resp.Text, c.EntryIDs)
	e.logger.Debug("query answered",
		zap.String("query", query),
		zap.Int("evidence", len(parsed.Evidence)),
		zap.Float64("confidence", parsed.Confidence))
	return parsed, nil
}

// BuildQueryPrompt pairs the assembled context with the user's question.
func BuildQueryPrompt(c *assemble.Context, query string) string {
	return fmt.Sprintf("Context from journal entries:\n%s\n\nQuestion: %s", c.Render(), query)
}

// BuildInsightPrompt asks for the daily on-open reflection over recent context.
func BuildInsightPrompt(c *assemble.Context) string {
	return fmt.Sprintf("Context from the last week of journal entries:\n%s\n\n"+
		"Reflect on the last few days: what pattern stands out, and what one small thing is worth trying today?", c.Render())
}
