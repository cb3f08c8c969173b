package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/prompts"
)

// ErrEmptyNarrative is returned when the model answers with no text.
var ErrEmptyNarrative = errors.New("model returned an empty narrative")

// ResultInterpreter writes the text answer for a result set.
type ResultInterpreter interface {
	// Summarize passes the question, SQL, the first rows and the severity
	// rubric to the model and returns its narrative unmodified.
	Summarize(ctx context.Context, question, sql string, results *models.ResultSet) (string, error)
}

type resultInterpreter struct {
	llmClient llm.LLMClient
	logger    *zap.Logger
}

// NewResultInterpreter creates an interpreter backed by llmClient.
func NewResultInterpreter(llmClient llm.LLMClient, logger *zap.Logger) ResultInterpreter {
	return &resultInterpreter{
		llmClient: llmClient,
		logger:    logger.Named("interpreter"),
	}
}

var _ ResultInterpreter = (*resultInterpreter)(nil)

func (s *resultInterpreter) Summarize(ctx context.Context, question, sql string, results *models.ResultSet) (string, error) {
	prompt, err := prompts.BuildInterpretationPrompt(question, sql, results.Head(prompts.InterpretationRowLimit), results.RowCount())
	if err != nil {
		return "", err
	}

	start := time.Now()
	result, err := s.llmClient.GenerateResponse(ctx, prompt, prompts.BuildInterpretationSystemPrompt(), prompts.InterpretationTemperature)
	if err != nil {
		return "", fmt.Errorf("summarize results: %w", err)
	}
	if strings.TrimSpace(result.Content) == "" {
		return "", ErrEmptyNarrative
	}

	s.logger.Debug("Narrative generated",
		zap.Int("rows", results.RowCount()),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return result.Content, nil
}
