package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/prompts"
	sqlutil "github.com/ekaya-inc/herdwise/pkg/sql"
)

// TranslatorConfig holds the row bounds per translation mode.
type TranslatorConfig struct {
	Analysis sqlutil.LimitPolicy
	Chart    sqlutil.LimitPolicy
}

// DefaultTranslatorConfig returns 10/100 rows for analysis and 50/200 for charts.
func DefaultTranslatorConfig() TranslatorConfig {
	return TranslatorConfig{
		Analysis: sqlutil.LimitPolicy{Default: 10, Ceiling: 100},
		Chart:    sqlutil.LimitPolicy{Default: 50, Ceiling: 200},
	}
}

// Policy returns the limit policy for mode.
func (c TranslatorConfig) Policy(mode models.TranslationMode) sqlutil.LimitPolicy {
	if mode == models.ModeChart {
		return c.Chart
	}
	return c.Analysis
}

// QueryTranslator turns a question into one bounded read-only statement.
type QueryTranslator interface {
	Translate(ctx context.Context, question string, mode models.TranslationMode) (*models.SQLStatement, error)
}

type queryTranslator struct {
	llmClient llm.LLMClient
	cfg       TranslatorConfig
	ontology  func() (string, error)
	logger    *zap.Logger
}

// NewQueryTranslator creates a translator backed by llmClient.
func NewQueryTranslator(llmClient llm.LLMClient, cfg TranslatorConfig, logger *zap.Logger) QueryTranslator {
	return &queryTranslator{
		llmClient: llmClient,
		cfg:       cfg,
		ontology:  prompts.Ontology,
		logger:    logger.Named("translator"),
	}
}

var _ QueryTranslator = (*queryTranslator)(nil)

func (s *queryTranslator) Translate(ctx context.Context, question string, mode models.TranslationMode) (*models.SQLStatement, error) {
	ontology, err := s.ontology()
	if err != nil {
		return nil, fmt.Errorf("load ontology: %w", err)
	}

	req := models.TranslationRequest{Question: question, Ontology: ontology, Mode: mode}
	policy := s.cfg.Policy(mode)

	start := time.Now()
	result, err := s.llmClient.GenerateResponse(ctx,
		prompts.BuildTranslationPrompt(req),
		prompts.BuildTranslationSystemPrompt(req, policy),
		prompts.TranslationTemperature(mode))
	if err != nil {
		return nil, fmt.Errorf("generate SQL: %w", err)
	}

	stmt, err := NormalizeStatement(result.Content, mode, policy)
	if err != nil {
		s.logger.Warn("No usable SQL in model response",
			zap.String("mode", string(mode)),
			zap.String("response", logging.Preview(result.Content)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Translated question",
		zap.String("mode", string(mode)),
		zap.Int("limit", stmt.Limit),
		zap.String("sql", logging.SanitizeQuery(stmt.Text)),
		zap.Duration("elapsed", time.Since(start)))
	return stmt, nil
}

// RejectedSQLError carries a statement the model produced that failed the
// read-only check.
type RejectedSQLError struct {
	SQL string
	Err error
}

func (e *RejectedSQLError) Error() string { return e.Err.Error() }

func (e *RejectedSQLError) Unwrap() error { return e.Err }

// NormalizeStatement extracts one statement from a model response and
// brings it to the bounded read-only shape: a single SELECT, no write
// keywords, with a LIMIT no larger than the policy ceiling.
func NormalizeStatement(response string, mode models.TranslationMode, policy sqlutil.LimitPolicy) (*models.SQLStatement, error) {
	extraction, err := sqlutil.ExtractSQL(response)
	if err != nil {
		return nil, err
	}

	if err := sqlutil.EnsureReadOnly(extraction.SQL); err != nil {
		return nil, &RejectedSQLError{SQL: extraction.SQL, Err: err}
	}

	bounded, limit, err := sqlutil.EnforceLimit(extraction.SQL, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNoSQLFound, err)
	}
	if !sqlutil.IsBounded(bounded) {
		return nil, fmt.Errorf("%w: statement does not end in a LIMIT clause", apperrors.ErrNotReadOnly)
	}

	return &models.SQLStatement{Text: bounded, Limit: limit, Mode: mode}, nil
}
