package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/apperrors"
	"github.com/ekaya-inc/herdwise/pkg/audit"
	"github.com/ekaya-inc/herdwise/pkg/llm"
	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/safety"
)

// Pipeline stage names, used in logs and timeout suggestions.
const (
	StageSafety    = "safety"
	StageIntent    = "intent"
	StageTranslate = "translate"
	StageExecute   = "execute"
	StageInterpret = "interpret"
	StageSpecify   = "specify"
)

// StageTimeouts bounds each external call site. Zero disables the bound.
type StageTimeouts struct {
	Safety    time.Duration
	Intent    time.Duration
	Translate time.Duration
	Execute   time.Duration
	Interpret time.Duration
	Specify   time.Duration
}

// DefaultStageTimeouts returns the timeouts used when none are configured.
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Safety:    20 * time.Second,
		Intent:    20 * time.Second,
		Translate: 45 * time.Second,
		Execute:   60 * time.Second,
		Interpret: 60 * time.Second,
		Specify:   30 * time.Second,
	}
}

func (t StageTimeouts) forStage(stage string) time.Duration {
	switch stage {
	case StageSafety:
		return t.Safety
	case StageIntent:
		return t.Intent
	case StageTranslate:
		return t.Translate
	case StageExecute:
		return t.Execute
	case StageInterpret:
		return t.Interpret
	case StageSpecify:
		return t.Specify
	default:
		return 0
	}
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	Timeouts StageTimeouts
	// JailbreakThreshold is passed to the safety gate; <= 0 uses the gate default.
	JailbreakThreshold float64
	// Backends lists the configured store names, offered in remediation hints.
	Backends []string
}

// PipelineServices are the stage implementations the orchestrator sequences.
type PipelineServices struct {
	Gate        safety.Gate
	Intent      IntentClassifier
	Translator  QueryTranslator
	Executor    QueryExecutorService
	Interpreter ResultInterpreter
	Specifier   ChartSpecifier
}

// Pipeline answers one question end to end.
type Pipeline interface {
	// Run never returns an error: every stage failure is converted into the
	// result's error category.
	Run(ctx context.Context, req *models.AskRequest) *models.PipelineResult
}

type pipeline struct {
	svc     PipelineServices
	cfg     PipelineConfig
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewPipeline creates the orchestrator.
func NewPipeline(svc PipelineServices, cfg PipelineConfig, logger *zap.Logger) Pipeline {
	return &pipeline{
		svc:     svc,
		cfg:     cfg,
		auditor: audit.NewSecurityAuditor(logger),
		logger:  logger.Named("pipeline"),
	}
}

var _ Pipeline = (*pipeline)(nil)

// run carries one request through the state machine.
type run struct {
	result *models.PipelineResult
	start  time.Time
	logger *zap.Logger
}

func (r *run) advance(to models.PipelineState) {
	if !r.result.State.CanTransition(to) {
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", r.result.State, to))
	}
	r.result.State = to
}

func (r *run) fail(category models.ErrorCategory, message, suggestion string) *models.PipelineResult {
	r.advance(models.StateFailed)
	r.result.Success = false
	r.result.Error = &models.PipelineError{
		Category:   category,
		Message:    message,
		Suggestion: suggestion,
		SQL:        r.result.SQL,
	}
	r.result.Elapsed = time.Since(r.start)
	r.logger.Info("Request failed",
		zap.String("category", string(category)),
		zap.String("message", message),
		zap.Duration("elapsed", r.result.Elapsed))
	return r.result
}

func (r *run) succeed() *models.PipelineResult {
	r.advance(models.StateResponseBuilt)
	r.result.Success = true
	r.result.Elapsed = time.Since(r.start)
	r.logger.Info("Request answered",
		zap.String("backend", r.result.Backend),
		zap.Int("rows", r.result.Results.RowCount()),
		zap.Duration("elapsed", r.result.Elapsed))
	return r.result
}

func (p *pipeline) Run(ctx context.Context, req *models.AskRequest) *models.PipelineResult {
	requestID := uuid.NewString()
	r := &run{
		result: &models.PipelineResult{
			RequestID: requestID,
			State:     models.StateStart,
			Question:  strings.TrimSpace(req.Question),
		},
		start:  time.Now(),
		logger: p.logger.With(zap.String("request_id", requestID)),
	}
	question := r.result.Question
	if question == "" {
		return r.fail(models.ErrTranslationFailed, "question is empty", "Ask a question about the farm data.")
	}

	// safety
	var decision *safety.Decision
	p.stage(ctx, StageSafety, func(ctx context.Context) error {
		decision = p.svc.Gate.Check(ctx, question, p.cfg.JailbreakThreshold)
		return nil
	})
	r.result.Safety = decision.Report()
	if decision.Blocked {
		p.auditor.LogRequestBlocked(requestID, question, r.result.Safety)
		if decision.Reason == safety.ReasonClassifierUnavailable {
			return r.fail(models.ErrConnectivityFailed, "safety check failed: "+decision.Detail,
				"The safety service could not be reached. Retry shortly.")
		}
		msg := fmt.Sprintf("%s: %s", decision.Reason, decision.Detail)
		return r.fail(models.ErrSecurityBlocked, strings.TrimSuffix(msg, ": "), "")
	}
	r.advance(models.StateSafetyChecked)

	// intent
	var intent *models.Intent
	err := p.stage(ctx, StageIntent, func(ctx context.Context) error {
		var err error
		intent, err = p.svc.Intent.Classify(ctx, question, req.Force)
		return err
	})
	if err != nil {
		r.logger.Warn("Intent classification failed, defaulting to text", zap.Error(err))
		intent = &models.Intent{
			Kind:       models.IntentText,
			Confidence: 0.5,
			Reasoning:  "intent classification failed: " + logging.SanitizeError(err),
			Source:     models.IntentSourceFallback,
		}
	}
	r.result.Intent = intent
	r.advance(models.StateIntentKnown)

	// translate
	mode := models.ModeFor(intent.Kind)
	var stmt *models.SQLStatement
	err = p.stage(ctx, StageTranslate, func(ctx context.Context) error {
		var err error
		stmt, err = p.svc.Translator.Translate(ctx, question, mode)
		return err
	})
	if err != nil {
		if isDeadline(err) {
			return r.fail(models.ErrConnectivityFailed, "SQL generation timed out", p.timeoutSuggestion(StageTranslate))
		}
		var rejected *RejectedSQLError
		if errors.As(err, &rejected) {
			p.auditor.LogUnsafeSQL(requestID, question, rejected.SQL, rejected.Err)
		}
		return r.fail(models.ErrTranslationFailed, logging.SanitizeError(err),
			"Rephrase the question in terms of farms, barns, dates and metrics.")
	}
	r.result.SQL = stmt.Text
	r.advance(models.StateSQLGenerated)

	// execute
	var execution *Execution
	err = p.stage(ctx, StageExecute, func(ctx context.Context) error {
		var err error
		execution, err = p.svc.Executor.Execute(ctx, stmt.Text, req.Backend)
		return err
	})
	if err != nil {
		return p.failExecution(r, err)
	}
	r.result.Backend = execution.Backend
	r.result.Results = execution.Results
	p.auditor.LogQueryExecution(requestID, question, execution.Backend, execution.Results.RowCount())
	r.advance(models.StateQueryExecuted)

	if intent.Kind == models.IntentChart {
		return p.answerWithChart(ctx, r, req)
	}
	return p.answerWithText(ctx, r)
}

func (p *pipeline) answerWithText(ctx context.Context, r *run) *models.PipelineResult {
	var narrative string
	err := p.stage(ctx, StageInterpret, func(ctx context.Context) error {
		var err error
		narrative, err = p.svc.Interpreter.Summarize(ctx, r.result.Question, r.result.SQL, r.result.Results)
		return err
	})
	if err != nil {
		if isDeadline(err) {
			return r.fail(models.ErrConnectivityFailed, "result interpretation timed out", p.timeoutSuggestion(StageInterpret))
		}
		return r.fail(models.ErrInterpretationFailed, logging.SanitizeError(err), "")
	}
	r.result.Narrative = narrative
	return r.succeed()
}

func (p *pipeline) answerWithChart(ctx context.Context, r *run, req *models.AskRequest) *models.PipelineResult {
	if r.result.Results.RowCount() == 0 {
		return r.fail(models.ErrEmptyResult, apperrors.ErrEmptyResult.Error(),
			"Widen the date range or relax the filters; a chart needs at least one row.")
	}

	var spec *models.ChartSpec
	err := p.stage(ctx, StageSpecify, func(ctx context.Context) error {
		var err error
		spec, err = p.svc.Specifier.Specify(ctx, ChartSpecRequest{
			Question:   r.result.Question,
			SQL:        r.result.SQL,
			Results:    r.result.Results,
			ServiceURL: req.SpecServiceURL,
		})
		return err
	})
	switch {
	case err == nil:
	case isDeadline(err):
		return r.fail(models.ErrConnectivityFailed, "chart specification timed out", p.timeoutSuggestion(StageSpecify))
	case errors.Is(err, apperrors.ErrEmptyResult):
		return r.fail(models.ErrEmptyResult, err.Error(), "")
	default:
		return r.fail(models.ErrSpecificationFailed, logging.SanitizeError(err), "Ask for the answer as text instead.")
	}
	r.result.Chart = spec
	return r.succeed()
}

func (p *pipeline) failExecution(r *run, err error) *models.PipelineResult {
	msg := logging.SanitizeError(err)
	switch {
	case errors.Is(err, apperrors.ErrUnknownBackend):
		return r.fail(models.ErrExecutionFailed, msg, p.backendHint("Choose a configured backend"))
	case errors.Is(err, datasource.ErrStoreFileMissing):
		return r.fail(models.ErrConnectivityFailed, msg,
			p.backendHint("Run `herdwise bootstrap` to create the local store, or switch backend"))
	case datasource.IsPolicyBlocked(err):
		return r.fail(models.ErrConnectivityFailed, msg,
			p.backendHint("The warehouse rejected this host by network policy. Whitelist this host's IP, or switch to the local backend"))
	case datasource.IsConnectivity(err):
		if isDeadline(err) {
			return r.fail(models.ErrConnectivityFailed, "query timed out: "+msg, p.timeoutSuggestion(StageExecute))
		}
		return r.fail(models.ErrConnectivityFailed, msg,
			p.backendHint("The store is unreachable. Check its address and credentials, or switch backend"))
	default:
		return r.fail(models.ErrExecutionFailed, msg, "")
	}
}

// stage runs fn under the stage timeout.
func (p *pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if timeout := p.cfg.Timeouts.forStage(name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	p.logger.Debug("Stage finished",
		zap.String("stage", name),
		zap.Bool("ok", err == nil),
		zap.Duration("elapsed", time.Since(start)))
	return err
}

func (p *pipeline) timeoutSuggestion(stage string) string {
	return fmt.Sprintf("The %s stage did not finish within %s. Retry, or raise pipeline.timeouts.%s.",
		stage, p.cfg.Timeouts.forStage(stage), stage)
}

func (p *pipeline) backendHint(prefix string) string {
	if len(p.cfg.Backends) == 0 {
		return prefix + "."
	}
	return fmt.Sprintf("%s (configured: %s).", prefix, strings.Join(p.cfg.Backends, ", "))
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || llm.IsTimeout(err)
}
