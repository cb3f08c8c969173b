package safety

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/logging"
	"github.com/ekaya-inc/herdwise/pkg/models"
)

// CheckPolicy configures one classifier slot of the gate.
type CheckPolicy struct {
	OnError ErrorPolicy
	Timeout time.Duration
}

// GateConfig configures the gate.
type GateConfig struct {
	Moderation CheckPolicy
	Jailbreak  CheckPolicy
	// JailbreakThreshold is used when Check is given a threshold <= 0.
	JailbreakThreshold float64
}

// DefaultGateConfig fails closed on moderation errors and open on jailbreak
// detector errors, with a 0.5 injection threshold.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Moderation:         CheckPolicy{OnError: OnErrorDeny, Timeout: 10 * time.Second},
		Jailbreak:          CheckPolicy{OnError: OnErrorAllow, Timeout: JailbreakTimeout},
		JailbreakThreshold: 0.5,
	}
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Blocked         bool
	Reason          Reason
	Detail          string
	Confidence      float64
	SafeProbability float64
	Categories      []string
	// Errors records classifier failures, whether or not they blocked.
	Errors []string
}

// Report converts the decision for the response envelope.
func (d *Decision) Report() *models.SafetyReport {
	return &models.SafetyReport{
		Blocked:         d.Blocked,
		Reason:          string(d.Reason),
		Detail:          d.Detail,
		Confidence:      d.Confidence,
		SafeProbability: d.SafeProbability,
		Categories:      d.Categories,
		Errors:          d.Errors,
	}
}

// Gate runs the moderation check and then the jailbreak check.
type Gate interface {
	// Check never returns an error: classifier failures are resolved by each
	// check's ErrorPolicy and recorded on the decision.
	Check(ctx context.Context, text string, threshold float64) *Decision
}

type gate struct {
	cfg        GateConfig
	moderation Classifier
	jailbreak  Classifier
	logger     *zap.Logger
}

var _ Gate = (*gate)(nil)

// NewGate creates a gate. A nil classifier disables that check.
func NewGate(cfg GateConfig, moderation, jailbreak Classifier, logger *zap.Logger) Gate {
	return &gate{
		cfg:        cfg,
		moderation: moderation,
		jailbreak:  jailbreak,
		logger:     logger.Named("safety"),
	}
}

func (g *gate) Check(ctx context.Context, text string, threshold float64) *Decision {
	decision := &Decision{Reason: ReasonNone}

	if g.moderation != nil {
		verdict, err := g.run(ctx, g.moderation, g.cfg.Moderation, text, 0)
		switch {
		case err != nil:
			decision.Errors = append(decision.Errors, err.Error())
			if g.cfg.Moderation.OnError == OnErrorDeny {
				decision.Blocked = true
				decision.Reason = ReasonClassifierUnavailable
				decision.Detail = "content moderation unavailable"
				return decision
			}
		case verdict.Flagged:
			decision.Blocked = true
			decision.Reason = ReasonHarmfulContent
			decision.Detail = verdict.Detail
			decision.Confidence = verdict.Confidence
			decision.Categories = verdict.Categories
			g.logger.Info("Request blocked by moderation", zap.Strings("categories", verdict.Categories))
			return decision
		}
	}

	if g.jailbreak != nil {
		if threshold <= 0 {
			threshold = g.cfg.JailbreakThreshold
		}
		verdict, err := g.run(ctx, g.jailbreak, g.cfg.Jailbreak, text, threshold)
		switch {
		case err != nil:
			decision.Errors = append(decision.Errors, err.Error())
			if g.cfg.Jailbreak.OnError == OnErrorDeny {
				decision.Blocked = true
				decision.Reason = ReasonClassifierUnavailable
				decision.Detail = "jailbreak detection unavailable"
				return decision
			}
		default:
			decision.Confidence = verdict.Confidence
			decision.SafeProbability = verdict.SafeProbability
			if verdict.Flagged {
				decision.Blocked = true
				decision.Reason = ReasonJailbreak
				decision.Detail = verdict.Detail
				decision.Categories = verdict.Categories
				g.logger.Info("Request blocked by jailbreak detection",
					zap.Float64("confidence", verdict.Confidence),
					zap.Float64("threshold", threshold))
				return decision
			}
		}
	}

	return decision
}

func (g *gate) run(ctx context.Context, c Classifier, policy CheckPolicy, text string, threshold float64) (*Verdict, error) {
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	start := time.Now()
	verdict, err := c.Classify(ctx, text, threshold)
	if err != nil {
		g.logger.Warn("Safety check failed",
			zap.String("check", c.Name()),
			zap.String("on_error", string(policy.OnError)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%s: %s", c.Name(), logging.SanitizeError(err))
	}

	g.logger.Debug("Safety check completed",
		zap.String("check", c.Name()),
		zap.Bool("flagged", verdict.Flagged),
		zap.Float64("confidence", verdict.Confidence),
		zap.Duration("elapsed", time.Since(start)))
	return verdict, nil
}
