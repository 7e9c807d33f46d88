package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
)

// RunnerConfig configures the continuous monitoring loop.
type RunnerConfig struct {
	// Interval between full monitoring cycles.
	Interval time.Duration

	// EntityPause between consecutive institutions within a cycle, to
	// spread quota consumption.
	EntityPause time.Duration
}

// DefaultRunnerConfig returns the standard cycle timing.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:    10 * time.Minute,
		EntityPause: 3 * time.Second,
	}
}

// Runner executes the pipeline for a fixed set of institutions on a cycle.
type Runner struct {
	pipeline *Pipeline
	targets  []string
	cfg      RunnerConfig
	logger   logging.Logger
}

func NewRunner(pipeline *Pipeline, targets []string, cfg RunnerConfig, logger logging.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.EntityPause < 0 {
		cfg.EntityPause = 0
	}
	return &Runner{pipeline: pipeline, targets: targets, cfg: cfg, logger: logger}
}

// RunOnce analyzes every target a single time. Auth failures abort the run;
// everything else is logged and the run continues.
func (r *Runner) RunOnce(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(r.targets))
	for i, target := range r.targets {
		if i > 0 && r.cfg.EntityPause > 0 {
			select {
			case <-ctx.Done():
				return reports, ctx.Err()
			case <-time.After(r.cfg.EntityPause):
			}
		}

		report, err := r.pipeline.Analyze(ctx, target)
		if err != nil {
			var authErr *clients.AuthError
			if errors.As(err, &authErr) {
				return reports, err
			}
			if r.logger != nil {
				r.logger.WithFields(logging.Fields{
					"entity": target,
					"error":  err.Error(),
				}).Error("Analysis failed")
			}
			continue
		}
		reports = append(reports, report)

		if r.logger != nil {
			r.logger.WithFields(logging.Fields{
				"entity":     target,
				"risk_level": report.Verdict.RiskLevel,
				"posts":      report.Verdict.PostCount,
			}).Info("Analysis completed")
		}
	}
	return reports, nil
}

// Run cycles RunOnce until the context is cancelled or a fatal error occurs.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
