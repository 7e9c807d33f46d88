// Package analysis orchestrates one risk assessment per institution: fetch
// recent posts, derive the volume trend, classify, and deliver alerts for
// elevated verdicts.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamepop/fin-x-watcher/internal/classifier"
	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/entities"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/notify"
	"github.com/gamepop/fin-x-watcher/pkg/scoring"
)

const fetchBatchSize = 50

// Fetcher is the upstream search surface the pipeline consumes.
type Fetcher interface {
	SearchRecent(ctx context.Context, query string, maxResults int) ([]models.Post, error)
	CountTrend(ctx context.Context, query string) models.TrendSummary
}

// Report is the outcome of one analysis run for one institution.
type Report struct {
	Entity     entities.Entity        `json:"entity"`
	Verdict    models.RiskVerdict     `json:"verdict"`
	Trend      models.TrendSummary    `json:"trend"`
	Delivery   *models.DeliveryResult `json:"delivery,omitempty"`
	AnalyzedAt time.Time              `json:"analyzed_at"`
}

// Pipeline runs the fetch-classify-notify sequence.
type Pipeline struct {
	fetcher    Fetcher
	classifier classifier.Classifier
	fallback   classifier.Classifier
	notifier   notify.Notifier
	logger     logging.Logger
}

// NewPipeline wires a pipeline. fallback handles the rate-limited path and
// may be nil; notifier may be nil when alerting is not configured.
func NewPipeline(fetcher Fetcher, primary, fallback classifier.Classifier, notifier notify.Notifier, logger logging.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		classifier: primary,
		fallback:   fallback,
		notifier:   notifier,
		logger:     logger,
	}
}

// Analyze assesses one institution. Auth failures abort; rate limiting and an
// open circuit breaker fall back to live-search classification; other
// upstream failures degrade to whatever data was fetched.
func (p *Pipeline) Analyze(ctx context.Context, name string) (Report, error) {
	entity := entities.NewEntity(name)
	report := Report{Entity: entity, AnalyzedAt: time.Now().UTC()}

	riskQuery := entities.BuildRiskQuery(entity.Name, entity.Type)
	posts, throttled, err := p.fetchBoth(ctx, riskQuery, entity.SearchRule)
	if err != nil {
		return report, err
	}

	if throttled && len(posts) == 0 && p.fallback != nil {
		if p.logger != nil {
			p.logger.WithField("entity", entity.Name).Warn("Search throttled, falling back to live-search classification")
		}
		verdict, _ := p.fallback.Classify(ctx, entity.Name, nil)
		report.Verdict = verdict
		report.Trend = models.TrendSummary{Err: "skipped: search throttled"}
		p.deliver(ctx, &report)
		return report, nil
	}

	report.Trend = p.fetcher.CountTrend(ctx, entity.SearchRule)

	verdict, cerr := p.classifier.Classify(ctx, entity.Name, posts)
	if cerr != nil && p.logger != nil {
		p.logger.WithFields(logging.Fields{
			"entity": entity.Name,
			"error":  cerr.Error(),
		}).Warn("Classifier degraded, reporting UNKNOWN verdict")
	}
	report.Verdict = verdict

	p.deliver(ctx, &report)
	return report, nil
}

// fetchBoth runs the risk-focused and base searches and merges the results,
// deduplicating by post ID and re-sorting by credibility. The returned flag
// marks throttled runs: rate-limited upstream or an open circuit breaker,
// both of which the caller answers with the live-search fallback rather than
// classifying an artificially empty result.
func (p *Pipeline) fetchBoth(ctx context.Context, riskQuery, baseQuery string) ([]models.Post, bool, error) {
	var merged []models.Post
	seen := make(map[string]struct{})
	throttled := false

	for _, query := range []string{riskQuery, baseQuery} {
		posts, err := p.fetcher.SearchRecent(ctx, query, fetchBatchSize)
		if err != nil {
			var authErr *clients.AuthError
			if errors.As(err, &authErr) {
				return nil, false, fmt.Errorf("search aborted: %w", err)
			}
			var rl *clients.RateLimitedError
			if errors.As(err, &rl) || errors.Is(err, clients.ErrBreakerOpen) {
				throttled = true
				continue
			}
			if p.logger != nil {
				p.logger.WithFields(logging.Fields{
					"query": query,
					"error": err.Error(),
				}).Warn("Search failed, continuing with partial data")
			}
			continue
		}
		for _, post := range posts {
			if _, dup := seen[post.ID]; dup {
				continue
			}
			seen[post.ID] = struct{}{}
			merged = append(merged, post)
		}
	}

	scoring.SortByCredibility(merged)
	return merged, throttled, nil
}

// deliver sends an alert for elevated verdicts and records the outcome.
func (p *Pipeline) deliver(ctx context.Context, report *Report) {
	level := report.Verdict.RiskLevel
	if level != models.RiskHigh && level != models.RiskMedium {
		return
	}
	if p.notifier == nil {
		return
	}

	summary := report.Verdict.Summary
	if len(report.Verdict.KeyFindings) > 0 {
		summary += "\n\n*Key findings:*\n• " + strings.Join(report.Verdict.KeyFindings, "\n• ")
	}
	if report.Trend.IsSpiking {
		summary += fmt.Sprintf("\n\nPost volume is spiking: %+.0f%% velocity change.", report.Trend.VelocityChangePercent)
	}

	sourceLink := ""
	if len(report.Verdict.Evidence) > 0 {
		sourceLink = report.Verdict.Evidence[0].URL
	}

	result := p.notifier.Notify(ctx, report.Entity.Name, level, summary, sourceLink)
	report.Delivery = &result

	if result.Status == models.DeliveryError && p.logger != nil {
		p.logger.WithFields(logging.Fields{
			"entity": report.Entity.Name,
			"error":  result.Error,
		}).Error("Alert delivery failed")
	}
}
