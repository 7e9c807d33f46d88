package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamepop/fin-x-watcher/internal/classifier"
	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/llm"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/trends"
)

type fakeFetcher struct {
	posts      map[string][]models.Post
	searchErr  error
	trend      models.TrendSummary
	trendErr   error
	searchLog  []string
	countCalls int
}

func (f *fakeFetcher) SearchRecent(_ context.Context, query string, _ int) ([]models.Post, error) {
	f.searchLog = append(f.searchLog, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	for key, posts := range f.posts {
		if key == query || key == "*" {
			return posts, nil
		}
	}
	return nil, nil
}

func (f *fakeFetcher) CountTrend(_ context.Context, _ string) models.TrendSummary {
	f.countCalls++
	if f.trendErr != nil {
		return trends.ErrorSummary(f.trendErr)
	}
	return f.trend
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	return f.response, f.err
}

type recordingNotifier struct {
	calls     int
	lastLevel models.RiskLevel
	lastText  string
	result    models.DeliveryResult
}

func (n *recordingNotifier) Notify(_ context.Context, entity string, level models.RiskLevel, summary, _ string) models.DeliveryResult {
	n.calls++
	n.lastLevel = level
	n.lastText = summary
	n.result.Entity = entity
	n.result.RiskLevel = level
	if n.result.Status == "" {
		n.result.Status = models.DeliverySuccess
	}
	return n.result
}

func newTestPipeline(fetcher *fakeFetcher, primaryLLM, fallbackLLM *fakeLLM, notifier *recordingNotifier) *Pipeline {
	primary := classifier.NewLLMClassifier(primaryLLM, nil)
	var fallback classifier.Classifier
	if fallbackLLM != nil {
		fallback = classifier.NewLiveSearchClassifier(fallbackLLM, nil)
	}
	return NewPipeline(fetcher, primary, fallback, notifier, nil)
}

func TestAnalyze_EmptySearchYieldsLowWithoutAlert(t *testing.T) {
	fetcher := &fakeFetcher{}
	notifier := &recordingNotifier{}
	p := newTestPipeline(fetcher, &fakeLLM{response: `{"risk_level":"HIGH"}`}, nil, notifier)

	report, err := p.Analyze(context.Background(), "Chase")

	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, report.Verdict.RiskLevel)
	assert.Zero(t, notifier.calls, "LOW verdict must not alert")
	assert.Len(t, fetcher.searchLog, 2, "risk and base queries both searched")
}

func TestAnalyze_HighVerdictTriggersAlert(t *testing.T) {
	fetcher := &fakeFetcher{
		posts: map[string][]models.Post{"*": {
			{ID: "1", Text: "bank run", URL: "https://x.com/u/status/1", Author: models.Author{Username: "u"}},
		}},
		trend: models.TrendSummary{TotalCount: 40, VelocityChangePercent: 200, IsSpiking: true},
	}
	notifier := &recordingNotifier{}
	p := newTestPipeline(fetcher, &fakeLLM{
		response: `{"risk_level":"HIGH","summary":"Run chatter","key_findings":["withdrawals frozen"],"confidence":0.9}`,
	}, nil, notifier)

	report, err := p.Analyze(context.Background(), "Chase")

	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, report.Verdict.RiskLevel)
	require.Equal(t, 1, notifier.calls)
	assert.Equal(t, models.RiskHigh, notifier.lastLevel)
	assert.Contains(t, notifier.lastText, "Run chatter")
	assert.Contains(t, notifier.lastText, "withdrawals frozen")
	assert.Contains(t, notifier.lastText, "spiking")
	require.NotNil(t, report.Delivery)
	assert.Equal(t, models.DeliverySuccess, report.Delivery.Status)
}

func TestAnalyze_DuplicatePostsMergedAcrossQueries(t *testing.T) {
	fetcher := &fakeFetcher{
		posts: map[string][]models.Post{"*": {
			{ID: "1", Text: "same post"},
			{ID: "2", Text: "other post"},
		}},
	}
	p := newTestPipeline(fetcher, &fakeLLM{response: `{"risk_level":"LOW","summary":"quiet"}`}, nil, nil)

	report, err := p.Analyze(context.Background(), "Chase")

	require.NoError(t, err)
	assert.Equal(t, 2, report.Verdict.PostCount, "both queries return the same posts; dedup by ID")
}

func TestAnalyze_AuthErrorAborts(t *testing.T) {
	fetcher := &fakeFetcher{searchErr: &clients.AuthError{Message: "bad token"}}
	p := newTestPipeline(fetcher, &fakeLLM{}, nil, nil)

	_, err := p.Analyze(context.Background(), "Chase")

	var authErr *clients.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, fetcher.countCalls, "aborted analysis must not fetch trends")
}

func TestAnalyze_RateLimitFallsBackToLiveSearch(t *testing.T) {
	fetcher := &fakeFetcher{searchErr: &clients.RateLimitedError{ResetIn: time.Minute}}
	notifier := &recordingNotifier{}
	p := newTestPipeline(fetcher,
		&fakeLLM{err: errors.New("should not be called")},
		&fakeLLM{response: `{"risk_level":"MEDIUM","summary":"complaints building","confidence":0.7}`},
		notifier)

	report, err := p.Analyze(context.Background(), "Coinbase")

	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, report.Verdict.RiskLevel)
	assert.Equal(t, "live_search", report.Verdict.DataSource)
	assert.NotEmpty(t, report.Trend.Err, "trend must be marked skipped")
	assert.Equal(t, 1, notifier.calls)
}

func TestAnalyze_BreakerOpenFallsBackToLiveSearch(t *testing.T) {
	fetcher := &fakeFetcher{searchErr: clients.ErrBreakerOpen}
	notifier := &recordingNotifier{}
	p := newTestPipeline(fetcher,
		&fakeLLM{err: errors.New("should not be called")},
		&fakeLLM{response: `{"risk_level":"HIGH","summary":"outage chatter spreading","confidence":0.8}`},
		notifier)

	report, err := p.Analyze(context.Background(), "Chase")

	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, report.Verdict.RiskLevel,
		"an open breaker must not be classified as a confident LOW")
	assert.Equal(t, "live_search", report.Verdict.DataSource)
	assert.NotEmpty(t, report.Trend.Err, "trend must be marked skipped")
	assert.Equal(t, 1, notifier.calls)
}

func TestAnalyze_UnavailableDegradesToEmptyData(t *testing.T) {
	fetcher := &fakeFetcher{searchErr: &clients.UnavailableError{Cause: errors.New("boom")}}
	p := newTestPipeline(fetcher, &fakeLLM{response: `{"risk_level":"LOW"}`}, nil, nil)

	report, err := p.Analyze(context.Background(), "Chase")

	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, report.Verdict.RiskLevel, "empty posts short-circuit to LOW")
}

func TestAnalyze_ClassifierFailureReportsUnknown(t *testing.T) {
	fetcher := &fakeFetcher{
		posts: map[string][]models.Post{"*": {{ID: "1", Text: "something"}}},
	}
	notifier := &recordingNotifier{}
	p := newTestPipeline(fetcher, &fakeLLM{err: errors.New("model down")}, nil, notifier)

	report, err := p.Analyze(context.Background(), "Chase")

	require.NoError(t, err, "classifier failure must not abort the run")
	assert.Equal(t, models.RiskUnknown, report.Verdict.RiskLevel)
	assert.Contains(t, report.Verdict.Error, "model down")
	assert.Zero(t, notifier.calls, "UNKNOWN verdict must not alert")
}

func TestRunner_RunOnceContinuesPastFailures(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := newTestPipeline(fetcher, &fakeLLM{response: `{"risk_level":"LOW"}`}, nil, nil)
	r := NewRunner(p, []string{"Chase", "Coinbase"}, RunnerConfig{Interval: time.Hour, EntityPause: time.Millisecond}, nil)

	reports, err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestRunner_RunOnceAbortsOnAuthError(t *testing.T) {
	fetcher := &fakeFetcher{searchErr: &clients.AuthError{Message: "bad token"}}
	p := newTestPipeline(fetcher, &fakeLLM{}, nil, nil)
	r := NewRunner(p, []string{"Chase", "Coinbase"}, RunnerConfig{Interval: time.Hour}, nil)

	reports, err := r.RunOnce(context.Background())

	var authErr *clients.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, reports)
}

func TestRunner_RunStopsOnContextCancel(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := newTestPipeline(fetcher, &fakeLLM{response: `{"risk_level":"LOW"}`}, nil, nil)
	r := NewRunner(p, []string{"Chase"}, RunnerConfig{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	assert.NoError(t, err)
}
