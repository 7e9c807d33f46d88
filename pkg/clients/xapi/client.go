// Package xapi is a typed client for the X API v2 recent search, tweet
// counts, and filtered stream endpoints. Every request passes through a local
// quota, a circuit breaker, and bounded retries; upstream failures are mapped
// onto the shared client error taxonomy.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gamepop/fin-x-watcher/pkg/cache"
	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/entities"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/scoring"
	"github.com/gamepop/fin-x-watcher/pkg/trends"
)

const (
	tweetFields = "created_at,public_metrics,author_id,in_reply_to_user_id"
	userFields  = "username,verified,verified_type,public_metrics,created_at"
	expansions  = "author_id"

	defaultMaxResults = 50
	countsGranularity = "hour"
)

// Client talks to the X API v2.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	windowHours int
	sortOrder   string
	quota       *clients.Quota
	breaker     *clients.CircuitBreaker
	retry       clients.RetryConfig
	counts      *cache.Cache
	logger      logging.Logger
}

// NewClient creates an X API client from the given configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	windowHours := cfg.WindowHours
	if windowHours <= 0 {
		windowHours = 24
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.BearerToken,
		windowHours: windowHours,
		sortOrder:   cfg.SortOrder,
		quota:       clients.NewQuota(cfg.QuotaRequests, cfg.QuotaWindow),
		breaker:     clients.NewCircuitBreaker(cfg.Breaker),
		retry:       cfg.Retry,
		counts: cache.New(cache.Options{
			TTL:                  5 * time.Minute,
			StaleWhileRevalidate: 10 * time.Minute,
			NegativeTTL:          30 * time.Second,
			MaxEntries:           256,
		}),
		logger: cfg.Logger,
	}
}

// BreakerState exposes the breaker state for the status surface.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// BreakerStats exposes breaker statistics for the status surface.
func (c *Client) BreakerStats() (string, int, time.Time) {
	state, failures, lastFailure := c.breaker.Stats()
	return state.String(), failures, lastFailure
}

// SearchRecent fetches recent posts matching the query, excluding retweets
// and restricted to English. Results carry credibility scores and are sorted
// most credible first.
func (c *Client) SearchRecent(ctx context.Context, query string, maxResults int) ([]models.Post, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	params := url.Values{}
	params.Set("query", query+" -is:retweet lang:en")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("start_time", time.Now().UTC().Add(-time.Duration(c.windowHours)*time.Hour).Format(time.RFC3339))
	params.Set("tweet.fields", tweetFields)
	params.Set("expansions", expansions)
	params.Set("user.fields", userFields)
	if c.sortOrder != "" {
		params.Set("sort_order", c.sortOrder)
	}

	var parsed searchResponse
	if err := c.getJSON(ctx, "/tweets/search/recent", params, &parsed); err != nil {
		return nil, err
	}

	users := make(map[string]apiUser, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		users[u.ID] = u
	}

	posts := make([]models.Post, 0, len(parsed.Data))
	for _, t := range parsed.Data {
		posts = append(posts, t.toPost(users[t.AuthorID]))
	}
	posts = scoring.ScoreAll(posts)
	scoring.SortByCredibility(posts)

	if c.logger != nil {
		c.logger.WithFields(logging.Fields{
			"query": query,
			"posts": len(posts),
		}).Debug("Recent search completed")
	}
	return posts, nil
}

// CountTrend fetches hourly post counts for the query and summarizes the
// volume trend. Counts are cached per query; failures yield an error-marked
// summary because trend data is best-effort.
func (c *Client) CountTrend(ctx context.Context, query string) models.TrendSummary {
	val, ok, err := c.counts.Get(ctx, query, func(ctx context.Context, key string) (interface{}, bool, error) {
		buckets, err := c.fetchCounts(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return buckets, true, nil
	})
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("counts unavailable")
		}
		if c.logger != nil {
			c.logger.WithFields(logging.Fields{
				"query": query,
				"error": err.Error(),
			}).Warn("Trend counts unavailable")
		}
		return trends.ErrorSummary(err)
	}
	buckets, _ := val.([]models.CountBucket)
	return trends.Summarize(buckets)
}

func (c *Client) fetchCounts(ctx context.Context, query string) ([]models.CountBucket, error) {
	params := url.Values{}
	params.Set("query", query+" -is:retweet lang:en")
	params.Set("granularity", countsGranularity)
	params.Set("start_time", time.Now().UTC().Add(-time.Duration(c.windowHours)*time.Hour).Format(time.RFC3339))

	var parsed countsResponse
	if err := c.getJSON(ctx, "/tweets/counts/recent", params, &parsed); err != nil {
		return nil, err
	}

	buckets := make([]models.CountBucket, 0, len(parsed.Data))
	for _, b := range parsed.Data {
		buckets = append(buckets, models.CountBucket{Start: b.Start, End: b.End, Count: b.TweetCount})
	}
	return buckets, nil
}

// StreamRules returns the currently installed filtered-stream rules.
func (c *Client) StreamRules(ctx context.Context) ([]entities.StreamRule, error) {
	var parsed rulesResponse
	if err := c.getJSON(ctx, "/tweets/search/stream/rules", nil, &parsed); err != nil {
		return nil, err
	}
	rules := make([]entities.StreamRule, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		rules = append(rules, entities.StreamRule{Value: r.Value, Tag: r.Tag})
	}
	return rules, nil
}

// ReplaceStreamRules deletes every installed rule and installs the given set.
func (c *Client) ReplaceStreamRules(ctx context.Context, rules []entities.StreamRule) error {
	var existing rulesResponse
	if err := c.getJSON(ctx, "/tweets/search/stream/rules", nil, &existing); err != nil {
		return err
	}

	if len(existing.Data) > 0 {
		ids := make([]string, 0, len(existing.Data))
		for _, r := range existing.Data {
			ids = append(ids, r.ID)
		}
		body := map[string]interface{}{"delete": map[string]interface{}{"ids": ids}}
		if err := c.postJSON(ctx, "/tweets/search/stream/rules", body, nil); err != nil {
			return fmt.Errorf("delete stream rules: %w", err)
		}
	}

	if len(rules) == 0 {
		return nil
	}

	add := make([]map[string]string, 0, len(rules))
	for _, r := range rules {
		add = append(add, map[string]string{"value": r.Value, "tag": r.Tag})
	}
	body := map[string]interface{}{"add": add}
	if err := c.postJSON(ctx, "/tweets/search/stream/rules", body, nil); err != nil {
		return fmt.Errorf("add stream rules: %w", err)
	}

	if c.logger != nil {
		c.logger.WithField("rules", len(rules)).Info("Stream rules installed")
	}
	return nil
}

// OpenStream connects to the filtered stream. The returned reader yields one
// matched post at a time; the caller owns reconnect policy.
func (c *Client) OpenStream(ctx context.Context) (*StreamReader, error) {
	params := url.Values{}
	params.Set("tweet.fields", tweetFields)
	params.Set("expansions", expansions)
	params.Set("user.fields", userFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tweets/search/stream?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	if err := c.quota.Acquire(); err != nil {
		return nil, err
	}

	var resp *http.Response
	err = c.breaker.Call(func() error {
		// The stream is long-lived; the client timeout must not apply.
		streamClient := &http.Client{Transport: c.httpClient.Transport}
		r, doErr := streamClient.Do(req)
		if doErr != nil {
			return &clients.UnavailableError{Cause: doErr}
		}
		if r.StatusCode != http.StatusOK {
			defer r.Body.Close()
			return c.statusError(r)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newStreamReader(resp.Body), nil
}

// getJSON performs a GET through quota, breaker and retry, decoding the
// response into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	if err := c.quota.Acquire(); err != nil {
		return err
	}

	return clients.DoWithRetry(ctx, c.retry, func() error {
		return c.breaker.Call(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			return c.doJSON(req, out)
		})
	})
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	if err := c.quota.Acquire(); err != nil {
		return err
	}

	return clients.DoWithRetry(ctx, c.retry, func() error {
		return c.breaker.Call(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(payload)))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			req.Header.Set("Content-Type", "application/json")
			return c.doJSON(req, out)
		})
	})
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &clients.UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps an upstream HTTP status onto the shared error taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &clients.AuthError{Message: fmt.Sprintf("x api rejected credentials (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &clients.RateLimitedError{ResetIn: rateLimitResetIn(resp)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &clients.UnavailableError{Cause: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	default:
		return fmt.Errorf("x api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// rateLimitResetIn derives the wait until quota reset from the
// x-rate-limit-reset header (unix seconds), defaulting to 15 minutes.
func rateLimitResetIn(resp *http.Response) time.Duration {
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
		}
	}
	return 15 * time.Minute
}
