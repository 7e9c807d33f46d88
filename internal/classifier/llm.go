package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gamepop/fin-x-watcher/pkg/llm"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
)

const (
	// maxPromptPosts bounds the prompt to the most credible posts.
	maxPromptPosts = 50

	// maxEvidencePosts is how many top posts are attached to the verdict.
	maxEvidencePosts = 5
)

const systemPrompt = `You are a financial risk analyst monitoring social media chatter about financial institutions. Assess the aggregate risk signal in the provided posts.

Risk levels:
- HIGH: credible reports of insolvency, bank runs, frozen withdrawals, regulatory seizure, major security breaches, or widespread outages affecting customer funds.
- MEDIUM: sustained complaints about withdrawals or outages, credible rumors of financial distress, or unusual negative volume from credible accounts.
- LOW: routine complaints, isolated incidents, marketing chatter, or no concerning signal.

Weigh verified and high-follower accounts more heavily. Respond with a JSON object: {"risk_level": "HIGH|MEDIUM|LOW", "summary": "...", "key_findings": ["..."], "confidence": 0.0-1.0}`

// LLMClassifier classifies fetched posts with a chat-completions model.
type LLMClassifier struct {
	provider llm.Provider
	logger   logging.Logger
}

func NewLLMClassifier(provider llm.Provider, logger logging.Logger) *LLMClassifier {
	return &LLMClassifier{provider: provider, logger: logger}
}

func (c *LLMClassifier) Name() string { return "llm" }

// Classify produces a verdict from the supplied posts. An empty post set is a
// definitive LOW signal and never reaches the model. Model failures degrade
// to an UNKNOWN verdict with the error attached.
func (c *LLMClassifier) Classify(ctx context.Context, entity string, posts []models.Post) (models.RiskVerdict, error) {
	if len(posts) == 0 {
		return models.RiskVerdict{
			RiskLevel:  models.RiskLow,
			Summary:    fmt.Sprintf("No recent posts found about %s; no risk signal detected.", entity),
			Confidence: 1.0,
			DataSource: "search",
		}, nil
	}

	prompt := buildPostsPrompt(entity, posts)
	out, err := c.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		JSONObject: true,
	})
	if err != nil {
		if c.logger != nil {
			c.logger.WithFields(logging.Fields{
				"entity": entity,
				"error":  err.Error(),
			}).Error("Classification failed")
		}
		v := UnknownVerdict(entity, err.Error())
		v.PostCount = len(posts)
		v.DataSource = "search"
		return v, err
	}

	verdict, err := parseVerdict(out)
	if err != nil {
		v := UnknownVerdict(entity, err.Error())
		v.PostCount = len(posts)
		v.DataSource = "search"
		return v, err
	}

	verdict.PostCount = len(posts)
	verdict.DataSource = "search"
	if len(posts) > maxEvidencePosts {
		verdict.Evidence = posts[:maxEvidencePosts]
	} else {
		verdict.Evidence = posts
	}
	return verdict, nil
}

// LiveSearchClassifier classifies via the model's realtime search instead of
// pre-fetched posts. It is the fallback when the search API is rate limited.
type LiveSearchClassifier struct {
	provider llm.Provider
	logger   logging.Logger
}

func NewLiveSearchClassifier(provider llm.Provider, logger logging.Logger) *LiveSearchClassifier {
	return &LiveSearchClassifier{provider: provider, logger: logger}
}

func (c *LiveSearchClassifier) Name() string { return "live-search" }

func (c *LiveSearchClassifier) Classify(ctx context.Context, entity string, _ []models.Post) (models.RiskVerdict, error) {
	prompt := fmt.Sprintf(
		"Search X for posts from the last 24 hours about %q. Look for signals of financial distress, withdrawal problems, outages, security breaches, or regulatory action. Assess the aggregate risk.",
		entity,
	)
	out, err := c.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		JSONObject: true,
		LiveSearch: true,
	})
	if err != nil {
		if c.logger != nil {
			c.logger.WithFields(logging.Fields{
				"entity": entity,
				"error":  err.Error(),
			}).Error("Live-search classification failed")
		}
		v := UnknownVerdict(entity, err.Error())
		v.DataSource = "live_search"
		return v, err
	}

	verdict, err := parseVerdict(out)
	if err != nil {
		v := UnknownVerdict(entity, err.Error())
		v.DataSource = "live_search"
		return v, err
	}
	verdict.DataSource = "live_search"
	return verdict, nil
}

// buildPostsPrompt formats the most credible posts for the model, annotating
// verification tier, follower count and engagement.
func buildPostsPrompt(entity string, posts []models.Post) string {
	if len(posts) > maxPromptPosts {
		posts = posts[:maxPromptPosts]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent posts mentioning %s (%d total, most credible first):\n\n", entity, len(posts))
	for i, p := range posts {
		marker := ""
		switch {
		case p.Author.VerifiedTier == models.TierBusiness || p.Author.VerifiedTier == models.TierGovernment:
			marker = fmt.Sprintf("[VERIFIED %s] ", p.Author.VerifiedTier)
		case p.Author.Verified || p.Author.VerifiedTier == models.TierStandard:
			marker = "[VERIFIED] "
		}
		fmt.Fprintf(&b, "%d. %s@%s (%d followers, engagement %d): %s\n",
			i+1, marker, p.Author.Username, p.Author.Followers, p.TotalEngagement(), strings.ReplaceAll(p.Text, "\n", " "))
	}
	return b.String()
}

type verdictPayload struct {
	RiskLevel   string   `json:"risk_level"`
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
	Confidence  float64  `json:"confidence"`
}

// parseVerdict decodes the model's JSON verdict, tolerating code fences.
func parseVerdict(raw string) (models.RiskVerdict, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return models.RiskVerdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	level := models.RiskLevel(strings.ToUpper(strings.TrimSpace(payload.RiskLevel)))
	switch level {
	case models.RiskHigh, models.RiskMedium, models.RiskLow:
	default:
		level = models.RiskUnknown
	}

	return models.RiskVerdict{
		RiskLevel:   level,
		Summary:     payload.Summary,
		KeyFindings: payload.KeyFindings,
		Confidence:  payload.Confidence,
	}, nil
}
