// Package notify delivers risk verdicts to a chat-ops channel. Delivery is
// best-effort: failures and missing configuration surface in the
// DeliveryResult and never abort the analysis pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/config"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
)

// Notifier delivers one verdict to a channel.
type Notifier interface {
	Notify(ctx context.Context, entity string, level models.RiskLevel, summary, sourceLink string) models.DeliveryResult
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	Token     string
	ChannelID string
	APIURL    string
	Timeout   time.Duration
	Logger    logging.Logger
}

// LoadSlackConfig reads Slack credentials from the environment. Missing
// values are allowed; the notifier then reports skipped deliveries.
func LoadSlackConfig(logger logging.Logger) SlackConfig {
	return SlackConfig{
		Token:     config.GetEnv("SLACK_BOT_TOKEN", ""),
		ChannelID: config.GetEnv("SLACK_CHANNEL_ID", ""),
		APIURL:    config.GetEnv("SLACK_API_URL", "https://slack.com/api"),
		Logger:    logger,
	}
}

// SlackNotifier posts Block Kit alerts via chat.postMessage.
type SlackNotifier struct {
	cfg      SlackConfig
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger
}

// NewSlackNotifier creates a Slack notifier. HTTP calls run through the
// shared retry executor.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://slack.com/api"
	}
	return &SlackNotifier{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		executor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		logger:   cfg.Logger,
	}
}

type riskStyle struct {
	emoji  string
	header string
}

var riskStyles = map[models.RiskLevel]riskStyle{
	models.RiskHigh:   {emoji: "🚨", header: "CRITICAL ALERT"},
	models.RiskMedium: {emoji: "⚠️", header: "WARNING"},
	models.RiskLow:    {emoji: "ℹ️", header: "NOTICE"},
}

const maxSummaryLen = 2900

// Notify posts a formatted alert. Missing configuration returns a skipped
// result rather than an error.
func (n *SlackNotifier) Notify(ctx context.Context, entity string, level models.RiskLevel, summary, sourceLink string) models.DeliveryResult {
	if n.cfg.Token == "" || n.cfg.ChannelID == "" {
		if n.logger != nil {
			n.logger.WithField("entity", entity).Debug("Slack credentials not configured, skipping alert")
		}
		return models.DeliveryResult{
			Status:    models.DeliverySkipped,
			Entity:    entity,
			RiskLevel: level,
			Error:     "slack credentials not configured",
		}
	}

	style, ok := riskStyles[level]
	if !ok {
		style = riskStyles[models.RiskMedium]
	}
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}

	payload := map[string]interface{}{
		"channel":      n.cfg.ChannelID,
		"text":         fmt.Sprintf("%s %s Risk Alert for %s", style.emoji, strings.ToUpper(string(level)), entity),
		"blocks":       buildBlocks(entity, level, summary, sourceLink, style),
		"unfurl_links": false,
		"unfurl_media": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errorResult(entity, level, err)
	}

	resp, err := clients.ExecuteHTTP(ctx, n.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIURL+"/chat.postMessage", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
		return n.client.Do(req)
	})
	if err != nil {
		return errorResult(entity, level, err)
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return errorResult(entity, level, fmt.Errorf("decode slack response: %w", err))
	}
	if !apiResp.OK {
		return errorResult(entity, level, fmt.Errorf("slack api error: %s", apiResp.Error))
	}

	if n.logger != nil {
		n.logger.WithFields(logging.Fields{
			"entity":     entity,
			"risk_level": level,
			"channel":    n.cfg.ChannelID,
		}).Info("Alert delivered")
	}

	return models.DeliveryResult{
		Status:    models.DeliverySuccess,
		Entity:    entity,
		RiskLevel: level,
		Channel:   n.cfg.ChannelID,
		MessageTS: apiResp.TS,
	}
}

func errorResult(entity string, level models.RiskLevel, err error) models.DeliveryResult {
	return models.DeliveryResult{
		Status:    models.DeliveryError,
		Entity:    entity,
		RiskLevel: level,
		Error:     err.Error(),
	}
}

func buildBlocks(entity string, level models.RiskLevel, summary, sourceLink string, style riskStyle) []map[string]interface{} {
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 UTC")

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type":  "plain_text",
				"text":  fmt.Sprintf("%s %s: %s", style.emoji, style.header, entity),
				"emoji": true,
			},
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Institution:*\n%s", entity)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Risk Level:*\n%s", strings.ToUpper(string(level)))},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Detected At:*\n%s", timestamp)},
			},
		},
		{"type": "divider"},
		{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Summary:*\n%s", summary),
			},
		},
	}

	if sourceLink != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("<%s|View on X>", sourceLink),
			},
		})
	}

	return blocks
}
