package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamepop/fin-x-watcher/pkg/models"
)

func TestSlackNotifier_SkipsWithoutCredentials(t *testing.T) {
	n := NewSlackNotifier(SlackConfig{})

	res := n.Notify(context.Background(), "Chase", models.RiskHigh, "summary", "")

	assert.Equal(t, models.DeliverySkipped, res.Status)
	assert.Equal(t, "Chase", res.Entity)
	assert.NotEmpty(t, res.Error)
}

func TestSlackNotifier_PostsBlockKitMessage(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat.postMessage", r.URL.Path)
		require.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{
		Token:     "xoxb-test",
		ChannelID: "C123",
		APIURL:    srv.URL,
	})

	res := n.Notify(context.Background(), "Coinbase", models.RiskHigh, "Withdrawal complaints spiking", "https://x.com/u/status/1")

	require.Equal(t, models.DeliverySuccess, res.Status)
	assert.Equal(t, "C123", res.Channel)
	assert.Equal(t, "1700000000.000100", res.MessageTS)

	assert.Equal(t, "C123", payload["channel"])
	blocks, ok := payload["blocks"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, blocks)
	header, ok := blocks[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "header", header["type"])
}

func TestSlackNotifier_APIErrorBecomesErrorResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{Token: "xoxb-test", ChannelID: "C404", APIURL: srv.URL})

	res := n.Notify(context.Background(), "Chase", models.RiskMedium, "summary", "")

	assert.Equal(t, models.DeliveryError, res.Status)
	assert.Contains(t, res.Error, "channel_not_found")
}

func TestSlackNotifier_TruncatesLongSummaries(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1.2"}`))
	}))
	defer srv.Close()

	long := make([]byte, maxSummaryLen+500)
	for i := range long {
		long[i] = 'a'
	}

	n := NewSlackNotifier(SlackConfig{Token: "xoxb-test", ChannelID: "C123", APIURL: srv.URL})
	res := n.Notify(context.Background(), "Chase", models.RiskLow, string(long), "")

	require.Equal(t, models.DeliverySuccess, res.Status)
	raw, err := json.Marshal(payload["blocks"])
	require.NoError(t, err)
	assert.Less(t, len(raw), maxSummaryLen+2000)
}
