package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamepop/fin-x-watcher/pkg/llm"
	"github.com/gamepop/fin-x-watcher/pkg/models"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
	lastReq  llm.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func somePosts(n int) []models.Post {
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{
			ID:     string(rune('a' + i)),
			Text:   "withdrawals frozen",
			Author: models.Author{Username: "user", Followers: 100},
		}
	}
	return posts
}

func TestLLMClassifier_EmptyPostsIsLowWithoutModelCall(t *testing.T) {
	provider := &fakeProvider{}
	c := NewLLMClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Chase", nil)

	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, verdict.RiskLevel)
	assert.Equal(t, 0, verdict.PostCount)
	assert.Zero(t, provider.calls, "empty input must not reach the model")
}

func TestLLMClassifier_ParsesVerdict(t *testing.T) {
	provider := &fakeProvider{
		response: `{"risk_level":"high","summary":"Bank run chatter","key_findings":["withdrawal complaints"],"confidence":0.9}`,
	}
	c := NewLLMClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Chase", somePosts(8))

	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, verdict.RiskLevel)
	assert.Equal(t, "Bank run chatter", verdict.Summary)
	assert.Equal(t, 8, verdict.PostCount)
	assert.Equal(t, "search", verdict.DataSource)
	assert.Len(t, verdict.Evidence, 5)
	assert.True(t, provider.lastReq.JSONObject)
	assert.False(t, provider.lastReq.LiveSearch)
}

func TestLLMClassifier_ToleratesCodeFences(t *testing.T) {
	provider := &fakeProvider{
		response: "```json\n{\"risk_level\":\"MEDIUM\",\"summary\":\"s\",\"confidence\":0.5}\n```",
	}
	c := NewLLMClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Chase", somePosts(1))
	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, verdict.RiskLevel)
}

func TestLLMClassifier_ErrorDegradesToUnknown(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model overloaded")}
	c := NewLLMClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Chase", somePosts(3))

	require.Error(t, err)
	assert.Equal(t, models.RiskUnknown, verdict.RiskLevel)
	assert.Contains(t, verdict.Error, "model overloaded")
	assert.Equal(t, 3, verdict.PostCount)
}

func TestLLMClassifier_GarbageOutputDegradesToUnknown(t *testing.T) {
	provider := &fakeProvider{response: "sorry, I cannot help with that"}
	c := NewLLMClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Chase", somePosts(2))
	require.Error(t, err)
	assert.Equal(t, models.RiskUnknown, verdict.RiskLevel)
}

func TestLLMClassifier_InvalidLevelBecomesUnknown(t *testing.T) {
	provider := &fakeProvider{response: `{"risk_level":"CATASTROPHIC","summary":"s"}`}
	c := NewLLMClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Chase", somePosts(1))
	require.NoError(t, err)
	assert.Equal(t, models.RiskUnknown, verdict.RiskLevel)
}

func TestLiveSearchClassifier_EnablesLiveSearch(t *testing.T) {
	provider := &fakeProvider{
		response: `{"risk_level":"LOW","summary":"quiet","confidence":0.8}`,
	}
	c := NewLiveSearchClassifier(provider, nil)

	verdict, err := c.Classify(context.Background(), "Coinbase", nil)

	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, verdict.RiskLevel)
	assert.Equal(t, "live_search", verdict.DataSource)
	assert.True(t, provider.lastReq.LiveSearch)
}

func TestChain_FallsThroughOnError(t *testing.T) {
	failing := NewLLMClassifier(&fakeProvider{err: errors.New("down")}, nil)
	working := NewLiveSearchClassifier(&fakeProvider{
		response: `{"risk_level":"MEDIUM","summary":"complaints","confidence":0.6}`,
	}, nil)

	chain := NewChain(failing, working)
	verdict, err := chain.Classify(context.Background(), "Chase", somePosts(2))

	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, verdict.RiskLevel)
	assert.Equal(t, "live_search", verdict.DataSource)
}

func TestChain_AllFailingReturnsUnknown(t *testing.T) {
	chain := NewChain(
		NewLLMClassifier(&fakeProvider{err: errors.New("down")}, nil),
		NewLiveSearchClassifier(&fakeProvider{err: errors.New("also down")}, nil),
	)

	verdict, err := chain.Classify(context.Background(), "Chase", somePosts(2))

	require.Error(t, err)
	assert.Equal(t, models.RiskUnknown, verdict.RiskLevel)
}
