// Package llm provides a minimal chat-completions provider for
// OpenAI-compatible endpoints (OpenAI, xAI). The sentiment classifier is its
// only consumer; responses are requested non-streaming with a JSON object
// response format.
package llm

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat-completion invocation.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int

	// JSONObject asks the endpoint to constrain output to a JSON object.
	JSONObject bool

	// LiveSearch enables the endpoint's realtime search, where supported
	// (xAI search_parameters). Ignored by endpoints without it.
	LiveSearch bool
}

// Provider executes chat completions.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
