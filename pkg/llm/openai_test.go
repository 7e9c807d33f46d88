package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var gotBody openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"risk_level\":\"LOW\"}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Model: "grok-4-1-fast", APIKey: "test-key", APIURL: srv.URL})
	out, err := p.Complete(context.Background(), Request{
		Messages:   []Message{{Role: "user", Content: "classify"}},
		JSONObject: true,
		LiveSearch: true,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !strings.Contains(out, "LOW") {
		t.Fatalf("unexpected content %q", out)
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_object" {
		t.Fatal("expected json_object response format in request")
	}
	if gotBody.SearchParameters == nil || gotBody.SearchParameters.Mode != "auto" {
		t.Fatal("expected live search parameters in request")
	}
}

func TestOpenAIProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Model: "grok-4-1-fast", APIURL: srv.URL})
	if _, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}}); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestOpenAIProvider_RequiresModel(t *testing.T) {
	p := NewOpenAIProvider(Config{})
	if _, err := p.Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected error without model")
	}
}
