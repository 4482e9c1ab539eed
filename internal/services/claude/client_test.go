package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"capaudit/internal/services"
)

func textResponse(text string) map[string]any {
	return map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
	}
}

func TestClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test" {
			t.Fatalf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Fatal("missing anthropic-version header")
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "classify this" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		if err := json.NewEncoder(w).Encode(textResponse(`{"category":"Charter"}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	text, err := client.Complete(context.Background(), "classify this", 256)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !strings.Contains(text, "Charter") {
		t.Fatalf("unexpected response text %q", text)
	}
}

func TestClientCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "demo-model"})
	_, err := client.Complete(context.Background(), "prompt", 256)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Complete(context.Background(), "prompt", 256)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "ok" {
		t.Fatalf("unexpected text %q", text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientExhaustedRateLimitClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
		WithRetryBackoff(0, 0),
		WithRetryMaxAttempts(2),
	)
	_, err := client.Complete(context.Background(), "prompt", 256)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate-limit sentinel, got %v", err)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid request"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.Complete(context.Background(), "prompt", 256); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestClientRetriesOnServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(textResponse("recovered"))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
		WithRetryBackoff(0, 0),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Complete(context.Background(), "prompt", 256)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "recovered" || calls != 3 {
		t.Fatalf("expected recovery on third call, got %q after %d calls", text, calls)
	}
}

func TestClientEmptyContentFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []any{},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Complete(context.Background(), "prompt", 256)
	if err == nil || !strings.Contains(err.Error(), "empty content") {
		t.Fatalf("expected empty-content error, got %v", err)
	}
}

func TestDecodeJSONVariants(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain", `{"category": "Charter", "confidence": 0.9}`},
		{"code fence", "```json\n{\"category\": \"Charter\", \"confidence\": 0.9}\n```"},
		{"bare fence", "```\n{\"category\": \"Charter\", \"confidence\": 0.9}\n```"},
		{"surrounding prose", "Here is the result:\n{\"category\": \"Charter\", \"confidence\": 0.9}\nLet me know if you need more."},
		{"trailing comma", `{"category": "Charter", "confidence": 0.9,}`},
		{"prose and trailing comma", "Result: {\"category\": \"Charter\", \"confidence\": 0.9,} done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decoded struct {
				Category   string  `json:"category"`
				Confidence float64 `json:"confidence"`
			}
			if err := DecodeJSON(tt.content, &decoded); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if decoded.Category != "Charter" || decoded.Confidence != 0.9 {
				t.Fatalf("unexpected decode: %+v", decoded)
			}
		})
	}
}

func TestDecodeJSONArrayInProse(t *testing.T) {
	var decoded []map[string]any
	content := "The issues are:\n[{\"category\": \"Equity\"}, {\"category\": \"Governance\"}]"
	if err := DecodeJSON(content, &decoded); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(decoded) != 2 || decoded[1]["category"] != "Governance" {
		t.Fatalf("unexpected decode: %v", decoded)
	}
}

func TestDecodeJSONIgnoresBracketsInStrings(t *testing.T) {
	var decoded map[string]string
	content := `prefix {"note": "braces {inside} a string"} suffix`
	if err := DecodeJSON(content, &decoded); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if decoded["note"] != "braces {inside} a string" {
		t.Fatalf("unexpected decode: %v", decoded)
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	var decoded map[string]any
	if err := DecodeJSON("not json at all", &decoded); err == nil {
		t.Fatal("expected decode failure")
	}
	if err := DecodeJSON("", &decoded); err == nil {
		t.Fatal("expected empty payload failure")
	}
}
