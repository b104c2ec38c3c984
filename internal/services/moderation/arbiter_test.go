package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
)

func newArbiterTestClient(t *testing.T, handler http.HandlerFunc) *ArbiterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewArbiterClient(srv.Client(), ArbiterConfig{
		Endpoint:    srv.URL,
		APIKey:      "key",
		Model:       "context-arbiter-2",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}, nil)
}

func arbiterCandidate(text string) map[string]any {
	return map[string]any{"candidates": []map[string]string{{"text": text}}}
}

func TestArbiterParsesFencedJSON(t *testing.T) {
	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(arbiterCandidate(
			"Here is my assessment:\n```json\n{\"status\": \"approved\", \"score\": 0.1, \"category\": \"safe\", \"reason\": \"benign daily update\"}\n```",
		))
	})

	verdict, err := client.Adjudicate(context.Background(), "just sharing my day", "")
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if verdict.Status != enums.ModerationStatusApproved {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if verdict.Category != "safe" || verdict.Score != 0.1 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestArbiterParsesBareJSON(t *testing.T) {
	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(arbiterCandidate(
			`{"status": "rejected", "score": 0.95, "category": "hate", "reason": "targeted harassment"}`,
		))
	})

	verdict, err := client.Adjudicate(context.Background(), "text", "")
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if verdict.Status != enums.ModerationStatusRejected || verdict.Category != "hate" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestArbiterRetriesOn429WithSharedRequestID(t *testing.T) {
	var calls int32
	seen := make(map[string]struct{})

	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("X-Request-ID")] = struct{}{}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(arbiterCandidate(
			`{"status": "flagged", "score": 0.5, "category": "controversial", "reason": "borderline"}`,
		))
	})

	verdict, err := client.Adjudicate(context.Background(), "text", "")
	if err != nil {
		t.Fatalf("adjudicate after retries: %v", err)
	}
	if verdict.Status != enums.ModerationStatusFlagged {
		t.Fatalf("unexpected status: %s", verdict.Status)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(seen) != 1 {
		t.Fatalf("retries must share one logical request id, saw %d", len(seen))
	}
}

func TestArbiterGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Adjudicate(context.Background(), "text", "")
	if err == nil {
		t.Fatalf("expected error once retries are exhausted")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestArbiterSafetyBlockIsDecisiveReject(t *testing.T) {
	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates":      []map[string]string{},
			"prompt_feedback": map[string]string{"block_reason": "SAFETY"},
		})
	})

	verdict, err := client.Adjudicate(context.Background(), "text", "")
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if verdict.Status != enums.ModerationStatusRejected || verdict.Category != "safety_block" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestArbiterUnparseableBodyIsProviderError(t *testing.T) {
	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(arbiterCandidate("I think this post is fine."))
	})

	_, err := client.Adjudicate(context.Background(), "text", "")
	var providerErr *ProviderError
	if !asProviderError(err, &providerErr) || providerErr.Code != CodeParseError {
		t.Fatalf("expected parse provider error, got %v", err)
	}
}

func TestArbiterUnknownStatusCoercedToFlagged(t *testing.T) {
	client := newArbiterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(arbiterCandidate(
			`{"status": "maybe", "score": 0.4, "category": "odd", "reason": "unsure"}`,
		))
	})

	verdict, err := client.Adjudicate(context.Background(), "text", "")
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if verdict.Status != enums.ModerationStatusFlagged {
		t.Fatalf("unknown status must coerce to flagged, got %s", verdict.Status)
	}
}

func TestArbiterNotConfigured(t *testing.T) {
	client := NewArbiterClient(http.DefaultClient, ArbiterConfig{Endpoint: "http://x"}, nil)
	if client.Configured() {
		t.Fatalf("client without api key must not report configured")
	}
}
