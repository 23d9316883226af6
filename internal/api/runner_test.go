package api

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseJSONResponsePlain(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	if err := ParseJSONResponse(`{"name": "economist"}`, &target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Name != "economist" {
		t.Errorf("expected economist, got %q", target.Name)
	}
}

func TestParseJSONResponseWrappedInProse(t *testing.T) {
	response := "Here is my decision:\n\n{\"experts\": [\"military\"]}\n\nLet me know if you need more."
	var target struct {
		Experts []string `json:"experts"`
	}
	if err := ParseJSONResponse(response, &target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(target.Experts) != 1 || target.Experts[0] != "military" {
		t.Errorf("expected [military], got %v", target.Experts)
	}
}

func TestParseJSONResponseArray(t *testing.T) {
	var target []string
	if err := ParseJSONResponse("sure:\n[\"a\", \"b\"]", &target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(target) != 2 {
		t.Errorf("expected 2 entries, got %v", target)
	}
}

func TestParseJSONResponseNoJSON(t *testing.T) {
	var target map[string]string
	err := ParseJSONResponse("I cannot answer that.", &target)
	if err == nil {
		t.Error("expected error for response without JSON")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	long := strings.Repeat("x", 50)
	got := truncate(long, 10)
	if len(got) != 13 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated string with ellipsis, got %q", got)
	}
}

func TestWithRetryEventualSuccess(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := withRetry(context.Background(), RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetryDoesNotRetryCancellation(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond}, func() error {
		attempts++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestTokenTracker(t *testing.T) {
	tr := NewTokenTracker()
	tr.Add(100, 50)
	tr.Add(200, 25)

	in, out := tr.Total()
	if in != 300 || out != 75 {
		t.Errorf("expected 300/75, got %d/%d", in, out)
	}
	if tr.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", tr.Calls())
	}
	if tr.Cost() <= 0 {
		t.Error("expected positive cost estimate")
	}

	tr.Reset()
	in, out = tr.Total()
	if in != 0 || out != 0 || tr.Calls() != 0 {
		t.Error("expected tracker cleared after Reset")
	}
}
