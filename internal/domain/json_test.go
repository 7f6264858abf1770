package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTrackerTargetRoundTrip(t *testing.T) {
	cases := []TrackerTarget{
		{Kind: TargetKindPage, Page: &PageTarget{URL: "https://example.com", ExtractorScript: "x"}},
		{Kind: TargetKindAPI, Api: &ApiTarget{Requests: []APIRequest{{URL: "https://api.example.com", Method: "GET"}}}},
	}
	for _, want := range cases {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got TrackerTarget
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("kind mismatch: got %v want %v", got.Kind, want.Kind)
		}
	}
}

func TestTrackerTargetUnmarshalUnknownKind(t *testing.T) {
	var target TrackerTarget
	if err := json.Unmarshal([]byte(`{"kind":"BOGUS"}`), &target); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRetryStrategyRoundTrip(t *testing.T) {
	want := RetryStrategy{Kind: RetryKindExponential, Exponential: &ExponentialRetry{
		Initial: time.Second, Multiplier: 2, Max: 10 * time.Second, MaxAttempts: 5,
	}}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got RetryStrategy
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != want.Kind || got.Exponential.MaxAttempts != want.Exponential.MaxAttempts {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestTrackerConfigRoundTripUsesISO8601Duration(t *testing.T) {
	want := TrackerConfig{Revisions: 10, Timeout: 90 * time.Second, RestrictToPublicURLs: true}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"PT1M30S"`) {
		t.Fatalf("expected ISO 8601 duration in wire form, got %s", b)
	}
	var got TrackerConfig
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Timeout != want.Timeout || got.Revisions != want.Revisions {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestConstantRetryRoundTrip(t *testing.T) {
	want := ConstantRetry{Interval: 5 * time.Minute, MaxAttempts: 3}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got ConstantRetry
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestActionRoundTrip(t *testing.T) {
	cases := []Action{
		{Kind: ActionKindServerLog, ServerLog: &ServerLogAction{}},
		{Kind: ActionKindEmail, Email: &EmailAction{To: []string{"a@example.com"}}},
		{Kind: ActionKindWebhook, Webhook: &WebhookAction{URL: "https://hooks.example.com", Method: "POST"}},
	}
	for _, want := range cases {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got Action
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("kind mismatch: got %v want %v", got.Kind, want.Kind)
		}
	}
}

func TestTaskTypeRoundTrip(t *testing.T) {
	want := TaskType{Kind: TaskKindEmail, Email: &EmailTask{
		To: []string{"a@example.com"},
		Content: EmailContent{Kind: EmailContentKindLiteral, Literal: &LiteralEmail{Subject: "s", Body: "b"}},
	}}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got TaskType
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != want.Kind || got.Email.Content.Kind != want.Email.Content.Kind {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}
