package openai

import (
	"testing"
	"time"
)

// TestNew_EmptyAPIKey checks that an empty API key returns an error.
func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Valid checks that a provider constructs successfully.
func TestNew_Valid(t *testing.T) {
	p, err := New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", p.model)
	}
}

// TestNew_WithOptions checks that the functional options are accepted.
func TestNew_WithOptions(t *testing.T) {
	p, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://proxy.internal/v1"),
		WithOrganization("org-test"),
		WithTimeout(30*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}
