package genai

import (
	"errors"
	"testing"

	contractx "github.com/campora/assistant/assistant/contract"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Model: "test-model"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewClientRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{APIKey: "sk-test"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{APIKey: " sk-test ", Model: " test-model "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "test-model" {
		t.Fatalf("model not trimmed: %q", client.model)
	}
}
