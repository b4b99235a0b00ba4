package bedrock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/foodanalyzer/food-analyzer/internal/provider"
)

func TestNewWithConfig(t *testing.T) {
	g := NewWithConfig(aws.Config{Region: "eu-west-1"}, "anthropic.claude-3-haiku-20240307-v1:0")
	if g == nil {
		t.Fatal("NewWithConfig() returned nil")
	}
	if g.ID() != "bedrock" {
		t.Errorf("ID() = %s, want bedrock", g.ID())
	}
	if g.region != "eu-west-1" {
		t.Errorf("region = %s, want eu-west-1", g.region)
	}
}

func TestToAnthropicRequest(t *testing.T) {
	req := provider.Request{
		System:        "system prompt",
		Prompt:        "user prompt",
		MaxTokens:     1000,
		Temperature:   0.5,
		StopSequences: []string{"</answer>"},
	}

	got := toAnthropicRequest(req)

	if got.AnthropicVersion != anthropicVersion {
		t.Errorf("anthropic_version = %s, want %s", got.AnthropicVersion, anthropicVersion)
	}
	if got.System != "system prompt" {
		t.Errorf("system = %q", got.System)
	}
	if got.MaxTokens != 1000 || got.Temperature != 0.5 {
		t.Errorf("budget fields not mapped: max_tokens=%d temperature=%f", got.MaxTokens, got.Temperature)
	}
	if len(got.StopSequences) != 1 || got.StopSequences[0] != "</answer>" {
		t.Errorf("stop_sequences = %v", got.StopSequences)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("expected one user message, got %+v", got.Messages)
	}
	content := got.Messages[0].Content
	if len(content) != 1 || content[0].Type != "text" || content[0].Text != "user prompt" {
		t.Errorf("message content = %+v", content)
	}
}
