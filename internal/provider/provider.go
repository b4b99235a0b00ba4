// Package provider defines the contract for streaming text-generation
// backends and shared request parameters.
package provider

import "context"

// Request carries one generation call: a prompt, an optional system prompt,
// an output token budget, and sampling parameters.
type Request struct {
	System        string
	Prompt        string
	MaxTokens     int
	Temperature   float64
	StopSequences []string
}

// Generator is a streaming text-generation backend. GenerateStream returns a
// channel of incremental text deltas and a channel carrying at most one
// error; both are closed when the stream ends.
type Generator interface {
	ID() string
	GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error)
	HealthCheck(ctx context.Context) error
}
