// Package bedrock generates text through Amazon Bedrock's Anthropic models
// using the response-stream API.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/foodanalyzer/food-analyzer/internal/provider"
)

const anthropicVersion = "bedrock-2023-05-31"

type Generator struct {
	client  *bedrockruntime.Client
	modelID string
	region  string
}

func New(ctx context.Context, region, modelID string) (*Generator, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Generator{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		region:  region,
	}, nil
}

func NewWithConfig(cfg aws.Config, modelID string) *Generator {
	return &Generator{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		region:  cfg.Region,
	}
}

func (g *Generator) ID() string {
	return "bedrock"
}

func (g *Generator) GenerateStream(ctx context.Context, req provider.Request) (<-chan string, <-chan error) {
	deltas := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		body, err := json.Marshal(toAnthropicRequest(req))
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		input := &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(g.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		}

		output, err := g.client.InvokeModelWithResponseStream(ctx, input)
		if err != nil {
			errs <- fmt.Errorf("invoke model stream: %w", err)
			return
		}

		stream := output.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var decoded anthropicStreamEvent
			if err := json.Unmarshal(chunk.Value.Bytes, &decoded); err != nil {
				continue
			}

			if decoded.Type == "content_block_delta" && decoded.Delta != nil && decoded.Delta.Type == "text_delta" {
				select {
				case deltas <- decoded.Delta.Text:
				case <-ctx.Done():
					return
				}
			}

			if decoded.Type == "message_stop" {
				return
			}
		}

		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("stream error: %w", err)
		}
	}()

	return deltas, errs
}

// HealthCheck is a no-op: Bedrock has no cheap liveness call, and the client
// only exists if AWS configuration loaded at startup.
func (g *Generator) HealthCheck(ctx context.Context) error {
	return nil
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	StopSequences    []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicStreamEvent struct {
	Type  string          `json:"type"`
	Delta *anthropicDelta `json:"delta,omitempty"`
}

type anthropicDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func toAnthropicRequest(req provider.Request) anthropicRequest {
	return anthropicRequest{
		AnthropicVersion: anthropicVersion,
		System:           req.System,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContent{
					{Type: "text", Text: req.Prompt},
				},
			},
		},
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		StopSequences: req.StopSequences,
	}
}
