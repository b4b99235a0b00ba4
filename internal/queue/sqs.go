// Package queue publishes per-request usage events for offline analytics.
// Events are fire-and-forget from the request path; a publish failure is
// logged but never fails the user-facing stream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SummaryEvent records one handled summary or recipe request.
type SummaryEvent struct {
	RequestID   string    `json:"request_id"`
	Endpoint    string    `json:"endpoint"`
	ProductCode string    `json:"product_code,omitempty"`
	Language    string    `json:"language"`
	Provider    string    `json:"provider,omitempty"`
	CacheHit    bool      `json:"cache_hit"`
	CostUSD     float64   `json:"cost_usd"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event SummaryEvent) error
}

type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSPublisher(ctx context.Context, region, queueURL string) (*SQSPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSPublisher{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

func NewSQSPublisherWithConfig(cfg aws.Config, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

func (p *SQSPublisher) Publish(ctx context.Context, event SummaryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Endpoint": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Endpoint),
			},
			"RequestID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.RequestID),
			},
		},
	}

	_, err = p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

type InMemoryPublisher struct {
	mu     sync.Mutex
	events []SummaryEvent
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{events: make([]SummaryEvent, 0)}
}

func (p *InMemoryPublisher) Publish(ctx context.Context, event SummaryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryPublisher) GetEvents() []SummaryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]SummaryEvent, len(p.events))
	copy(result, p.events)
	return result
}
