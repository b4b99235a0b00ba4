package queue

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestNewSQSPublisherWithConfig(t *testing.T) {
	p := NewSQSPublisherWithConfig(aws.Config{Region: "eu-west-1"}, "https://sqs.example/queue")
	if p == nil {
		t.Fatal("NewSQSPublisherWithConfig() returned nil")
	}
	if p.queueURL != "https://sqs.example/queue" {
		t.Errorf("queueURL = %s", p.queueURL)
	}

	var _ Publisher = p
}

func TestInMemoryPublisher(t *testing.T) {
	p := NewInMemoryPublisher()
	ctx := context.Background()

	event := SummaryEvent{
		RequestID:   "req-1",
		Endpoint:    "summary",
		ProductCode: "3017620422003",
		Language:    "english",
		CacheHit:    true,
		CreatedAt:   time.Now(),
	}

	if err := p.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	events := p.GetEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].RequestID != "req-1" || !events[0].CacheHit {
		t.Errorf("event not preserved: %+v", events[0])
	}
}
