package services_test

import (
	"context"
	"testing"

	"leadcast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAttemptID(ctx, "att-1")
	ctx = services.WithChannel(ctx, "telegram-video")
	ctx = services.WithOutcome(ctx, "accepted")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.AttemptIDFromContext(ctx); !ok || id != "att-1" {
		t.Fatalf("unexpected attempt id: %v %v", id, ok)
	}
	if channel, ok := services.ChannelFromContext(ctx); !ok || channel != "telegram-video" {
		t.Fatalf("unexpected channel: %v %v", channel, ok)
	}
	if outcome, ok := services.OutcomeFromContext(ctx); !ok || outcome != "accepted" {
		t.Fatalf("unexpected outcome: %v %v", outcome, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestChannelBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithChannel(ctx, "")
	if _, ok := services.ChannelFromContext(ctx); ok {
		t.Fatal("expected no channel value")
	}
}
