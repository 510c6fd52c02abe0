package net_test

import (
	"context"
	"testing"

	pnet "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net"
)

func TestWithRequestRoundTrip(t *testing.T) {
	ctx := pnet.WithRequest(context.Background(), "req-123")
	if got := pnet.RequestID(ctx); got != "req-123" {
		t.Fatalf("RequestID = %q, want req-123", got)
	}
}

func TestWithRequestEmptyIsNoop(t *testing.T) {
	ctx := pnet.WithRequest(context.Background(), "")
	if got := pnet.RequestID(ctx); got != "" {
		t.Fatalf("RequestID on bare context = %q, want empty", got)
	}
}
