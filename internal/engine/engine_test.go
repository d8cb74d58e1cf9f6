package engine

import (
	"context"
	"strings"
	"testing"
)

func TestEcho_Respond(t *testing.T) {
	e := &Echo{}

	resp, err := e.Respond(context.Background(), &Request{
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "  second  "},
		},
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if !strings.Contains(resp.Content, "second") {
		t.Errorf("reply %q should echo the last user message", resp.Content)
	}
}

func TestEcho_Stream_ReassemblesToRespond(t *testing.T) {
	e := &Echo{}
	req := &Request{
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []Message{{Role: "user", Content: "hello streaming world"}},
	}

	events, err := e.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var b strings.Builder
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		b.WriteString(ev.Delta)
	}

	resp, _ := e.Respond(context.Background(), req)
	if b.String() != resp.Content {
		t.Errorf("streamed %q, single-shot %q", b.String(), resp.Content)
	}
}

func TestEcho_Stream_Cancellation(t *testing.T) {
	e := &Echo{}
	ctx, cancel := context.WithCancel(context.Background())

	events, err := e.Stream(ctx, &Request{
		Messages: []Message{{Role: "user", Content: strings.Repeat("word ", 100)}},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	<-events
	cancel()

	// The channel must close promptly after cancellation.
	for range events {
	}
}
