package conversation

import (
	"context"
	"log/slog"
	"testing"

	"github.com/docschat/docschat/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecorderPersistsConversation(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store, slog.Default())

	id := rec.Record(context.Background(), "anthropic", "claude-3-5-sonnet-20241022", "hello", "hi there")
	if id == "" {
		t.Fatal("expected a conversation id")
	}

	conv, err := store.GetConversation(context.Background(), id)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Provider != "anthropic" || conv.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("unexpected conversation: %+v", conv)
	}

	turns, err := store.ListTurns(context.Background(), id)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "hello" {
		t.Errorf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Content != "hi there" {
		t.Errorf("unexpected second turn: %+v", turns[1])
	}
}

func TestRecorderNilStore(t *testing.T) {
	rec := NewRecorder(nil, nil)
	if id := rec.Record(context.Background(), "p", "m", "u", "a"); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}

func TestRecorderSurvivesCancelledContext(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := rec.Record(ctx, "openai", "gpt-4o", "question", "answer")
	if id == "" {
		t.Fatal("expected recording to succeed despite cancelled request context")
	}
	turns, err := store.ListTurns(context.Background(), id)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
}
