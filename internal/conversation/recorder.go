// Package conversation records completed chat interactions.
package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docschat/docschat/internal/storage"
)

// Recorder persists request/response pairs best-effort: failures are
// logged and never fail the request path.
type Recorder struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store. A nil store
// disables recording.
func NewRecorder(store *storage.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record stores a user message and the assistant reply as one new
// conversation, returning its id. An empty id means recording was
// disabled or failed.
func (r *Recorder) Record(ctx context.Context, provider, model, userMsg, assistantMsg string) string {
	if r == nil || r.store == nil {
		return ""
	}

	// Decouple persistence from the request lifecycle so client
	// disconnects don't drop transcripts; still bound the work.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	convID := "conv_" + uuid.New().String()

	conv := &storage.Conversation{
		ID:       convID,
		Provider: provider,
		Model:    model,
	}
	if err := r.store.CreateConversation(persistCtx, conv); err != nil {
		r.logger.Error("failed to create conversation",
			slog.String("conversation_id", convID),
			slog.String("error", err.Error()))
		return ""
	}

	for _, t := range []struct {
		role    string
		content string
	}{
		{role: "user", content: userMsg},
		{role: "assistant", content: assistantMsg},
	} {
		turn := &storage.Turn{
			ID:             uuid.New().String(),
			ConversationID: convID,
			Role:           t.role,
			Content:        t.content,
		}
		if err := r.store.AppendTurn(persistCtx, turn); err != nil {
			r.logger.Error("failed to append turn",
				slog.String("conversation_id", convID),
				slog.String("role", t.role),
				slog.String("error", err.Error()))
			return convID
		}
	}

	return convID
}
