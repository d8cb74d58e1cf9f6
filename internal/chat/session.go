package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docschat/docschat/internal/catalog"
	"github.com/docschat/docschat/internal/tokens"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable entry of the transcript. Turns are append-only;
// streamed content accumulates separately and becomes a Turn only at
// finalization.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	// ErrorTurnPrefix marks synthetic assistant turns produced from
	// transport or protocol failures.
	ErrorTurnPrefix = "Error: "

	// NoResponseText is the sentinel finalized when a stream ends with
	// no accumulated content.
	NoResponseText = "No response received"
)

var (
	// ErrEmptyMessage rejects messages that are empty after trimming.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrInvalidSelection rejects dispatches whose provider/model pair
	// fails catalog validation.
	ErrInvalidSelection = errors.New("chat: invalid provider or model combination")
	// ErrBusy rejects a send while another dispatch is in flight.
	ErrBusy = errors.New("chat: a request is already in flight")
	// ErrPromptTooLarge rejects prompts exceeding the model's window.
	ErrPromptTooLarge = errors.New("chat: prompt exceeds model token limit")
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithInstructions sets the system prompt sent ahead of the history.
func WithInstructions(instructions string) SessionOption {
	return func(s *Session) {
		s.instructions = instructions
	}
}

// WithTokenCounter enables prompt budget checks against the selected
// model's max token window.
func WithTokenCounter(counter tokens.Counter) SessionOption {
	return func(s *Session) {
		s.counter = counter
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session owns one conversation: the transcript, the provider/model
// selection, and the dispatch of new messages. At most one dispatch is
// in flight at a time; a concurrent send is rejected with ErrBusy
// rather than interleaving two streams into the same transcript.
type Session struct {
	client       *Client
	catalog      *catalog.Store
	instructions string
	counter      tokens.Counter
	logger       *slog.Logger

	mu        sync.Mutex
	selection catalog.Selection
	turns     []Turn
	inflight  bool
}

// NewSession creates a session over the given client and catalog. The
// selection starts at the catalog's default.
func NewSession(client *Client, cat *catalog.Store, opts ...SessionOption) *Session {
	s := &Session{
		client:  client,
		catalog: cat,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if sel, ok := cat.DefaultSelection(); ok {
		s.selection = sel
	}
	return s
}

// Selection returns the current provider/model pair.
func (s *Session) Selection() catalog.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetSelection sets the provider/model pair after validating it.
func (s *Session) SetSelection(providerID, modelID string) error {
	if !s.catalog.IsValidSelection(providerID, modelID) {
		return ErrInvalidSelection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = catalog.Selection{ProviderID: providerID, ModelID: modelID}
	return nil
}

// SelectProvider switches to the given provider. If the currently
// selected model is not offered by it, the selection falls back to the
// provider's default model.
func (s *Session) SelectProvider(providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog.IsValidSelection(providerID, s.selection.ModelID) {
		s.selection.ProviderID = providerID
		return nil
	}

	m, err := s.catalog.DefaultModelFor(providerID)
	if err != nil {
		return ErrInvalidSelection
	}
	p, err := s.catalog.Get(providerID)
	if err != nil || !p.IsEnabled {
		return ErrInvalidSelection
	}
	s.selection = catalog.Selection{ProviderID: providerID, ModelID: m.ID}
	return nil
}

// SelectModel switches the model within the current provider.
func (s *Session) SelectModel(modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.catalog.IsValidSelection(s.selection.ProviderID, modelID) {
		return ErrInvalidSelection
	}
	s.selection.ModelID = modelID
	return nil
}

// Turns returns a copy of the transcript in dialogue order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Clear discards the entire transcript.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// Send dispatches a new user message. It appends exactly one user turn
// and, on completion, exactly one assistant turn: the response on
// success, or a synthetic error-marked turn on transport and protocol
// failures (the underlying error is also returned for logging). A
// cancelled dispatch appends no assistant turn and discards partial
// streamed content.
//
// Validation failures (empty message, invalid selection, prompt over
// budget, send while busy) return an error before any network call and
// append nothing.
//
// onDelta, if non-nil, receives the accumulated streamed content after
// every delta for streaming providers.
func (s *Session) Send(ctx context.Context, text string, onDelta func(accumulated string)) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	sel := s.selection
	if !s.catalog.IsValidSelection(sel.ProviderID, sel.ModelID) {
		s.mu.Unlock()
		return Turn{}, ErrInvalidSelection
	}
	provider, err := s.catalog.Get(sel.ProviderID)
	if err != nil {
		s.mu.Unlock()
		return Turn{}, ErrInvalidSelection
	}

	messages := s.buildMessagesLocked(text)

	if err := s.checkBudgetLocked(sel, messages); err != nil {
		s.mu.Unlock()
		return Turn{}, err
	}

	s.turns = append(s.turns, newTurn(RoleUser, text))
	s.inflight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	var content string
	if provider.SupportsStreaming {
		content, err = s.client.Stream(ctx, &StreamRequest{
			Provider: sel.ProviderID,
			ModelID:  sel.ModelID,
			Messages: messages,
		}, onDelta)
	} else {
		var resp *ChatResponse
		resp, err = s.client.Complete(ctx, &ChatRequest{
			Message:    text,
			ProviderID: sel.ProviderID,
			ModelID:    sel.ModelID,
		})
		if err == nil {
			content = resp.Message
		}
	}

	if err != nil {
		// A user-initiated stop is not an error; partial content is
		// discarded and no turn is finalized.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Info("dispatch cancelled",
				slog.String("provider", sel.ProviderID),
				slog.String("model", sel.ModelID))
			return Turn{}, err
		}

		s.logger.Error("dispatch failed",
			slog.String("provider", sel.ProviderID),
			slog.String("model", sel.ModelID),
			slog.String("error", err.Error()))
		turn := newTurn(RoleAssistant, ErrorTurnPrefix+err.Error())
		s.append(turn)
		return turn, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		content = NoResponseText
	}
	turn := newTurn(RoleAssistant, content)
	s.append(turn)
	return turn, nil
}

// buildMessagesLocked assembles the provider message list: optional
// system instructions, then the history, then the new user turn. The
// new turn is appended explicitly rather than read back from the
// transcript.
func (s *Session) buildMessagesLocked(text string) []ChatMessage {
	messages := make([]ChatMessage, 0, len(s.turns)+2)
	if s.instructions != "" {
		messages = append(messages, ChatMessage{Role: string(RoleSystem), Content: s.instructions})
	}
	for _, t := range s.turns {
		messages = append(messages, ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, ChatMessage{Role: string(RoleUser), Content: text})
	return messages
}

func (s *Session) checkBudgetLocked(sel catalog.Selection, messages []ChatMessage) error {
	if s.counter == nil {
		return nil
	}
	p, err := s.catalog.Get(sel.ProviderID)
	if err != nil {
		return nil
	}
	var model catalog.Model
	for _, m := range p.Models {
		if m.ID == sel.ModelID {
			model = m
			break
		}
	}
	if model.MaxTokens <= 0 {
		return nil
	}

	total := 0
	for _, m := range messages {
		total += s.counter.Count(sel.ModelID, m.Content)
	}
	if total > model.MaxTokens {
		return fmt.Errorf("%w: %d tokens for a %d token window", ErrPromptTooLarge, total, model.MaxTokens)
	}
	return nil
}

func (s *Session) append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

func newTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
