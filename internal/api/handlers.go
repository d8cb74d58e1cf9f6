// Package api implements the HTTP surface of the chat backend.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docschat/docschat/internal/catalog"
	"github.com/docschat/docschat/internal/conversation"
	"github.com/docschat/docschat/internal/engine"
	"github.com/docschat/docschat/internal/tokens"
)

// ChatMessage is one prompt turn in a streaming chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message    string `json:"message"`
	ProviderID string `json:"providerId,omitempty"`
	ModelID    string `json:"modelId,omitempty"`
}

// ChatResponse is the body of a successful POST /api/chat.
type ChatResponse struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// StreamRequest is the body of POST /api/chat/stream.
type StreamRequest struct {
	Provider string        `json:"provider"`
	ModelID  string        `json:"modelId,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

type streamRecord struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler serves the provider catalog and chat endpoints.
type Handler struct {
	catalog   *catalog.Holder
	responder engine.Responder
	recorder  *conversation.Recorder
	counter   tokens.Counter
	logger    *slog.Logger
	started   time.Time
}

// NewHandler wires the chat endpoints. recorder and counter may be nil
// to disable transcript persistence and prompt budget checks.
func NewHandler(holder *catalog.Holder, responder engine.Responder, recorder *conversation.Recorder, counter tokens.Counter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		catalog:   holder,
		responder: responder,
		recorder:  recorder,
		counter:   counter,
		logger:    logger,
		started:   time.Now(),
	}
}

// Register mounts all routes on the router, including the catch-all
// 404 handler.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/health", h.Health)
	r.Get("/api/providers/models", h.ListProviders)
	r.Get("/api/providers/{providerID}/models", h.ProviderModels)
	r.Post("/api/chat", h.Chat)
	r.Post("/api/chat/stream", h.ChatStream)
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

// NotFound is the catch-all for unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found")
}

// ListProviders returns the full catalog and the configured default
// selection, if any.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	store := h.catalog.Load()

	resp := map[string]any{"providers": store.Providers()}
	if sel, ok := store.DefaultSelection(); ok {
		resp["defaultSelection"] = sel
	}
	writeJSON(w, http.StatusOK, resp)
}

// ProviderModels returns the models of one provider.
func (h *Handler) ProviderModels(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")

	models, err := h.catalog.Load().ModelsFor(providerID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Provider not found")
			return
		}
		h.logger.Error("failed to list models",
			slog.String("provider", providerID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider": providerID,
		"models":   models,
	})
}

// Chat handles a single non-streaming exchange.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	store := h.catalog.Load()
	providerID, modelID, ok := h.resolveSelection(store, req.ProviderID, req.ModelID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid provider or model combination")
		return
	}

	if msg, ok := h.checkBudget(store, providerID, modelID, req.Message); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	resp, err := h.responder.Respond(r.Context(), &engine.Request{
		Provider: providerID,
		Model:    modelID,
		Messages: []engine.Message{{Role: "user", Content: req.Message}},
	})
	if err != nil {
		h.logger.Error("chat request failed",
			slog.String("provider", providerID),
			slog.String("model", modelID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "Failed to generate response")
		return
	}

	h.recorder.Record(r.Context(), providerID, modelID, req.Message, resp.Content)

	writeJSON(w, http.StatusOK, ChatResponse{
		Message:  resp.Content,
		Provider: providerID,
		Model:    modelID,
	})
}

// ChatStream handles a streaming exchange using the newline-delimited
// record protocol.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Provider == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Provider and messages are required")
		return
	}

	store := h.catalog.Load()
	providerID, modelID, ok := h.resolveSelection(store, req.Provider, req.ModelID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid provider or model combination")
		return
	}

	messages := make([]engine.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = engine.Message{Role: m.Role, Content: m.Content}
	}

	events, err := h.responder.Stream(r.Context(), &engine.Request{
		Provider: providerID,
		Model:    modelID,
		Messages: messages,
	})
	if err != nil {
		h.logger.Error("stream request failed",
			slog.String("provider", providerID),
			slog.String("model", modelID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "Failed to generate response")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	var content strings.Builder

	for ev := range events {
		if ev.Err != nil {
			enc.Encode(streamRecord{Type: "error", Error: ev.Err.Error()})
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		content.WriteString(ev.Delta)
		enc.Encode(streamRecord{Type: "delta", Text: ev.Delta})
		if flusher != nil {
			flusher.Flush()
		}
	}

	enc.Encode(streamRecord{Type: "done"})
	if flusher != nil {
		flusher.Flush()
	}

	if last := lastUserContent(req.Messages); last != "" {
		h.recorder.Record(r.Context(), providerID, modelID, last, content.String())
	}
}

// resolveSelection fills missing provider and model ids from the
// catalog defaults and validates the result.
func (h *Handler) resolveSelection(store *catalog.Store, providerID, modelID string) (string, string, bool) {
	if providerID == "" {
		sel, ok := store.DefaultSelection()
		if !ok {
			return "", "", false
		}
		providerID = sel.ProviderID
		if modelID == "" {
			modelID = sel.ModelID
		}
	}
	if modelID == "" {
		model, err := store.DefaultModelFor(providerID)
		if err != nil {
			return "", "", false
		}
		modelID = model.ID
	}
	if !store.IsValidSelection(providerID, modelID) {
		return "", "", false
	}
	return providerID, modelID, true
}

func (h *Handler) checkBudget(store *catalog.Store, providerID, modelID, message string) (string, bool) {
	if h.counter == nil {
		return "", true
	}
	provider, err := store.Get(providerID)
	if err != nil {
		return "", true
	}
	for _, m := range provider.Models {
		if m.ID == modelID && m.MaxTokens > 0 {
			if h.counter.Count(modelID, message) > m.MaxTokens {
				return "Message exceeds the model's context window", false
			}
			break
		}
	}
	return "", true
}

func lastUserContent(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
