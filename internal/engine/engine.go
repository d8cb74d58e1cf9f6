// Package engine defines the responder behind the chat endpoints.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one turn of the prompt sent to a responder.
type Message struct {
	Role    string
	Content string
}

// Request carries a chat request to a responder.
type Request struct {
	Provider string
	Model    string
	Messages []Message
}

// Response is a complete assistant reply.
type Response struct {
	Content string
}

// Event is one increment of a streamed reply. A terminal Err fails the
// stream; channel close signals completion.
type Event struct {
	Delta string
	Err   error
}

// Responder produces assistant replies. Provider backends implement
// this interface; Echo is the placeholder shipped until they land.
type Responder interface {
	Respond(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (<-chan Event, error)
}

// Echo acknowledges the last user message without calling any upstream
// provider.
type Echo struct {
	// Delay is the pause between streamed deltas. Zero streams as fast
	// as the consumer reads.
	Delay time.Duration
}

// NewEcho creates an Echo responder with a small inter-delta delay.
func NewEcho() *Echo {
	return &Echo{Delay: 10 * time.Millisecond}
}

var _ Responder = (*Echo)(nil)

func (e *Echo) reply(req *Request) string {
	last := lastUserMessage(req.Messages)
	if last == "" {
		return fmt.Sprintf("%s/%s received an empty prompt", req.Provider, req.Model)
	}
	return fmt.Sprintf("You said: %s", last)
}

// Respond returns the whole reply at once.
func (e *Echo) Respond(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{Content: e.reply(req)}, nil
}

// Stream emits the reply word by word. The channel is closed after the
// last delta or when ctx is cancelled.
func (e *Echo) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.Fields(e.reply(req))
	out := make(chan Event)

	go func() {
		defer close(out)
		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			select {
			case out <- Event{Delta: w}:
			case <-ctx.Done():
				return
			}
			if e.Delay > 0 {
				select {
				case <-time.After(e.Delay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
