package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Stream event types.
const (
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is one record of the newline-delimited stream protocol.
// Each complete line parses as one of:
//
//	{"type":"delta","text":"..."}
//	{"type":"done"}
//	{"type":"error","error":"..."}
type StreamEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// StreamError is an error record received inside an otherwise
// successful stream. It fails the dispatch like a transport error.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// ConsumeStream decodes newline-delimited StreamEvent records from r
// into accumulated assistant content. onDelta, if non-nil, is called
// after every delta with the accumulated content so far, in the exact
// order the records appeared in the byte stream.
//
// Record boundaries do not align with network delivery boundaries; the
// scanner reassembles lines across arbitrary chunking. Lines that are
// blank or fail to parse are skipped and never abort the stream. A done
// record stops event emission, but the body is drained so the
// connection can be reused. Transport close without a done record is an
// equally valid termination.
//
// The accumulated content is returned even alongside a non-nil error so
// callers can decide what to do with partial output.
func ConsumeStream(ctx context.Context, r io.Reader, onDelta func(accumulated string)) (string, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for potentially large records
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var acc strings.Builder
	done := false

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return acc.String(), err
		}
		if done {
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ev StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			slog.Debug("skipping malformed stream record", slog.String("line", line))
			continue
		}

		switch ev.Type {
		case EventDelta:
			acc.WriteString(ev.Text)
			if onDelta != nil {
				onDelta(acc.String())
			}
		case EventDone:
			done = true
		case EventError:
			msg := ev.Error
			if msg == "" {
				msg = "stream error"
			}
			return acc.String(), &StreamError{Message: msg}
		default:
			// Unknown record types are skipped like malformed lines.
		}
	}

	if err := scanner.Err(); err != nil {
		// A cancelled context surfaces as a read error on the body;
		// report it as the cancellation it is.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return acc.String(), ctxErr
		}
		return acc.String(), fmt.Errorf("stream read error: %w", err)
	}

	return acc.String(), nil
}
