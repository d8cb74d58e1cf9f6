package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader delivers at most n bytes per Read to exercise record
// reassembly across arbitrary delivery boundaries.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func TestConsumeStream_AccumulatesDeltas(t *testing.T) {
	input := `{"type":"delta","text":"A"}` + "\n" + `{"type":"delta","text":"B"}` + "\n" + `{"type":"done"}` + "\n"

	// The result must not depend on how the bytes were chunked.
	for _, chunkSize := range []int{1, 2, 3, 7, len(input)} {
		r := &chunkReader{r: strings.NewReader(input), n: chunkSize}

		var updates []string
		got, err := ConsumeStream(context.Background(), r, func(acc string) {
			updates = append(updates, acc)
		})
		if err != nil {
			t.Fatalf("chunk size %d: ConsumeStream failed: %v", chunkSize, err)
		}
		if got != "AB" {
			t.Errorf("chunk size %d: accumulated %q, want %q", chunkSize, got, "AB")
		}
		if len(updates) != 2 || updates[0] != "A" || updates[1] != "AB" {
			t.Errorf("chunk size %d: updates = %v, want [A AB]", chunkSize, updates)
		}
	}
}

func TestConsumeStream_SkipsMalformedLines(t *testing.T) {
	input := `{"type":"delta","text":"X"}` + "\n" +
		"NOT JSON\n" +
		`{"type":"delta","text":"Y"}` + "\n" +
		`{"type":"done"}` + "\n"

	got, err := ConsumeStream(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ConsumeStream failed: %v", err)
	}
	if got != "XY" {
		t.Errorf("accumulated %q, want %q", got, "XY")
	}
}

func TestConsumeStream_SkipsBlankLinesAndUnknownTypes(t *testing.T) {
	input := "\n  \n" +
		`{"type":"delta","text":"X"}` + "\n" +
		`{"type":"mystery"}` + "\n" +
		`{"type":"done"}` + "\n"

	got, err := ConsumeStream(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ConsumeStream failed: %v", err)
	}
	if got != "X" {
		t.Errorf("accumulated %q, want %q", got, "X")
	}
}

func TestConsumeStream_TransportCloseWithoutDone(t *testing.T) {
	input := `{"type":"delta","text":"partial"}` + "\n"

	got, err := ConsumeStream(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("ConsumeStream failed: %v", err)
	}
	if got != "partial" {
		t.Errorf("accumulated %q, want %q", got, "partial")
	}
}

func TestConsumeStream_DoneStopsEmission(t *testing.T) {
	input := `{"type":"delta","text":"A"}` + "\n" +
		`{"type":"done"}` + "\n" +
		`{"type":"delta","text":"ghost"}` + "\n"

	var updates []string
	got, err := ConsumeStream(context.Background(), strings.NewReader(input), func(acc string) {
		updates = append(updates, acc)
	})
	if err != nil {
		t.Fatalf("ConsumeStream failed: %v", err)
	}
	if got != "A" {
		t.Errorf("accumulated %q, want %q", got, "A")
	}
	if len(updates) != 1 {
		t.Errorf("expected 1 update, got %v", updates)
	}
}

func TestConsumeStream_ErrorRecord(t *testing.T) {
	input := `{"type":"delta","text":"A"}` + "\n" +
		`{"type":"error","error":"model unavailable"}` + "\n"

	_, err := ConsumeStream(context.Background(), strings.NewReader(input), nil)
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if streamErr.Message != "model unavailable" {
		t.Errorf("message = %q", streamErr.Message)
	}
}

func TestConsumeStream_MultiByteRunesAcrossChunks(t *testing.T) {
	input := `{"type":"delta","text":"héllo 世界"}` + "\n" + `{"type":"done"}` + "\n"

	r := &chunkReader{r: strings.NewReader(input), n: 1}
	got, err := ConsumeStream(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("ConsumeStream failed: %v", err)
	}
	if got != "héllo 世界" {
		t.Errorf("accumulated %q", got)
	}
}

func TestConsumeStream_Cancellation(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		pw.Write([]byte(`{"type":"delta","text":"A"}` + "\n"))
		pw.Write([]byte(`{"type":"delta","text":"B"}` + "\n"))
		cancel()
		pw.Write([]byte(`{"type":"delta","text":"C"}` + "\n"))
		pw.Close()
	}()

	_, err := ConsumeStream(ctx, pr, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
