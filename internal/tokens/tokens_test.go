package tokens

import (
	"strings"
	"testing"
)

func TestEstimator_Count(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{name: "empty", text: "", min: 0, max: 0},
		{name: "single char rounds up", text: "a", min: 1, max: 1},
		{name: "short sentence", text: "Hello, how are you?", min: 3, max: 7},
		{name: "longer text", text: strings.Repeat("word ", 100), min: 100, max: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Count("any-model", tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("Count() = %d, want between %d and %d", got, tt.min, tt.max)
			}
		})
	}
}

func TestRegistry_Count_OpenAI(t *testing.T) {
	r := NewRegistry()

	// tiktoken counts must be exact and stable for a known model.
	got := r.Count("gpt-4o", "hello world")
	if got <= 0 {
		t.Fatalf("Count() = %d, want > 0", got)
	}

	// The same text must count identically across calls (codec cache).
	if again := r.Count("gpt-4o", "hello world"); again != got {
		t.Errorf("Count() unstable: %d then %d", got, again)
	}
}

func TestRegistry_Count_FallsBackToEstimator(t *testing.T) {
	r := NewRegistry()

	text := strings.Repeat("granite ", 50)
	got := r.Count("granite-3.0-8b-instruct", text)
	want := NewEstimator().Count("granite-3.0-8b-instruct", text)
	if got != want {
		t.Errorf("Count() = %d, want estimator value %d", got, want)
	}
}

func TestRegistry_Count_Empty(t *testing.T) {
	r := NewRegistry()
	if got := r.Count("gpt-4o", ""); got != 0 {
		t.Errorf("Count(empty) = %d, want 0", got)
	}
}
