// Package tokens provides prompt token counting for budget checks
// against a model's context window.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts the tokens of a text for a given model id.
type Counter interface {
	Count(model, text string) int
}

// Estimator approximates token counts by character length. Used for
// models without a local tokenizer.
type Estimator struct {
	// CharsPerToken is the assumed average; 4 is a reasonable default
	// for most models.
	CharsPerToken float64
}

// NewEstimator creates an Estimator with the default ratio.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count estimates the token count of text. The model id is ignored.
func (e *Estimator) Count(model, text string) int {
	if text == "" {
		return 0
	}
	ratio := e.CharsPerToken
	if ratio <= 0 {
		ratio = 4.0
	}
	n := int(float64(len(text)) / ratio)
	if n == 0 {
		n = 1
	}
	return n
}

// Registry routes counting to tiktoken for OpenAI-family model ids and
// to the estimator for everything else.
type Registry struct {
	fallback Counter

	mu    sync.Mutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewRegistry creates a Registry with the estimator as fallback.
func NewRegistry() *Registry {
	return &Registry{
		fallback: NewEstimator(),
		cache:    make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// Count counts tokens for the given model, falling back to estimation
// when no tokenizer covers it.
func (r *Registry) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if isOpenAIModel(model) {
		if codec, err := r.getCodec(model); err == nil {
			if ids, _, err := codec.Encode(text); err == nil {
				return len(ids)
			}
		}
	}
	return r.fallback.Count(model, text)
}

func isOpenAIModel(model string) bool {
	model = strings.ToLower(model)
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4", "text-embedding", "text-davinci"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (r *Registry) getCodec(model string) (tokenizer.Codec, error) {
	// Try the model-specific codec first.
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	encoding := modelToEncoding(model)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[encoding]; ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}
	r.cache[encoding] = codec
	return codec, nil
}

func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"),
		strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.Cl100kBase
	}
}
