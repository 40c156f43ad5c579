package segment

import (
	"math"
	"strings"
)

// fallbackTokensPerWord is the word-to-token ratio used when no encoder is
// available. Every sizing decision in the pipeline goes through the same
// counter, so this ratio must not drift between components.
const fallbackTokensPerWord = 1.3

// Counter estimates the token length of a text span. Implementations must
// never fail: a counter that cannot tokenize falls back to an approximation.
type Counter interface {
	Count(text string) int
}

// EncoderFunc adapts an external tokenizer (e.g. a tiktoken binding).
// Returning an error routes the call to the word-count approximation.
type EncoderFunc func(text string) ([]int, error)

// TokenCounter counts tokens via an optional encoder, approximating by
// word count when the encoder is absent or fails. It is stateless and
// safe to share across workers.
type TokenCounter struct {
	encode EncoderFunc
}

// CounterOption configures a TokenCounter.
type CounterOption func(*TokenCounter)

// WithEncoder installs an external tokenizer.
func WithEncoder(fn EncoderFunc) CounterOption {
	return func(c *TokenCounter) {
		c.encode = fn
	}
}

// NewTokenCounter creates a token counter. Without options it uses the
// deterministic word-count approximation.
func NewTokenCounter(opts ...CounterOption) *TokenCounter {
	c := &TokenCounter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Count returns the estimated token count of text. It never returns a
// negative value and never fails.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	if c.encode != nil {
		if tokens, err := c.encode(text); err == nil {
			return len(tokens)
		}
	}

	return approxTokens(text)
}

// approxTokens estimates tokens from whitespace-delimited words.
func approxTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Round(float64(words) * fallbackTokensPerWord))
}
