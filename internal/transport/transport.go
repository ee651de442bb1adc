// Package transport holds what the outbound carriers share: splitting long
// replies at the carrier limit and retrying transient delivery failures.
package transport

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// Split breaks body into chunks of at most limit runes. It prefers to cut at
// a paragraph break, then a line break, then a space, and only cuts inside a
// word when a single word exceeds limit.
func Split(body string, limit int) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	runes := []rune(body)
	if limit <= 0 || len(runes) <= limit {
		return []string{body}
	}

	var chunks []string
	for len(runes) > limit {
		cut := cutPoint(runes[:limit+1])
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// cutPoint picks where to end a chunk inside window, whose last rune is the
// first one past the limit.
func cutPoint(window []rune) int {
	limit := len(window) - 1
	s := string(window)
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			if n := len([]rune(s[:i])); n > 0 && n <= limit {
				return n
			}
		}
	}
	return limit
}

// Retryable is implemented by delivery errors that know whether a retry can
// succeed.
type Retryable interface {
	Retryable() bool
}

// Backoff configures Retry.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultBackoff is used by both carriers.
var DefaultBackoff = Backoff{Attempts: 4, Initial: 500 * time.Millisecond, Max: 8 * time.Second}

// Retry runs fn until it succeeds, returns an error that is not retryable,
// runs out of attempts, or ctx ends. Errors that do not implement Retryable
// are treated as transient.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	if b.Attempts <= 0 {
		b.Attempts = 1
	}
	delay := b.Initial
	var err error
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var r Retryable
		if errors.As(err, &r) && !r.Retryable() {
			return err
		}
		if attempt == b.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return err
}
