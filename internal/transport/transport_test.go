package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortBody(t *testing.T) {
	assert.Equal(t, []string{"hola"}, Split("  hola \n", 1600))
	assert.Nil(t, Split("   ", 1600))
}

func TestSplitPrefersParagraphs(t *testing.T) {
	body := "uno dos tres\n\ncuatro cinco"
	got := Split(body, 20)
	assert.Equal(t, []string{"uno dos tres", "cuatro cinco"}, got)
}

func TestSplitAtWordBoundary(t *testing.T) {
	got := Split("alpha beta gamma delta", 11)
	assert.Equal(t, []string{"alpha beta", "gamma delta"}, got)
}

func TestSplitLongWord(t *testing.T) {
	got := Split(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, got)
}

func TestSplitRespectsLimitInRunes(t *testing.T) {
	body := strings.Repeat("sí señor ", 400)
	chunks := Split(body, 1600)
	require.Greater(t, len(chunks), 1)
	var total int
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1600)
		total += len(strings.Fields(c))
	}
	assert.Equal(t, 800, total, "no words lost")
}

type statusErr struct{ retry bool }

func (e statusErr) Error() string   { return "status" }
func (e statusErr) Retryable() bool { return e.retry }

var fast = Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

func TestRetryRecovers(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func() error {
		calls++
		if calls < 3 {
			return statusErr{retry: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func() error {
		calls++
		return statusErr{retry: false}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("network")
	err := Retry(context.Background(), fast, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}
