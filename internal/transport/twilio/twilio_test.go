package twilio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/transport"
)

type capture struct {
	mu     sync.Mutex
	bodies []url.Values
	paths  []string
	users  []string
}

func (c *capture) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = r.ParseForm()
	c.bodies = append(c.bodies, r.PostForm)
	c.paths = append(c.paths, r.URL.Path)
	user, _, _ := r.BasicAuth()
	c.users = append(c.users, user)
}

var fast = transport.Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

func newClient(srv *httptest.Server) *Client {
	return New(Options{AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL, Backoff: fast}, logger.Nop())
}

func TestSendSingleMessage(t *testing.T) {
	var c capture
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	err := newClient(srv).Send(context.Background(), "+5215550001", "+15550000", "hola")
	require.NoError(t, err)

	require.Len(t, c.bodies, 1)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", c.paths[0])
	assert.Equal(t, "AC123", c.users[0])
	assert.Equal(t, "whatsapp:+5215550001", c.bodies[0].Get("To"))
	assert.Equal(t, "whatsapp:+15550000", c.bodies[0].Get("From"))
	assert.Equal(t, "hola", c.bodies[0].Get("Body"))
}

func TestSendChunksLongReplies(t *testing.T) {
	var c capture
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	body := strings.Repeat("sentadilla profunda ", 200)
	require.NoError(t, newClient(srv).Send(context.Background(), "+1", "whatsapp:+2", body))

	require.Len(t, c.bodies, 3)
	for _, b := range c.bodies {
		assert.LessOrEqual(t, utf8.RuneCountInString(b.Get("Body")), MaxChunk)
		assert.Equal(t, "whatsapp:+2", b.Get("From"), "prefix not doubled")
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	require.NoError(t, newClient(srv).Send(context.Background(), "+1", "+2", "hola"))
	assert.Equal(t, 2, calls)
}

func TestSendPermanentFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	}))
	defer srv.Close()

	err := newClient(srv).Send(context.Background(), "+1", "+2", "hola")
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, 21211, herr.Code)
	assert.False(t, herr.Retryable())
}

func TestSendOverridesFrom(t *testing.T) {
	var c capture
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cl := New(Options{AccountSID: "AC1", AuthToken: "t", From: "+19998887777", BaseURL: srv.URL}, logger.Nop())
	require.NoError(t, cl.Send(context.Background(), "+1", "+2", "hola"))
	assert.Equal(t, "whatsapp:+19998887777", c.bodies[0].Get("From"))
}

func webhook(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseWebhookText(t *testing.T) {
	ev, err := ParseWebhook(webhook(url.Values{
		"MessageSid": {"SM1"},
		"From":       {"whatsapp:+5215550001"},
		"To":         {"whatsapp:+15550000"},
		"Body":       {"hola"},
		"NumMedia":   {"0"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "SM1", ev.MessageID)
	assert.Equal(t, "+5215550001", ev.From)
	assert.Equal(t, "+15550000", ev.To)
	assert.Equal(t, "hola", ev.Body)
	assert.Nil(t, ev.Media)
	assert.Nil(t, ev.Location)
}

func TestParseWebhookMedia(t *testing.T) {
	ev, err := ParseWebhook(webhook(url.Values{
		"MessageSid":        {"SM2"},
		"From":              {"whatsapp:+1"},
		"Body":              {"mira"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"video/mp4"},
	}))
	require.NoError(t, err)
	require.NotNil(t, ev.Media)
	assert.Equal(t, "https://api.twilio.com/media/ME1", ev.Media.URL)
	assert.Equal(t, "video/mp4", ev.Media.ContentType)
}

func TestParseWebhookLocation(t *testing.T) {
	ev, err := ParseWebhook(webhook(url.Values{
		"MessageSid": {"SM3"},
		"From":       {"whatsapp:+1"},
		"Latitude":   {"19.4326"},
		"Longitude":  {"-99.1332"},
		"Address":    {"Zócalo"},
	}))
	require.NoError(t, err)
	require.NotNil(t, ev.Location)
	assert.InDelta(t, 19.4326, ev.Location.Latitude, 1e-9)
	assert.Equal(t, "Zócalo", ev.Location.Label)
}

func TestParseWebhookMissingFrom(t *testing.T) {
	_, err := ParseWebhook(webhook(url.Values{"MessageSid": {"SM4"}}))
	assert.Error(t, err)
}
