// Package twilio delivers replies through the Twilio WhatsApp API and parses
// its inbound webhooks.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/carpenike/repcoach/internal/inbound"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/observability"
	"github.com/carpenike/repcoach/internal/transport"
)

// MaxChunk is the longest body Twilio accepts for a WhatsApp message.
const MaxChunk = 1600

const (
	defaultBaseURL = "https://api.twilio.com"
	whatsappPrefix = "whatsapp:"
)

// HTTPError is a non-2xx reply from the Twilio API.
type HTTPError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options configures a Client.
type Options struct {
	AccountSID string
	AuthToken  string
	// From overrides the sender number of every message when set.
	From    string
	BaseURL string
	Backoff transport.Backoff
}

// Client sends WhatsApp messages through Twilio.
type Client struct {
	sid     string
	token   string
	from    string
	baseURL string
	backoff transport.Backoff
	http    *http.Client
	log     *logger.Logger
}

// New creates a client.
func New(opts Options, log *logger.Logger) *Client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	b := opts.Backoff
	if b.Attempts == 0 {
		b = transport.DefaultBackoff
	}
	return &Client{
		sid:     opts.AccountSID,
		token:   opts.AuthToken,
		from:    opts.From,
		baseURL: strings.TrimRight(base, "/"),
		backoff: b,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With("component", "twilio"),
	}
}

// Send delivers body to `to`, split into chunks of at most MaxChunk
// characters. Chunks go out in order and delivery stops at the first chunk
// that still fails after retries.
func (c *Client) Send(ctx context.Context, to, from, body string) error {
	if c.from != "" {
		from = c.from
	}
	chunks := transport.Split(body, MaxChunk)
	for i, chunk := range chunks {
		err := transport.Retry(ctx, c.backoff, func() error {
			return c.post(ctx, to, from, chunk)
		})
		observability.RecordOutboundChunk("twilio", err == nil)
		if err != nil {
			return fmt.Errorf("twilio: send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	c.log.Debug("reply delivered", "phone", to, "chunks", len(chunks))
	return nil
}

func (c *Client) post(ctx context.Context, to, from, body string) error {
	form := url.Values{}
	form.Set("To", withPrefix(to))
	form.Set("From", withPrefix(from))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.sid, c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	herr := &HTTPError{StatusCode: resp.StatusCode}
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		herr.Code = payload.Code
		herr.Message = payload.Message
	} else {
		herr.Message = strings.TrimSpace(string(raw))
	}
	return herr
}

func withPrefix(phone string) string {
	if strings.HasPrefix(phone, whatsappPrefix) {
		return phone
	}
	return whatsappPrefix + phone
}

// StripPrefix removes the "whatsapp:" scheme Twilio puts on addresses.
func StripPrefix(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), whatsappPrefix)
}

// ParseWebhook reads a form-encoded Twilio WhatsApp webhook. Only the first
// attachment is used.
func ParseWebhook(r *http.Request) (inbound.Event, error) {
	if err := r.ParseForm(); err != nil {
		return inbound.Event{}, fmt.Errorf("twilio: parse webhook: %w", err)
	}
	f := r.PostForm

	ev := inbound.Event{
		MessageID: f.Get("MessageSid"),
		From:      StripPrefix(f.Get("From")),
		To:        StripPrefix(f.Get("To")),
		Body:      f.Get("Body"),
	}
	if ev.MessageID == "" {
		ev.MessageID = f.Get("SmsMessageSid")
	}
	if ev.From == "" {
		return inbound.Event{}, errors.New("twilio: parse webhook: missing From")
	}

	if n, _ := strconv.Atoi(f.Get("NumMedia")); n > 0 && f.Get("MediaUrl0") != "" {
		ev.Media = &inbound.Media{URL: f.Get("MediaUrl0"), ContentType: f.Get("MediaContentType0")}
	}

	lat, latErr := strconv.ParseFloat(f.Get("Latitude"), 64)
	lon, lonErr := strconv.ParseFloat(f.Get("Longitude"), 64)
	if latErr == nil && lonErr == nil {
		label := f.Get("Label")
		if label == "" {
			label = f.Get("Address")
		}
		ev.Location = &inbound.Location{Latitude: lat, Longitude: lon, Label: label}
	}
	return ev, nil
}
