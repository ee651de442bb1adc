// Package notify broadcasts coaching events to the operator channels
// configured as Shoutrrr URLs (ntfy, Discord, Slack, etc.).
//
// Delivery is fire-and-forget: errors are logged but never propagate, so a
// notification can never block the action that triggered it.
package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/containrrr/shoutrrr"

	"github.com/carpenike/repcoach/internal/logger"
)

// Request describes a notification to send.
type Request struct {
	Title   string // Short headline
	Message string // Longer description (optional)
	Link    string // Related URL (optional)
}

// Notifier sends broadcasts to every configured URL.
type Notifier struct {
	urls []string
	log  *logger.Logger
	send func(url, message string) error
	wg   sync.WaitGroup
}

// New creates a Notifier for a comma-or-newline-separated list of Shoutrrr
// URLs. An empty list yields a Notifier that sends nothing.
func New(urls string, log *logger.Logger) *Notifier {
	return &Notifier{
		urls: parseURLs(urls),
		log:  log.With("component", "notify"),
		send: func(u, m string) error { return shoutrrr.Send(u, m) },
	}
}

// Enabled reports whether any broadcast URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.urls) > 0
}

// Broadcast delivers req to every URL in the background.
func (n *Notifier) Broadcast(req Request) {
	if !n.Enabled() || req.Title == "" {
		return
	}
	body := buildBody(req)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for _, u := range n.urls {
			if err := n.send(u, body); err != nil {
				n.log.Warn("broadcast send failed", "url", maskURL(u), "error", err)
			}
		}
	}()
}

// Wait blocks until in-flight broadcasts finish. Called on shutdown.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

// TestConnection sends a test message to each URL synchronously.
func (n *Notifier) TestConnection() error {
	if !n.Enabled() {
		return fmt.Errorf("no notification channels configured (set NOTIFY_URLS)")
	}
	var errs []string
	for _, u := range n.urls {
		if err := n.send(u, "RepCoach test: if you see this, notifications are working!"); err != nil {
			errs = append(errs, fmt.Sprintf("Broadcast %s: %v", maskURL(u), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// buildBody constructs the message body from a Request.
func buildBody(req Request) string {
	body := req.Title
	if req.Message != "" {
		body = fmt.Sprintf("%s\n%s", body, req.Message)
	}
	if req.Link != "" {
		body = fmt.Sprintf("%s\n%s", body, req.Link)
	}
	return body
}

// parseURLs splits a comma-or-newline-separated URL string and trims whitespace.
func parseURLs(urlsStr string) []string {
	urlsStr = strings.ReplaceAll(urlsStr, "\n", ",")
	parts := strings.Split(urlsStr, ",")
	var urls []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// maskURL masks credentials in a Shoutrrr URL for safe logging.
func maskURL(u string) string {
	if len(u) <= 15 {
		if len(u) < 5 {
			return "••••"
		}
		return u[:5] + "••••"
	}
	return u[:15] + "••••"
}
