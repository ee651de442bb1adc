package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/carpenike/repcoach/internal/inbound"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/transport/twilio"
)

// InboundHandler processes one inbound event end to end.
type InboundHandler interface {
	Handle(ctx context.Context, ev inbound.Event) inbound.Outcome
}

// emptyTwiML acknowledges a delivery without an inline reply. Replies go
// out through the REST API once processing finishes.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Webhook receives Twilio WhatsApp deliveries.
type Webhook struct {
	Inbound InboundHandler
	Log     *logger.Logger

	wg sync.WaitGroup
}

// Twilio acknowledges the delivery at once and processes the event in the
// background. Video and image analysis outlast Twilio's webhook timeout,
// and a non-2xx answer would only make Twilio redeliver.
func (h *Webhook) Twilio(w http.ResponseWriter, r *http.Request) {
	ev, err := twilio.ParseWebhook(r)
	if err != nil {
		h.Log.Warn("ignoring malformed webhook", "error", err)
	} else {
		ctx := context.WithoutCancel(r.Context())
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			out := h.Inbound.Handle(ctx, ev)
			if out.Err != nil {
				h.Log.Warn("inbound event failed", "message_id", ev.MessageID, "branch", string(out.Branch), "error", out.Err)
			}
		}()
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// Wait blocks until every accepted event has been processed.
func (h *Webhook) Wait() {
	h.wg.Wait()
}
