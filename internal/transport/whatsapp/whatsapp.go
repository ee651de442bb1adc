// Package whatsapp is a WhatsApp Web carrier built on whatsmeow. It turns
// incoming messages into inbound events and delivers replies.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/carpenike/repcoach/internal/inbound"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/observability"
	"github.com/carpenike/repcoach/internal/transport"
)

// MaxChunk is the longest text message sent in one piece.
const MaxChunk = 4096

// Handler receives every inbound event.
type Handler func(ctx context.Context, ev inbound.Event)

// downloader fetches the decrypted bytes of a media message.
type downloader func(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)

// Carrier is a paired WhatsApp Web session.
type Carrier struct {
	client  *whatsmeow.Client
	backoff transport.Backoff
	log     *logger.Logger

	mu      sync.RWMutex
	handler Handler
	ctx     context.Context
	wg      sync.WaitGroup
}

// New opens the device store at storePath and creates a client for the first
// device in it. A new store is paired on Run.
func New(ctx context.Context, storePath string, log *logger.Logger) (*Carrier, error) {
	log = log.With("component", "whatsapp")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", storePath)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newWALogger(log, "store"))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: open store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: load device: %w", err)
	}

	c := &Carrier{
		client:  whatsmeow.NewClient(device, newWALogger(log, "client")),
		backoff: transport.DefaultBackoff,
		log:     log,
		ctx:     context.Background(),
	}
	c.client.AddEventHandler(c.onEvent)
	return c, nil
}

// SetHandler installs the inbound event handler. Events arriving before a
// handler is set are dropped.
func (c *Carrier) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Run connects, pairing by QR code on first use, and blocks until ctx ends.
// In-flight handlers are awaited before Run returns.
func (c *Carrier) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if c.client.Store.ID == nil {
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("whatsapp: qr channel: %w", err)
		}
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("whatsapp: connect: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				c.log.Info("scan QR code to pair", "code", evt.Code)
			} else {
				c.log.Info("pairing event", "event", evt.Event)
			}
		}
	} else if err := c.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connect: %w", err)
	}
	c.log.Info("whatsapp connected", "jid", c.ownNumber())

	<-ctx.Done()
	c.client.Disconnect()
	c.wg.Wait()
	return nil
}

// Send delivers body to the phone number `to`. from is ignored; replies
// always come from the paired account.
func (c *Carrier) Send(ctx context.Context, to, _ string, body string) error {
	jid := types.NewJID(strings.TrimPrefix(to, "+"), types.DefaultUserServer)
	chunks := transport.Split(body, MaxChunk)
	for i, chunk := range chunks {
		msg := &waE2E.Message{Conversation: proto.String(chunk)}
		err := transport.Retry(ctx, c.backoff, func() error {
			_, err := c.client.SendMessage(ctx, jid, msg)
			return err
		})
		observability.RecordOutboundChunk("whatsapp", err == nil)
		if err != nil {
			return fmt.Errorf("whatsapp: send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (c *Carrier) ownNumber() string {
	if c.client.Store.ID == nil {
		return ""
	}
	return "+" + c.client.Store.ID.User
}

func (c *Carrier) onEvent(evt interface{}) {
	v, ok := evt.(*events.Message)
	if !ok || v.Info.IsFromMe || v.Info.IsGroup {
		return
	}

	c.mu.RLock()
	h, ctx := c.handler, c.ctx
	c.mu.RUnlock()
	if h == nil {
		c.log.Warn("message dropped, no handler", "message_id", v.Info.ID)
		return
	}

	// whatsmeow delivers events in order on one goroutine; analysis can take
	// a while, so each message is handled on its own.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ev, err := eventFromMessage(ctx, v, c.client.Download)
		if err != nil {
			c.log.Error("inbound media not downloaded", "message_id", v.Info.ID, "error", err)
			return
		}
		ev.To = c.ownNumber()
		h(ctx, ev)
	}()
}

// eventFromMessage converts a whatsmeow message into an inbound event,
// downloading any attachment.
func eventFromMessage(ctx context.Context, v *events.Message, download downloader) (inbound.Event, error) {
	ev := inbound.Event{
		MessageID: v.Info.ID,
		From:      "+" + v.Info.Sender.User,
	}
	m := v.Message
	if m == nil {
		return ev, nil
	}

	var (
		media    whatsmeow.DownloadableMessage
		mimetype string
	)
	switch {
	case m.GetAudioMessage() != nil:
		media, mimetype = m.GetAudioMessage(), m.GetAudioMessage().GetMimetype()
	case m.GetVideoMessage() != nil:
		media, mimetype = m.GetVideoMessage(), m.GetVideoMessage().GetMimetype()
		ev.Body = m.GetVideoMessage().GetCaption()
	case m.GetImageMessage() != nil:
		media, mimetype = m.GetImageMessage(), m.GetImageMessage().GetMimetype()
		ev.Body = m.GetImageMessage().GetCaption()
	case m.GetLocationMessage() != nil:
		loc := m.GetLocationMessage()
		label := loc.GetName()
		if label == "" {
			label = loc.GetAddress()
		}
		ev.Location = &inbound.Location{
			Latitude:  loc.GetDegreesLatitude(),
			Longitude: loc.GetDegreesLongitude(),
			Label:     label,
		}
	case m.GetExtendedTextMessage() != nil:
		ev.Body = m.GetExtendedTextMessage().GetText()
	default:
		ev.Body = m.GetConversation()
	}

	if media != nil {
		data, err := download(ctx, media)
		if err != nil {
			return inbound.Event{}, fmt.Errorf("whatsapp: download media: %w", err)
		}
		// Voice notes carry codec parameters ("audio/ogg; codecs=opus").
		ct := strings.TrimSpace(strings.SplitN(mimetype, ";", 2)[0])
		ev.Media = &inbound.Media{ContentType: ct, Data: data}
	}
	return ev, nil
}
