package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"radiovespa/utils"
)

// ErrLoggedOut is returned by Run when the linked device was logged out from
// the phone. The session must be paired again.
var ErrLoggedOut = errors.New("bot: whatsapp session logged out")

// ErrReplaced is returned by Run when another client took over the session.
var ErrReplaced = errors.New("bot: whatsapp session opened elsewhere")

// DisconnectReason classifies why the transport dropped.
type DisconnectReason int

const (
	ReasonConnectionLost DisconnectReason = iota
	ReasonLoggedOut
	ReasonReplaced
)

// ShouldReconnect reports whether a disconnect should be followed by an
// automatic reconnect.
func ShouldReconnect(reason DisconnectReason) bool {
	return reason == ReasonConnectionLost
}

// Handler processes inbound events.
type Handler func(ctx context.Context, in Inbound) error

// Session owns the WhatsApp connection: pairing, reconnects and translating
// transport events for a Handler. It also implements Sender.
type Session struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *utils.Logger
	retry     *utils.RetryConfig

	reconnecting atomic.Bool
	stopOnce     sync.Once
	stopped      chan error
}

// OpenSession loads (or creates) the device credentials kept in PostgreSQL
// and prepares a client. It does not connect. A reconnectAttempts of 0 keeps
// reconnecting until the Run context is cancelled.
func OpenSession(ctx context.Context, dsn string, reconnectAttempts int, logger *utils.Logger) (*Session, error) {
	container, err := sqlstore.New(ctx, "postgres", dsn, newWALogger(logger.Named("whatsmeow.db")))
	if err != nil {
		return nil, fmt.Errorf("bot: open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("bot: load device: %w", err)
	}

	client := whatsmeow.NewClient(device, newWALogger(logger.Named("whatsmeow")))
	// reconnects are driven by Session so a logout is never retried
	client.EnableAutoReconnect = false

	return &Session{
		client:    client,
		container: container,
		logger:    logger,
		retry:     reconnectPolicy(reconnectAttempts, logger),
		stopped:   make(chan error, 1),
	}, nil
}

// reconnectPolicy backs off from 2s up to a minute between attempts. Past
// the cap a dropped session keeps trying once a minute.
func reconnectPolicy(attempts int, logger *utils.Logger) *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
		Logger:      logger,
	}
}

// SendText sends a plain text message to a chat address such as
// "34612345678@s.whatsapp.net".
func (s *Session) SendText(ctx context.Context, to, text string) error {
	jid, err := types.ParseJID(to)
	if err != nil {
		return fmt.Errorf("bot: bad address %q: %w", to, err)
	}
	msg := &waE2E.Message{Conversation: proto.String(text)}
	if _, err := s.client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("bot: send to %s: %w", jid, err)
	}
	return nil
}

// Run connects, pairing with a QR code when no credentials are stored, and
// feeds events to handle until ctx is cancelled or the session ends.
func (s *Session) Run(ctx context.Context, handle Handler) error {
	s.client.AddEventHandler(func(evt any) { s.onEvent(ctx, handle, evt) })

	if s.client.Store.ID == nil {
		qrChan, err := s.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("bot: qr channel: %w", err)
		}
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("bot: connect: %w", err)
		}
		go s.showQR(qrChan)
	} else if err := s.retry.Do(ctx, "whatsapp-connect", s.client.Connect); err != nil {
		return err
	}

	defer s.client.Disconnect()
	select {
	case <-ctx.Done():
		s.logger.Info("[bot] Shutting down")
		return nil
	case err := <-s.stopped:
		return err
	}
}

// Close releases the credential store.
func (s *Session) Close() error {
	return s.container.Close()
}

func (s *Session) onEvent(ctx context.Context, handle Handler, evt any) {
	switch v := evt.(type) {
	case *events.Message:
		if err := handle(ctx, toInbound(v)); err != nil {
			s.logger.Error("[bot] Handling message from %s: %v", v.Info.Chat, err)
		}
	case *events.Connected:
		s.logger.Info("[bot] Connected to WhatsApp")
	case *events.Disconnected:
		s.disconnected(ctx, ReasonConnectionLost)
	case *events.LoggedOut:
		s.disconnected(ctx, ReasonLoggedOut)
	case *events.StreamReplaced:
		s.disconnected(ctx, ReasonReplaced)
	}
}

func (s *Session) disconnected(ctx context.Context, reason DisconnectReason) {
	reconnect := ShouldReconnect(reason)
	s.logger.Warn("[bot] Connection closed (reason %d), reconnect: %v", reason, reconnect)

	switch {
	case reason == ReasonLoggedOut:
		s.stop(ErrLoggedOut)
		return
	case reason == ReasonReplaced:
		s.stop(ErrReplaced)
		return
	case !reconnect || ctx.Err() != nil:
		return
	}

	if !s.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.reconnecting.Store(false)
		err := s.retry.Do(ctx, "whatsapp-reconnect", func() error {
			if s.client.IsConnected() {
				return nil
			}
			return s.client.Connect()
		})
		if err != nil && ctx.Err() == nil {
			s.stop(fmt.Errorf("bot: reconnect: %w", err))
		}
	}()
}

func (s *Session) stop(err error) {
	s.stopOnce.Do(func() { s.stopped <- err })
}

func (s *Session) showQR(items <-chan whatsmeow.QRChannelItem) {
	for item := range items {
		switch item.Event {
		case "code":
			fmt.Println("📲 Escanea este QR con WhatsApp:")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
		case "success":
			s.logger.Info("[bot] Device paired")
		default:
			s.logger.Warn("[bot] Pairing ended: %s", item.Event)
			if item.Event == "timeout" {
				s.stop(errors.New("bot: pairing timed out"))
			}
		}
	}
}

// toInbound converts a whatsmeow message event.
func toInbound(v *events.Message) Inbound {
	return Inbound{
		Kind:       EventNewMessage,
		Chat:       v.Info.Chat.String(),
		FromMe:     v.Info.IsFromMe,
		HasContent: v.Message != nil,
		Text:       messageText(v.Message),
	}
}

// messageText returns the plain or extended text of a message, trimmed.
func messageText(m *waE2E.Message) string {
	if t := strings.TrimSpace(m.GetConversation()); t != "" {
		return t
	}
	return strings.TrimSpace(m.GetExtendedTextMessage().GetText())
}
