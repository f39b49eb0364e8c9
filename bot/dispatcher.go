package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"radiovespa/models"
	"radiovespa/storage"
	"radiovespa/utils"
)

// CommandRequest is the chat command that asks for a listing's owner.
const CommandRequest = "/solicitar"

// Replies sent by the dispatcher.
const (
	ReplyUsage    = "❌ Uso: /solicitar <id_vespa>"
	ReplyNotFound = "❌ No encontré esa Vespa."
	ReplyHandoff  = "✅ Te pasamos con el transportista."
	ReplyFailure  = "⚠️ No pudimos procesar tu solicitud. Inténtalo de nuevo en unos minutos."
	alertTemplate = "🚚 Nueva solicitud de %s para la VESPA #%d"
)

// EventKind classifies inbound transport events.
type EventKind int

const (
	EventOther EventKind = iota
	EventNewMessage
)

// Inbound is a transport-neutral view of an incoming chat event.
type Inbound struct {
	Kind   EventKind
	Chat   string
	FromMe bool
	Text   string

	// HasContent is false for events that carry no message payload at all.
	HasContent bool
}

// Sender delivers a text message to a chat address.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Store is what the dispatcher needs from the relational store.
type Store interface {
	storage.ClickRecorder
	storage.PhoneLookup
}

// Dispatcher maps inbound chat commands to store lookups and outbound messages.
// It holds no per-conversation state and is safe for concurrent use.
type Dispatcher struct {
	store       Store
	sender      Sender
	logger      *utils.Logger
	countryCode string
	now         func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store Store, sender Sender, countryCode string, logger *utils.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		sender:      sender,
		logger:      logger,
		countryCode: countryCode,
		now:         time.Now,
	}
}

// ParseRequest extracts the listing id from a "/solicitar <id>" command.
// ok is false when text is not a request command at all; err is set when it
// is one but the id is missing or not an integer.
func ParseRequest(text string) (id int, ok bool, err error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, CommandRequest) {
		return 0, false, nil
	}

	parts := strings.Fields(text)
	if len(parts) < 2 {
		return 0, true, errors.New("missing listing id")
	}
	id, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, true, fmt.Errorf("invalid listing id %q", parts[1])
	}
	return id, true, nil
}

// Handle processes one inbound event. Errors are returned only when a reply
// could not be delivered; store failures are answered in chat.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) error {
	if in.Kind != EventNewMessage || !in.HasContent || in.FromMe {
		return nil
	}

	id, isCommand, err := ParseRequest(in.Text)
	if !isCommand {
		return nil
	}
	if err != nil {
		d.logger.Debug("[bot] Bad request from %s: %v", in.Chat, err)
		return d.reply(ctx, in.Chat, ReplyUsage)
	}

	click := models.Click{ListingID: id, Requester: in.Chat, At: d.now()}
	if err := d.store.RecordClick(ctx, click); err != nil {
		d.logger.Warn("[bot] Recording click for vespa %d failed: %v", id, err)
	}

	phone, err := d.store.PhoneByID(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return d.reply(ctx, in.Chat, ReplyNotFound)
	case err != nil:
		d.logger.Error("[bot] Phone lookup for vespa %d failed: %v", id, err)
		return d.reply(ctx, in.Chat, ReplyFailure)
	}

	if err := d.reply(ctx, in.Chat, ReplyHandoff); err != nil {
		return err
	}

	owner := utils.ChatAddress(phone, d.countryCode)
	alert := fmt.Sprintf(alertTemplate, in.Chat, id)
	if err := d.sender.SendText(ctx, owner, alert); err != nil {
		return fmt.Errorf("bot: alert owner of vespa %d: %w", id, err)
	}
	d.logger.Info("[bot] Request for vespa %d from %s forwarded", id, in.Chat)
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, chat, text string) error {
	if err := d.sender.SendText(ctx, chat, text); err != nil {
		return fmt.Errorf("bot: reply to %s: %w", chat, err)
	}
	return nil
}
