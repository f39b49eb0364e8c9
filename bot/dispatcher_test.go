package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/proto"

	"radiovespa/models"
	"radiovespa/storage"
	"radiovespa/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu        sync.Mutex
	phones    map[int]string
	clicks    []models.Click
	clickErr  error
	lookupErr error
}

func (f *fakeStore) RecordClick(_ context.Context, c models.Click) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks = append(f.clicks, c)
	return nil
}

func (f *fakeStore) PhoneByID(_ context.Context, id int) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	phone, ok := f.phones[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	return phone, nil
}

type sent struct {
	to, text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to: to, text: text})
	return nil
}

const requester = "34600000001@s.whatsapp.net"

func newTestDispatcher(store *fakeStore, sender *fakeSender) *Dispatcher {
	return NewDispatcher(store, sender, utils.DefaultCountryCode, utils.NewNopLogger())
}

func message(text string) Inbound {
	return Inbound{Kind: EventNewMessage, Chat: requester, Text: text, HasContent: true}
}

func TestHandleForwardsRequestToOwner(t *testing.T) {
	store := &fakeStore{phones: map[int]string{7: "612345678"}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender)

	require.NoError(t, d.Handle(context.Background(), message("/solicitar 7")))

	require.Len(t, store.clicks, 1)
	assert.Equal(t, 7, store.clicks[0].ListingID)
	assert.Equal(t, requester, store.clicks[0].Requester)
	assert.False(t, store.clicks[0].At.IsZero())

	require.Len(t, sender.sent, 2)
	assert.Equal(t, sent{requester, ReplyHandoff}, sender.sent[0])
	assert.Equal(t, "34612345678@s.whatsapp.net", sender.sent[1].to)
	assert.Contains(t, sender.sent[1].text, requester)
	assert.Contains(t, sender.sent[1].text, "#7")
}

func TestHandleBadIDRepliesUsage(t *testing.T) {
	for _, text := range []string{"/solicitar abc", "/solicitar", "/solicitar 7.5"} {
		t.Run(text, func(t *testing.T) {
			store := &fakeStore{phones: map[int]string{7: "612345678"}}
			sender := &fakeSender{}

			require.NoError(t, newTestDispatcher(store, sender).Handle(context.Background(), message(text)))

			assert.Empty(t, store.clicks)
			assert.Equal(t, []sent{{requester, ReplyUsage}}, sender.sent)
		})
	}
}

func TestHandleUnknownListing(t *testing.T) {
	store := &fakeStore{phones: map[int]string{}}
	sender := &fakeSender{}

	require.NoError(t, newTestDispatcher(store, sender).Handle(context.Background(), message("/solicitar 99")))

	assert.Len(t, store.clicks, 1, "click is recorded before the lookup")
	assert.Equal(t, []sent{{requester, ReplyNotFound}}, sender.sent)
}

func TestHandleLookupFailureRepliesFailure(t *testing.T) {
	store := &fakeStore{lookupErr: errors.New("connection refused")}
	sender := &fakeSender{}

	require.NoError(t, newTestDispatcher(store, sender).Handle(context.Background(), message("/solicitar 7")))

	assert.Equal(t, []sent{{requester, ReplyFailure}}, sender.sent)
}

func TestHandleClickFailureStillForwards(t *testing.T) {
	store := &fakeStore{phones: map[int]string{7: "+34 612 345 678"}, clickErr: errors.New("disk full")}
	sender := &fakeSender{}

	require.NoError(t, newTestDispatcher(store, sender).Handle(context.Background(), message("/solicitar 7")))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "34612345678@s.whatsapp.net", sender.sent[1].to)
}

func TestHandleIgnoresIrrelevantEvents(t *testing.T) {
	tests := []struct {
		name string
		in   Inbound
	}{
		{"own message", Inbound{Kind: EventNewMessage, Chat: requester, FromMe: true, Text: "/solicitar 7", HasContent: true}},
		{"no content", Inbound{Kind: EventNewMessage, Chat: requester}},
		{"other event", Inbound{Kind: EventOther, Chat: requester, Text: "/solicitar 7", HasContent: true}},
		{"plain chat", message("hola, ¿qué tal?")},
		{"empty text", message("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{phones: map[int]string{7: "612345678"}}
			sender := &fakeSender{}

			require.NoError(t, newTestDispatcher(store, sender).Handle(context.Background(), tt.in))

			assert.Empty(t, store.clicks)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestHandleSendFailureIsReturned(t *testing.T) {
	store := &fakeStore{phones: map[int]string{7: "612345678"}}
	sender := &fakeSender{err: errors.New("not connected")}

	err := newTestDispatcher(store, sender).Handle(context.Background(), message("/solicitar 7"))
	assert.ErrorContains(t, err, "not connected")
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		text    string
		id      int
		ok      bool
		wantErr bool
	}{
		{"/solicitar 7", 7, true, false},
		{"  /solicitar   12  extra", 12, true, false},
		{"/solicitar -3", -3, true, false},
		{"/solicitar abc", 0, true, true},
		{"/solicitar", 0, true, true},
		{"solicitar 7", 0, false, false},
		{"hola", 0, false, false},
	}
	for _, tt := range tests {
		id, ok, err := ParseRequest(tt.text)
		assert.Equal(t, tt.id, id, tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.wantErr, err != nil, tt.text)
	}
}

func TestShouldReconnect(t *testing.T) {
	assert.True(t, ShouldReconnect(ReasonConnectionLost))
	assert.False(t, ShouldReconnect(ReasonLoggedOut))
	assert.False(t, ShouldReconnect(ReasonReplaced))
}

func TestReconnectPolicyDefaultsToForever(t *testing.T) {
	p := reconnectPolicy(0, utils.NewNopLogger())
	assert.Zero(t, p.MaxAttempts, "0 keeps reconnecting until shutdown")
	assert.Equal(t, time.Minute, p.MaxDelay)

	// an outage longer than any fixed budget of attempts still recovers
	p.BaseDelay, p.MaxDelay = time.Microsecond, time.Microsecond
	calls := 0
	err := p.Do(context.Background(), "whatsapp-reconnect", func() error {
		calls++
		if calls < 100 {
			return errors.New("network unreachable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, calls)

	assert.Equal(t, 5, reconnectPolicy(5, nil).MaxAttempts)
}

func TestToInbound(t *testing.T) {
	chat := types.NewJID("34600000001", types.DefaultUserServer)

	evt := &events.Message{
		Info: types.MessageInfo{MessageSource: types.MessageSource{Chat: chat}},
		Message: &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("  /solicitar 3 ")},
		},
	}
	in := toInbound(evt)
	assert.Equal(t, Inbound{Kind: EventNewMessage, Chat: requester, Text: "/solicitar 3", HasContent: true}, in)

	evt = &events.Message{Info: types.MessageInfo{MessageSource: types.MessageSource{Chat: chat, IsFromMe: true}}}
	in = toInbound(evt)
	assert.True(t, in.FromMe)
	assert.False(t, in.HasContent)
	assert.Empty(t, in.Text)
}

func TestMessageTextPrefersConversation(t *testing.T) {
	m := &waE2E.Message{
		Conversation:        proto.String(" hola "),
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("otro")},
	}
	assert.Equal(t, "hola", messageText(m))
	assert.Empty(t, messageText(nil))
}
