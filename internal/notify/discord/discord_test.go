package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/switchyard/internal/notify"
)

type mockSession struct {
	mu       sync.Mutex
	openErr  error
	opened   bool
	closed   bool
	sent     map[string][]*discordgo.MessageSend
	sendErrs []error
}

func newMockSession() *mockSession {
	return &mockSession{sent: make(map[string][]*discordgo.MessageSend)}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.sent[channelID] = append(m.sent[channelID], data)
	return &discordgo.Message{ID: "msg-1", ChannelID: channelID}, nil
}

func (m *mockSession) sentTo(channelID string) []*discordgo.MessageSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[channelID]
}

func rateLimited() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
}

func newTestAdapter(t *testing.T) (*Adapter, *mockSession) {
	t.Helper()
	sess := newMockSession()
	a, err := New(AdapterOpts{ChannelID: "CH_DEFAULT", Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.backoff = notify.Backoff{Retries: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, sess
}

func TestNew_RequiresBotToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error without bot token")
	}
}

func TestConnect_OpenError(t *testing.T) {
	sess := newMockSession()
	sess.openErr = errors.New("4004: authentication failed")
	a, _ := New(AdapterOpts{Session: sess})
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestSend_WithEvents(t *testing.T) {
	a, sess := newTestAdapter(t)

	err := a.Send(context.Background(), notify.OutboundMessage{
		ChannelID: "CH1",
		Events: []notify.FormattedEvent{{
			Title:  "Card Fix login moved to Done",
			Body:   "In Progress → Done",
			Color:  notify.ColorSuccess,
			Fields: []notify.Field{{Name: "Project", Value: "Website", Short: true}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := sess.sentTo("CH1")
	if len(sent) != 1 || len(sent[0].Embeds) != 1 {
		t.Fatalf("sent = %+v", sent)
	}
	embed := sent[0].Embeds[0]
	if embed.Color != 0x36a64f {
		t.Errorf("color = %#x, want 0x36a64f", embed.Color)
	}
	if !embed.Fields[0].Inline {
		t.Error("short field should be inline")
	}
}

func TestSend_DefaultChannel(t *testing.T) {
	a, sess := newTestAdapter(t)
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sess.sentTo("CH_DEFAULT"); len(got) != 1 || got[0].Content != "hi" {
		t.Errorf("default channel got %+v", got)
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Session: newMockSession(), ChannelID: "CH"})
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestSend_RetriesOn429(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.sendErrs = []error{rateLimited(), rateLimited(), nil}

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "retry"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(sess.sentTo("CH_DEFAULT")); got != 1 {
		t.Errorf("sent = %d, want 1", got)
	}
}

func TestSend_GivesUpAfterMaxRetries(t *testing.T) {
	a, sess := newTestAdapter(t)
	for i := 0; i <= a.backoff.Retries; i++ {
		sess.sendErrs = append(sess.sendErrs, rateLimited())
	}
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "never"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestSend_OtherErrorNotRetried(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.sendErrs = []error{
		&discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}},
		nil,
	}
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "nope"}); err == nil {
		t.Fatal("expected 403 to fail immediately")
	}
	if got := len(sess.sentTo("CH_DEFAULT")); got != 0 {
		t.Errorf("sent = %d, want 0", got)
	}
}

func TestClose(t *testing.T) {
	a, sess := newTestAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sess.closed {
		t.Error("session should be closed")
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"2196F3", 0x2196f3},
		{"", 0},
		{"#zzzzzz", 0},
		{"#1234567", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "1.5")
	wait, ok := rateLimit(fmt.Errorf("send: %w", &discordgo.RESTError{Response: resp}))
	if !ok || wait != 1500*time.Millisecond {
		t.Errorf("rateLimit = %v, %v; want 1.5s, true", wait, ok)
	}

	wait, ok = rateLimit(rateLimited())
	if !ok || wait != 0 {
		t.Errorf("no header: rateLimit = %v, %v; want 0, true", wait, ok)
	}

	if _, ok := rateLimit(errors.New("boom")); ok {
		t.Error("plain errors are not rate limits")
	}
}
