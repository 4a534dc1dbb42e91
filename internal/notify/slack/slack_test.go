package slack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/switchyard/internal/notify"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu       sync.Mutex
	authResp *slackapi.AuthTestResponse
	authErr  error
	posted   []postedMessage
	postErrs []error // returned in order, one per call
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123", Team: "switchyard"},
	}
}

func (m *mockSlackClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.postErrs) > 0 {
		err := m.postErrs[0]
		m.postErrs = m.postErrs[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockSlackClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

func newTestAdapter(t *testing.T) (*Adapter, *mockSlackClient) {
	t.Helper()
	client := newMockSlackClient()
	a, err := New(AdapterOpts{ChannelID: "C_DEFAULT", Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.backoff = notify.Backoff{Retries: 3, Base: time.Millisecond, Max: time.Millisecond}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, client
}

func TestNew_RequiresBotToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error without bot token")
	}
}

func TestConnect_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
}

func TestConnect_AuthError(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = fmt.Errorf("invalid_auth")
	a, _ := New(AdapterOpts{Client: client})

	err := a.Connect(context.Background())
	if err == nil {
		t.Fatal("expected auth error")
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting a closed adapter")
	}
}

func TestSend_SimpleText(t *testing.T) {
	a, client := newTestAdapter(t)

	err := a.Send(context.Background(), notify.OutboundMessage{
		ChannelID: "C1",
		Text:      "hello world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.postedCount() != 1 {
		t.Fatalf("expected 1 posted message, got %d", client.postedCount())
	}
	if last := client.lastPosted(); last.channelID != "C1" {
		t.Errorf("channel = %q, want C1", last.channelID)
	}
}

func TestSend_DefaultChannel(t *testing.T) {
	a, client := newTestAdapter(t)

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hello default"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := client.lastPosted(); last.channelID != "C_DEFAULT" {
		t.Errorf("channel = %q, want C_DEFAULT", last.channelID)
	}
}

func TestSend_NoChannel(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})
	a.Connect(context.Background())

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "no channel"}); err == nil {
		t.Fatal("expected error for no channel")
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})
	if err := a.Send(context.Background(), notify.OutboundMessage{ChannelID: "C1", Text: "hello"}); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, client := newTestAdapter(t)
	client.postErrs = []error{
		&slackapi.RateLimitedError{RetryAfter: time.Millisecond},
		&slackapi.RateLimitedError{RetryAfter: 0},
		nil,
	}

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "eventually"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.postedCount() != 1 {
		t.Errorf("posted = %d, want 1", client.postedCount())
	}
}

func TestSend_PostError(t *testing.T) {
	a, client := newTestAdapter(t)
	client.postErrs = []error{errors.New("channel_not_found")}

	err := a.Send(context.Background(), notify.OutboundMessage{Text: "hello"})
	if err == nil {
		t.Fatal("expected post error")
	}
	if client.postedCount() != 0 {
		t.Errorf("non rate-limit errors must not be retried")
	}
}

func TestBuildMessageOptions(t *testing.T) {
	tests := []struct {
		name string
		msg  notify.OutboundMessage
		want int
	}{
		{"text only", notify.OutboundMessage{Text: "hello"}, 1},
		{"events with fallback", notify.OutboundMessage{Text: "events", Events: []notify.FormattedEvent{{Title: "t"}}}, 2},
		{"events only", notify.OutboundMessage{Events: []notify.FormattedEvent{{Title: "t"}}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(buildMessageOptions(tt.msg)); got != tt.want {
				t.Errorf("options = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEventToAttachment(t *testing.T) {
	evt := notify.FormattedEvent{
		Title:    "Project Website started",
		Body:     "IDLE → ACTIVE",
		Color:    notify.ColorInfo,
		Severity: "info",
		Fields: []notify.Field{
			{Name: "Project", Value: "Website", Short: true},
			{Name: "Status", Value: "ACTIVE", Short: true},
		},
	}

	att := eventToAttachment(evt)
	if att.Title != evt.Title || att.Fallback != evt.Title {
		t.Errorf("title = %q, fallback = %q", att.Title, att.Fallback)
	}
	if att.Text != evt.Body {
		t.Errorf("text = %q", att.Text)
	}
	if att.Color != notify.ColorInfo {
		t.Errorf("color = %q", att.Color)
	}
	if len(att.Fields) != 2 || att.Fields[1].Title != "Status" || !att.Fields[1].Short {
		t.Errorf("fields = %+v", att.Fields)
	}
}

func TestSend_GivesUpAfterRetries(t *testing.T) {
	a, client := newTestAdapter(t)
	for i := 0; i <= a.backoff.Retries; i++ {
		client.postErrs = append(client.postErrs, &slackapi.RateLimitedError{RetryAfter: time.Millisecond})
	}

	err := a.Send(context.Background(), notify.OutboundMessage{Text: "never"})
	var rle *slackapi.RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("expected wrapped rate limit error, got %v", err)
	}
	if client.postedCount() != 0 {
		t.Errorf("posted = %d, want 0", client.postedCount())
	}
}

func TestRateLimit(t *testing.T) {
	wait, ok := rateLimit(fmt.Errorf("post: %w", &slackapi.RateLimitedError{RetryAfter: 2 * time.Second}))
	if !ok || wait != 2*time.Second {
		t.Errorf("rateLimit = %v, %v; want 2s, true", wait, ok)
	}
	if _, ok := rateLimit(errors.New("channel_not_found")); ok {
		t.Error("plain errors are not rate limits")
	}
}
