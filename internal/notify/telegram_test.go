package notify

import (
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

func TestNotify_NilSafe(t *testing.T) {
	var r *Reporter
	r.Notify("ignored")

	s := &fakeSender{}
	(&Reporter{bot: s}).Notify("no chat")
	if len(s.sent) != 0 {
		t.Errorf("sent %d messages without a chat ID, want 0", len(s.sent))
	}
}

func TestNotify_Sends(t *testing.T) {
	s := &fakeSender{}
	r := &Reporter{bot: s, chatID: 42}

	r.Notify("feed broke")

	if len(s.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(s.sent))
	}
	if s.sent[0].ChatID != 42 || s.sent[0].Text != "feed broke" {
		t.Errorf("message = %+v", s.sent[0])
	}
}

func TestNotify_Truncates(t *testing.T) {
	s := &fakeSender{}
	r := &Reporter{bot: s, chatID: 1}

	r.Notify(strings.Repeat("á", maxMessage+50))

	got := []rune(s.sent[0].Text)
	if len(got) != maxMessage+1 {
		t.Errorf("len = %d runes, want %d", len(got), maxMessage+1)
	}
}

func TestNotify_SendErrorIsSwallowed(t *testing.T) {
	s := &fakeSender{err: errors.New("network down")}
	(&Reporter{bot: s, chatID: 1}).Notify("x")
}

func TestConnect_Disabled(t *testing.T) {
	r, err := Connect("", 0)
	if err != nil || r != nil {
		t.Errorf("Connect() = %v, %v; want nil, nil", r, err)
	}
}
