package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("splitText(short) = %q", got)
	}
	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(long, 10)
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("splitText = %q", got)
	}
	for _, c := range splitText(strings.Repeat("x", 25), 10) {
		if len([]rune(c)) > 10 {
			t.Fatalf("chunk too long: %d", len(c))
		}
	}
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	r, err := recipient("-100123")
	if err != nil || r.Recipient() != "-100123" {
		t.Fatalf("recipient(-100123) = %v, %v", r, err)
	}
	r, err = recipient("@news")
	if err != nil || r.Recipient() != "@news" {
		t.Fatalf("recipient(@news) = %v, %v", r, err)
	}
	for _, bad := range []string{"", "news", "@"} {
		if _, err := recipient(bad); err == nil {
			t.Fatalf("recipient(%q) error = nil", bad)
		}
	}
}

func TestForwardedFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *tele.Message
		want string
	}{
		{"not forwarded", &tele.Message{}, ""},
		{"from user", &tele.Message{Origin: &tele.MessageOrigin{Sender: &tele.User{ID: 42}}}, "42"},
		{"from channel", &tele.Message{Origin: &tele.MessageOrigin{Chat: &tele.Chat{ID: -100500}}}, "-100500"},
		{"hidden user", &tele.Message{Origin: &tele.MessageOrigin{SenderUsername: "ghost"}}, ""},
	}
	for _, tt := range tests {
		if got := forwardedFrom(tt.msg); got != tt.want {
			t.Fatalf("%s: forwardedFrom = %q, want %q", tt.name, got, tt.want)
		}
	}
}
