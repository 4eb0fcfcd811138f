package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "schedbot/internal/transport"
	logx "schedbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []string
	answered []string
	menu     []kit.BotCommand
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.sent)}, nil
}

func (a *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (a *fakeAdapter) AnswerCallback(ctx context.Context, id, text string) error {
	a.mu.Lock()
	a.answered = append(a.answered, id)
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.mu.Lock()
	a.menu = cmds
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) lastSent() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sent) == 0 {
		return ""
	}
	return a.sent[len(a.sent)-1]
}

func msg(chat, from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chat, FromID: from, Text: text}}
}

func TestCommandRouting(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, Options{Owners: []int64{1}})
	var gotArgs []string
	r.SetRegistry(context.Background(), []Command{
		{Name: "delete", Description: "Delete a message", Handle: func(ctx context.Context, req *Request) error {
			gotArgs = req.Args
			return req.Reply(ctx, "deleted")
		}},
		{Name: "jobs", Access: AccessOwnerOnly, Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, "jobs")
		}},
	}, nil)

	ctx := context.Background()
	r.Serve(ctx, msg(10, 2, "/delete@SchedBot 7"))
	if ad.lastSent() != "deleted" || len(gotArgs) != 1 || gotArgs[0] != "7" {
		t.Fatalf("delete: sent %q args %v", ad.lastSent(), gotArgs)
	}

	r.Serve(ctx, msg(10, 2, "/jobs"))
	if got := ad.lastSent(); got == "jobs" {
		t.Fatalf("non-operator reached owner-only command")
	}
	r.Serve(ctx, msg(10, 1, "/jobs"))
	if got := ad.lastSent(); got != "jobs" {
		t.Fatalf("operator /jobs sent %q", got)
	}

	r.Serve(ctx, msg(10, 2, "/nope"))
	if got := ad.lastSent(); got != textUnknownCommand {
		t.Fatalf("unknown command reply = %q", got)
	}

	if len(ad.menu) != 2 || ad.menu[0].Command != "delete" || ad.menu[1].Command != "help" {
		t.Fatalf("menu = %+v", ad.menu)
	}
}

func TestFallbackGetsPlainAndForwardedMessages(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, Options{})
	r.SetRegistry(context.Background(), nil, nil)
	var got []string
	r.SetFallback(func(ctx context.Context, req *Request) error {
		got = append(got, req.Message().Text)
		return nil
	})

	ctx := context.Background()
	r.Serve(ctx, msg(5, 5, "hello"))
	fwd := msg(5, 5, "/start")
	fwd.Message.ForwardedFrom = "-100123"
	r.Serve(ctx, fwd)

	if len(got) != 2 || got[0] != "hello" || got[1] != "/start" {
		t.Fatalf("fallback saw %v", got)
	}
}

func TestCallbackRouting(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, Options{})
	var action, payload string
	r.SetRegistry(context.Background(), nil, []CallbackRoute{{
		Scope: "conv", Action: "day",
		Handle: func(ctx context.Context, req *Request) error {
			action, payload = req.Action, req.Payload
			return nil
		},
	}})

	r.Serve(context.Background(), kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", ChatID: 3, FromID: 3, Data: "conv:day:4"}})
	if action != "day" || payload != "4" {
		t.Fatalf("callback action=%q payload=%q", action, payload)
	}
	if len(ad.answered) != 1 || ad.answered[0] != "cb1" {
		t.Fatalf("answered = %v", ad.answered)
	}
}

func TestHandlerErrorRepliesWithFailure(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, Options{})
	r.SetRegistry(context.Background(), nil, nil)
	r.SetFallback(func(ctx context.Context, req *Request) error { return errors.New("db down") })

	r.Serve(context.Background(), msg(1, 1, "hi"))
	if got := ad.lastSent(); got != textFailure {
		t.Fatalf("reply = %q, want failure text", got)
	}
}

func TestChatRateLimit(t *testing.T) {
	t.Parallel()

	r := New(logx.Nop(), &fakeAdapter{}, Options{ChatRate: 1, ChatBurst: 2})
	now := time.Now()
	if !r.allow(9, now) || !r.allow(9, now) {
		t.Fatalf("burst of 2 rejected")
	}
	if r.allow(9, now) {
		t.Fatalf("third message within burst window allowed")
	}
	if !r.allow(10, now) {
		t.Fatalf("other chat limited")
	}
	if n := r.pruneLimiters(now.Add(time.Hour), time.Minute); n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
}

func TestLaneKeyIsStable(t *testing.T) {
	t.Parallel()

	if laneKey(1, 2) != laneKey(1, 2) {
		t.Fatalf("lane key not deterministic")
	}
	if laneKey(1, 2) == laneKey(2, 1) {
		t.Fatalf("lane key ignores order of chat and user")
	}
}

func TestSanitizeCommand(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"/Start", "start"},
		{"list-all", "list_all"},
		{"  jobs ", "jobs"},
		{"weird!!name", "weirdname"},
		{"", ""},
		{"__x__", "x"},
	}
	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Fatalf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
