package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schedbot/internal/conversation"
	"schedbot/internal/task/scheduler"
	kit "schedbot/internal/transport"
	"schedbot/internal/transport/telegram/router"
	logx "schedbot/pkg/logx"
)

const textRunning = "Bot is running. Use /start to schedule a message."

// Triggers reports the armed weekly triggers for /jobs.
type Triggers interface {
	Snapshot() scheduler.Snapshot
}

type Deps struct {
	Machine  *conversation.Machine
	Surface  *Surface
	Triggers Triggers
	Log      logx.Logger
}

// Set is the registry handed to the router.
type Set struct {
	Commands  []router.Command
	Callbacks []router.CallbackRoute
	Fallback  router.HandlerFunc
}

func Build(d Deps) Set {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	h := &handlers{Deps: d}
	set := Set{
		Commands: []router.Command{
			{Name: "start", Description: "Start scheduling a message", Handle: h.start},
			{Name: "cancel", Description: "Cancel the current operation", Handle: h.cancel},
			{Name: "list", Description: "List your scheduled messages", Handle: h.list},
			{Name: "delete", Description: "Delete a scheduled message", Usage: "/delete <id>", Handle: h.delete},
			{Name: "test", Description: "Check that the bot is running", Handle: h.test},
			{Name: "jobs", Description: "Show armed weekly triggers", Access: router.AccessOwnerOnly, Handle: h.jobs},
		},
		Fallback: h.message,
	}
	for _, action := range []string{conversation.ActionMenu, conversation.ActionDay, conversation.ActionHour, conversation.ActionMinute} {
		set.Callbacks = append(set.Callbacks, router.CallbackRoute{
			Scope:  callbackScope,
			Action: action,
			Access: router.AccessEveryone,
			Handle: h.button,
		})
	}
	return set
}

type handlers struct {
	Deps
}

func key(req *router.Request) conversation.Key {
	return conversation.Key{OwnerID: req.FromID, ChatID: req.Chat.ChatID}
}

func (h *handlers) responder(req *router.Request) *chatResponder {
	r := &chatResponder{adapter: req.Adapter, chat: req.Chat, log: req.Logger}
	if cb := req.Callback(); cb != nil && cb.MessageID != 0 {
		r.origin = &kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	}
	return r
}

func (h *handlers) start(ctx context.Context, req *router.Request) error {
	return h.Machine.Start(ctx, key(req), h.responder(req))
}

func (h *handlers) cancel(ctx context.Context, req *router.Request) error {
	return h.Machine.Cancel(ctx, key(req), h.responder(req))
}

func (h *handlers) list(ctx context.Context, req *router.Request) error {
	text, err := h.Surface.List(ctx, req.FromID)
	if err != nil {
		return err
	}
	return req.Reply(ctx, text)
}

func (h *handlers) delete(ctx context.Context, req *router.Request) error {
	arg := ""
	if len(req.Args) > 0 {
		arg = req.Args[0]
	}
	text, err := h.Surface.Delete(ctx, req.FromID, arg)
	if err != nil {
		return err
	}
	return req.Reply(ctx, text)
}

func (h *handlers) test(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, textRunning)
}

func (h *handlers) jobs(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, formatJobs(h.Triggers.Snapshot()))
}

// message feeds non-command messages into the conversation.
func (h *handlers) message(ctx context.Context, req *router.Request) error {
	msg := req.Message()
	if msg == nil {
		return nil
	}
	in := conversation.Input{Text: msg.Text, ForwardedFrom: msg.ForwardedFrom}
	return h.Machine.Handle(ctx, key(req), in, h.responder(req))
}

func (h *handlers) button(ctx context.Context, req *router.Request) error {
	in := conversation.Input{Action: req.Action, Value: req.Payload}
	return h.Machine.Handle(ctx, key(req), in, h.responder(req))
}

func formatJobs(snap scheduler.Snapshot) string {
	if !snap.Running {
		return "Scheduler is not running."
	}
	if len(snap.Schedules) == 0 {
		return "No active triggers."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Active triggers: %d (timezone %s)\n", len(snap.Schedules), snap.Timezone)
	for _, s := range snap.Schedules {
		next := "-"
		if !s.Next.IsZero() {
			next = s.Next.Format("Mon 2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "\n%s  next %s", s.Name, next)
	}
	e := snap.Engine
	fmt.Fprintf(&b, "\n\nWorkers: %d, in flight %d, queue %d/%d, dropped %d", e.Workers, e.InFlight, e.QueueLen, e.QueueCap, e.Dropped)
	if n := len(e.History); n > 0 {
		last := e.History[n-1]
		fmt.Fprintf(&b, "\nLast run: %s at %s (%s)", last.Name, last.Started.Format(time.RFC3339), historyStatus(last.Error))
	}
	return b.String()
}

func historyStatus(errText string) string {
	if errText == "" {
		return "ok"
	}
	return "failed: " + errText
}
