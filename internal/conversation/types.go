// Package conversation drives the multi-turn flow that collects a weekly
// message, its schedule and its destination, then commits it.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"schedbot/internal/schedule"
)

// State is the step a draft is waiting on.
type State int

const (
	Idle State = iota
	AwaitingBody
	AwaitingDay
	AwaitingHour
	AwaitingMinute
	AwaitingTarget
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingBody:
		return "AwaitingBody"
	case AwaitingDay:
		return "AwaitingDay"
	case AwaitingHour:
		return "AwaitingHour"
	case AwaitingMinute:
		return "AwaitingMinute"
	case AwaitingTarget:
		return "AwaitingTarget"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Mode selects how hour and minute are collected.
type Mode string

const (
	// ModeFreeText asks for hour and minute as typed numbers.
	ModeFreeText Mode = "freetext"
	// ModeMenu offers hour and minute button grids while in AwaitingDay.
	ModeMenu Mode = "menu"
)

// ParseMode reads a configured mode. Empty selects ModeFreeText.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFreeText:
		return ModeFreeText, nil
	case ModeMenu:
		return ModeMenu, nil
	default:
		return "", fmt.Errorf("unknown input mode %q (want menu or freetext)", s)
	}
}

// Key identifies one draft: the owner and the chat they talk to the bot in.
type Key struct {
	OwnerID int64
	ChatID  int64
}

// Session is the draft of one (owner, chat) pair. Unset numeric fields are -1.
type Session struct {
	State       State
	Mode        Mode
	SelfTarget  bool
	Body        string
	Day         schedule.Day
	Hour        int
	Minute      int
	TargetID    string
	TargetLabel string
	// PendingID is a persisted definition whose test delivery failed and
	// which waits for an explicit "yes".
	PendingID int64
}

func newSession(mode Mode, self bool) Session {
	return Session{State: AwaitingBody, Mode: mode, SelfTarget: self, Day: -1, Hour: -1, Minute: -1}
}

// Choice actions carried by buttons.
const (
	ActionMenu   = "menu"
	ActionDay    = "day"
	ActionHour   = "hour"
	ActionMinute = "minute"
)

// Menu values for ActionMenu.
const (
	MenuScheduleOther = "other"
	MenuScheduleSelf  = "self"
	MenuList          = "list"
	MenuCancel        = "cancel"
)

// Input is one user turn: a message (Text, ForwardedFrom) or a button press
// (Action, Value).
type Input struct {
	Text          string
	ForwardedFrom string
	Action        string
	Value         string
}

func (in Input) isChoice() bool { return in.Action != "" }

type Button struct {
	Label  string
	Action string
	Value  string
}

// Response is one outgoing message. Replace asks the transport to edit the
// message that carried the pressed button instead of sending a new one.
type Response struct {
	Text     string
	Keyboard [][]Button
	Replace  bool
}

type Responder interface {
	Respond(ctx context.Context, r Response) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, r Response) error

func (f ResponderFunc) Respond(ctx context.Context, r Response) error { return f(ctx, r) }

// Store is the part of the definition store the flow needs.
type Store interface {
	Create(ctx context.Context, def schedule.Definition) (int64, error)
	Get(ctx context.Context, id int64) (schedule.Definition, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]schedule.Definition, error)
}

// Registrar arms the weekly trigger of a committed definition.
type Registrar interface {
	Register(def schedule.Definition) error
}
