package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"schedbot/internal/schedule"
	"schedbot/internal/storage"
	logx "schedbot/pkg/logx"
)

type Config struct {
	Mode Mode
}

// Machine holds one draft per Key. Turns for the same Key run one at a time;
// different keys proceed independently.
type Machine struct {
	store     Store
	gateway   schedule.Gateway
	registrar Registrar
	log       logx.Logger

	locks keyedMutex

	mu       sync.RWMutex
	mode     Mode
	sessions map[Key]Session
}

func New(cfg Config, store Store, gateway schedule.Gateway, registrar Registrar, log logx.Logger) *Machine {
	if log.IsZero() {
		log = logx.Nop()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeFreeText
	}
	return &Machine{
		store:     store,
		gateway:   gateway,
		registrar: registrar,
		log:       log.With(logx.String("comp", "conversation")),
		mode:      mode,
		sessions:  map[Key]Session{},
	}
}

// SetMode changes the input mode for sessions started afterwards.
func (m *Machine) SetMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

func (m *Machine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Session returns a copy of the draft for key. ok is false when key is Idle.
func (m *Machine) Session(key Key) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Active returns the number of non-idle drafts.
func (m *Machine) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Machine) save(key Key, s Session) {
	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()
}

func (m *Machine) drop(key Key) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}

// Start discards any draft for key and shows the main menu.
func (m *Machine) Start(ctx context.Context, key Key, r Responder) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	m.drop(key)
	m.say(ctx, r, Response{Text: textWelcome, Keyboard: menuKeyboard()})
	return nil
}

// Cancel discards any draft for key.
func (m *Machine) Cancel(ctx context.Context, key Key, r Responder) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	m.drop(key)
	m.say(ctx, r, Response{Text: textCancelled})
	return nil
}

// Handle applies one turn. A returned error means the turn did not change the
// draft; replies already emitted stay emitted.
func (m *Machine) Handle(ctx context.Context, key Key, in Input, r Responder) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	if in.Action == ActionMenu {
		return m.handleMenu(ctx, key, in.Value, r)
	}

	sess, ok := m.Session(key)
	if !ok {
		if in.isChoice() {
			m.say(ctx, r, Response{Text: textExpired, Replace: true})
		}
		return nil
	}

	switch sess.State {
	case AwaitingBody:
		if in.isChoice() {
			return m.expired(ctx, r)
		}
		return m.onBody(ctx, key, sess, in, r)
	case AwaitingDay:
		return m.onDay(ctx, key, sess, in, r)
	case AwaitingHour:
		if in.isChoice() {
			return m.expired(ctx, r)
		}
		return m.onHour(ctx, key, sess, in.Text, r)
	case AwaitingMinute:
		if in.isChoice() {
			return m.expired(ctx, r)
		}
		return m.onMinute(ctx, key, sess, in.Text, r)
	case AwaitingTarget:
		if in.isChoice() {
			return m.expired(ctx, r)
		}
		return m.onTarget(ctx, key, sess, in, r)
	}
	return nil
}

func (m *Machine) handleMenu(ctx context.Context, key Key, value string, r Responder) error {
	switch value {
	case MenuScheduleOther, MenuScheduleSelf:
		m.save(key, newSession(m.Mode(), value == MenuScheduleSelf))
		m.say(ctx, r, Response{Text: textAskBody, Replace: true})
	case MenuList:
		defs, err := m.store.ListByOwner(ctx, key.OwnerID)
		if err != nil {
			return fmt.Errorf("list definitions: %w", err)
		}
		m.drop(key)
		m.say(ctx, r, Response{Text: schedule.FormatList(defs), Replace: true})
	case MenuCancel:
		m.drop(key)
		m.say(ctx, r, Response{Text: textCancelled, Replace: true})
	default:
		return m.expired(ctx, r)
	}
	return nil
}

func (m *Machine) onBody(ctx context.Context, key Key, sess Session, in Input, r Responder) error {
	body := strings.TrimSpace(in.Text)
	if body == "" {
		m.say(ctx, r, Response{Text: textEmptyBody})
		return nil
	}
	sess.Body = body
	sess.State = AwaitingDay
	m.save(key, sess)
	m.say(ctx, r, Response{Text: textBodyAccepted(body), Keyboard: dayKeyboard()})
	return nil
}

func (m *Machine) onDay(ctx context.Context, key Key, sess Session, in Input, r Responder) error {
	if sess.Mode == ModeMenu {
		switch {
		case in.Action == ActionHour:
			if !sess.Day.Valid() {
				return m.expired(ctx, r)
			}
			return m.onHour(ctx, key, sess, in.Value, r)
		case in.Action == ActionMinute:
			if !schedule.ValidHour(sess.Hour) {
				return m.expired(ctx, r)
			}
			return m.onMinute(ctx, key, sess, in.Value, r)
		case in.Action == "" && sess.Day.Valid() && !schedule.ValidHour(sess.Hour):
			return m.onHour(ctx, key, sess, in.Text, r)
		case in.Action == "" && schedule.ValidHour(sess.Hour):
			return m.onMinute(ctx, key, sess, in.Text, r)
		}
	}

	raw := in.Text
	switch in.Action {
	case "":
	case ActionDay:
		raw = in.Value
	default:
		return m.expired(ctx, r)
	}
	day, ok := schedule.ParseDay(raw)
	if !ok {
		m.say(ctx, r, Response{Text: textBadDay, Keyboard: dayKeyboard()})
		return nil
	}

	sess.Day, sess.Hour, sess.Minute = day, -1, -1
	replace := in.isChoice()
	if sess.Mode == ModeMenu {
		m.save(key, sess)
		m.say(ctx, r, Response{Text: textDaySelected(day) + "\n\nChoose the hour:", Keyboard: hourKeyboard(), Replace: replace})
		return nil
	}
	sess.State = AwaitingHour
	m.save(key, sess)
	m.say(ctx, r, Response{Text: textDaySelected(day) + "\n\n" + textAskHour, Replace: replace})
	return nil
}

func (m *Machine) onHour(ctx context.Context, key Key, sess Session, raw string, r Responder) error {
	h, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		m.say(ctx, r, Response{Text: textNaNHour})
		return nil
	}
	if !schedule.ValidHour(h) {
		m.say(ctx, r, Response{Text: textBadHour})
		return nil
	}
	sess.Hour = h
	if sess.Mode == ModeMenu {
		m.save(key, sess)
		text := fmt.Sprintf("Selected time: %02d:__\n\nChoose the minute:", h)
		m.say(ctx, r, Response{Text: text, Keyboard: minuteKeyboard(h), Replace: true})
		return nil
	}
	sess.State = AwaitingMinute
	m.save(key, sess)
	m.say(ctx, r, Response{Text: textAskMinute})
	return nil
}

func (m *Machine) onMinute(ctx context.Context, key Key, sess Session, raw string, r Responder) error {
	mi, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		m.say(ctx, r, Response{Text: textNaNMinute})
		return nil
	}
	if !schedule.ValidMinute(mi) {
		m.say(ctx, r, Response{Text: textBadMinute})
		return nil
	}
	sess.Minute = mi
	sess.State = AwaitingTarget
	m.save(key, sess)
	m.say(ctx, r, Response{Text: textAskTarget(sess), Replace: sess.Mode == ModeMenu})
	return nil
}

func (m *Machine) onTarget(ctx context.Context, key Key, sess Session, in Input, r Responder) error {
	target := ResolveTarget(sess, key.OwnerID, in)
	switch target.Kind {
	case TargetConfirm:
		return m.confirmPending(ctx, key, sess, r)
	case TargetUnrecognized:
		text := textNoTarget
		if sess.PendingID != 0 {
			text += textNoTargetYes
		}
		m.say(ctx, r, Response{Text: text})
		return nil
	}
	return m.commit(ctx, key, sess, target, r)
}

// commit persists the draft, sends a test delivery and, when it succeeds,
// arms the trigger. A failed test keeps the row and parks it as pending.
func (m *Machine) commit(ctx context.Context, key Key, sess Session, target Target, r Responder) error {
	def := schedule.Definition{
		OwnerID:      key.OwnerID,
		OriginChatID: key.ChatID,
		Body:         sess.Body,
		Day:          sess.Day,
		Hour:         sess.Hour,
		Minute:       sess.Minute,
		TargetID:     target.ID,
		TargetLabel:  target.Label,
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("draft incomplete: %w", err)
	}
	id, err := m.store.Create(ctx, def)
	if err != nil {
		return fmt.Errorf("persist definition: %w", err)
	}
	def.ID = id

	m.say(ctx, r, Response{Text: textTesting})
	sendErr := m.gateway.Send(ctx, def.TargetID, schedule.TestPayload(def.Body, def.Day, def.Hour, def.Minute))

	// The row exists now; the outcome must reach the user even when the
	// turn's deadline was spent on the test send.
	rctx, cancel := replyContext(ctx)
	defer cancel()
	if sendErr != nil {
		m.log.Warn("test delivery failed",
			logx.Int64("id", id),
			logx.Int64("owner", key.OwnerID),
			logx.String("target", def.TargetID),
			logx.Err(sendErr),
		)
		sess.TargetID, sess.TargetLabel, sess.PendingID = def.TargetID, def.TargetLabel, id
		m.save(key, sess)
		m.say(rctx, r, Response{Text: textTestFailed(sendErr)})
		return nil
	}
	m.say(rctx, r, Response{Text: textTestOK})
	m.finish(rctx, key, def, r)
	return nil
}

const replyTimeout = 10 * time.Second

func replyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
}

func (m *Machine) confirmPending(ctx context.Context, key Key, sess Session, r Responder) error {
	def, err := m.store.Get(ctx, sess.PendingID)
	if errors.Is(err, storage.ErrNotFound) {
		m.drop(key)
		m.say(ctx, r, Response{Text: textPendingGone})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load pending definition: %w", err)
	}
	m.finish(ctx, key, def, r)
	return nil
}

func (m *Machine) finish(ctx context.Context, key Key, def schedule.Definition, r Responder) {
	if err := m.registrar.Register(def); err != nil {
		// The row stays; the next rehydration retries it.
		m.log.Error("register trigger failed", logx.Int64("id", def.ID), logx.Err(err))
	} else {
		m.log.Info("message scheduled",
			logx.Int64("id", def.ID),
			logx.Int64("owner", def.OwnerID),
			logx.String("day", def.Day.String()),
			logx.String("time", def.Clock()),
		)
	}
	m.drop(key)
	m.say(ctx, r, Response{Text: textScheduled(def)})
}

func (m *Machine) expired(ctx context.Context, r Responder) error {
	m.say(ctx, r, Response{Text: textExpired, Replace: true})
	return nil
}

func (m *Machine) say(ctx context.Context, r Responder, resp Response) {
	if r == nil {
		return
	}
	if err := r.Respond(ctx, resp); err != nil {
		m.log.Warn("reply failed", logx.Err(err))
	}
}
