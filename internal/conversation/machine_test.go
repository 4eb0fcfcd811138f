package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"schedbot/internal/recurring"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
	"schedbot/internal/task/scheduler"
	logx "schedbot/pkg/logx"
)

type recorder struct {
	mu    sync.Mutex
	resps []Response
}

func (r *recorder) Respond(ctx context.Context, resp Response) error {
	r.mu.Lock()
	r.resps = append(r.resps, resp)
	r.mu.Unlock()
	return nil
}

func (r *recorder) last() Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.resps) == 0 {
		return Response{}
	}
	return r.resps[len(r.resps)-1]
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.resps))
	for _, x := range r.resps {
		out = append(out, x.Text)
	}
	return out
}

type fakeGateway struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (g *fakeGateway) Send(ctx context.Context, to, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, to)
	return g.err
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

type harness struct {
	m   *Machine
	st  storage.Store
	gw  *fakeGateway
	rec *recurring.Service
	out *recorder
}

func newHarness(t *testing.T, mode Mode) *harness {
	t.Helper()
	st := storage.NewMemory()
	gw := &fakeGateway{}
	triggers := scheduler.New(scheduler.Config{Enabled: true, Timezone: "UTC"}, nil, logx.Nop(), nil)
	rec := recurring.New(recurring.Config{}, st, gw, triggers, nil, logx.Nop())
	return &harness{
		m:   New(Config{Mode: mode}, st, gw, rec, logx.Nop()),
		st:  st,
		gw:  gw,
		rec: rec,
		out: &recorder{},
	}
}

var alice = Key{OwnerID: 1001, ChatID: 1001}

func (h *harness) text(t *testing.T, key Key, s string) {
	t.Helper()
	if err := h.m.Handle(context.Background(), key, Input{Text: s}, h.out); err != nil {
		t.Fatalf("Handle(%q): %v", s, err)
	}
}

func (h *harness) press(t *testing.T, key Key, action, value string) {
	t.Helper()
	if err := h.m.Handle(context.Background(), key, Input{Action: action, Value: value}, h.out); err != nil {
		t.Fatalf("Handle(%s:%s): %v", action, value, err)
	}
}

func (h *harness) state(key Key) State {
	s, ok := h.m.Session(key)
	if !ok {
		return Idle
	}
	return s.State
}

// toHour drives a fresh freetext draft up to AwaitingHour.
func (h *harness) toHour(t *testing.T, key Key) {
	t.Helper()
	if err := h.m.Start(context.Background(), key, h.out); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.press(t, key, ActionMenu, MenuScheduleOther)
	h.text(t, key, "Standup reminder")
	h.text(t, key, "Monday")
}

func TestEndToEndFreeText(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.toHour(t, alice)
	if got := h.state(alice); got != AwaitingHour {
		t.Fatalf("state = %v, want AwaitingHour", got)
	}
	h.text(t, alice, "9")
	h.text(t, alice, "0")
	if got := h.state(alice); got != AwaitingTarget {
		t.Fatalf("state = %v, want AwaitingTarget", got)
	}
	h.text(t, alice, "555")

	if got := h.state(alice); got != Idle {
		t.Fatalf("state = %v, want Idle", got)
	}
	last := h.out.last().Text
	if !strings.Contains(last, "Monday") || !strings.Contains(last, "09:00") || !strings.Contains(last, "Custom") {
		t.Fatalf("confirmation = %q", last)
	}
	defs, err := h.st.ListByOwner(context.Background(), alice.OwnerID)
	if err != nil || len(defs) != 1 {
		t.Fatalf("ListByOwner = %v, %v; want one definition", defs, err)
	}
	d := defs[0]
	if d.Body != "Standup reminder" || d.Day != schedule.Monday || d.Hour != 9 || d.Minute != 0 || d.TargetID != "555" {
		t.Fatalf("definition = %+v", d)
	}
	if ids := h.rec.ActiveIDs(); len(ids) != 1 || ids[0] != d.ID {
		t.Fatalf("ActiveIDs = %v, want [%d]", ids, d.ID)
	}
	if got := h.gw.count(); got != 1 {
		t.Fatalf("test sends = %d, want 1", got)
	}
}

func TestHourOutOfRangeLeavesSessionUnchanged(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.toHour(t, alice)
	before, _ := h.m.Session(alice)

	for _, in := range []string{"-1", "24", "99", "abc", ""} {
		h.text(t, alice, in)
		after, _ := h.m.Session(alice)
		if after != before {
			t.Fatalf("after %q session = %+v, want %+v", in, after, before)
		}
		if got := h.out.last().Text; !strings.Contains(got, "between 0 and 23") {
			t.Fatalf("after %q reply = %q", in, got)
		}
	}
}

func TestMinuteBounds(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"60", "-1", "x"} {
		h := newHarness(t, ModeFreeText)
		h.toHour(t, alice)
		h.text(t, alice, "9")
		h.text(t, alice, in)
		if got := h.state(alice); got != AwaitingMinute {
			t.Fatalf("minute %q: state = %v, want AwaitingMinute", in, got)
		}
	}
}

func TestEveryMinuteIsStored(t *testing.T) {
	t.Parallel()

	for m := 0; m <= 59; m++ {
		h := newHarness(t, ModeFreeText)
		h.toHour(t, alice)
		h.text(t, alice, "9")
		h.text(t, alice, strconv.Itoa(m))
		sess, ok := h.m.Session(alice)
		if !ok || sess.State != AwaitingTarget || sess.Minute != m {
			t.Fatalf("minute %d: session = %+v, %v; want AwaitingTarget with Minute %d", m, sess, ok, m)
		}
	}
}

func TestEmptyBodyReprompts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	_ = h.m.Start(context.Background(), alice, h.out)
	h.press(t, alice, ActionMenu, MenuScheduleOther)
	before, _ := h.m.Session(alice)

	for _, in := range []string{"", "   ", "\n\t"} {
		h.text(t, alice, in)
		after, _ := h.m.Session(alice)
		if after != before || after.State != AwaitingBody {
			t.Fatalf("after %q session = %+v, want %+v", in, after, before)
		}
		if got := h.out.last().Text; got != textEmptyBody {
			t.Fatalf("after %q reply = %q, want %q", in, got, textEmptyBody)
		}
	}
}

func TestFailedTestThenYes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ModeFreeText)
	h.gw.err = &schedule.DeliveryError{Detail: "chat not found"}
	h.toHour(t, alice)
	h.text(t, alice, "9")
	h.text(t, alice, "30")
	h.text(t, alice, "-100200")

	sess, ok := h.m.Session(alice)
	if !ok || sess.State != AwaitingTarget || sess.PendingID == 0 {
		t.Fatalf("session = %+v, %v; want pending in AwaitingTarget", sess, ok)
	}
	if got := h.out.last().Text; !strings.Contains(got, "chat not found") || !strings.Contains(got, "'yes'") {
		t.Fatalf("failure reply = %q", got)
	}
	if _, err := h.st.Get(ctx, sess.PendingID); err != nil {
		t.Fatalf("pending row missing: %v", err)
	}
	if ids := h.rec.ActiveIDs(); len(ids) != 0 {
		t.Fatalf("ActiveIDs = %v before confirmation", ids)
	}

	h.text(t, alice, "YES")
	if got := h.gw.count(); got != 1 {
		t.Fatalf("sends = %d, want 1 (no second test)", got)
	}
	if ids := h.rec.ActiveIDs(); len(ids) != 1 || ids[0] != sess.PendingID {
		t.Fatalf("ActiveIDs = %v, want [%d]", ids, sess.PendingID)
	}
	if got := h.state(alice); got != Idle {
		t.Fatalf("state = %v, want Idle", got)
	}
}

func TestYesWithoutPendingReprompts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.toHour(t, alice)
	h.text(t, alice, "9")
	h.text(t, alice, "0")
	h.text(t, alice, "yes")
	if got := h.state(alice); got != AwaitingTarget {
		t.Fatalf("state = %v, want AwaitingTarget", got)
	}
	if got := h.out.last().Text; got != textNoTarget {
		t.Fatalf("reply = %q", got)
	}
	if got := h.gw.count(); got != 0 {
		t.Fatalf("sends = %d, want 0", got)
	}
}

func TestSelfTargetUsesOwner(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	_ = h.m.Start(context.Background(), alice, h.out)
	h.press(t, alice, ActionMenu, MenuScheduleSelf)
	h.text(t, alice, "Water plants")
	h.text(t, alice, "6")
	h.text(t, alice, "18")
	h.text(t, alice, "45")
	h.text(t, alice, "ok")

	defs, _ := h.st.ListByOwner(context.Background(), alice.OwnerID)
	if len(defs) != 1 || defs[0].TargetID != "1001" || defs[0].TargetLabel != schedule.LabelSelf || defs[0].Day != schedule.Sunday {
		t.Fatalf("definitions = %+v", defs)
	}
}

func TestMenuModeCollectsTimeWithButtons(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeMenu)
	_ = h.m.Start(context.Background(), alice, h.out)
	h.press(t, alice, ActionMenu, MenuScheduleOther)
	h.text(t, alice, "Standup reminder")
	h.press(t, alice, ActionDay, "0")
	if got := h.state(alice); got != AwaitingDay {
		t.Fatalf("state after day = %v, want AwaitingDay", got)
	}
	if kb := h.out.last().Keyboard; len(kb) == 0 || kb[0][0].Action != ActionHour {
		t.Fatalf("expected hour grid, got %+v", kb)
	}
	h.press(t, alice, ActionHour, "9")
	if kb := h.out.last().Keyboard; len(kb) == 0 || kb[0][0].Action != ActionMinute {
		t.Fatalf("expected minute grid, got %+v", kb)
	}
	h.press(t, alice, ActionMinute, "15")
	if got := h.state(alice); got != AwaitingTarget {
		t.Fatalf("state = %v, want AwaitingTarget", got)
	}
	h.text(t, alice, "555")
	defs, _ := h.st.ListByOwner(context.Background(), alice.OwnerID)
	if len(defs) != 1 || defs[0].Hour != 9 || defs[0].Minute != 15 {
		t.Fatalf("definitions = %+v", defs)
	}
}

func TestCancelAndRestartDiscardDraft(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.toHour(t, alice)
	if err := h.m.Cancel(context.Background(), alice, h.out); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := h.state(alice); got != Idle {
		t.Fatalf("state after cancel = %v", got)
	}
	if got := h.out.last().Text; got != textCancelled {
		t.Fatalf("reply = %q", got)
	}

	h.toHour(t, alice)
	_ = h.m.Start(context.Background(), alice, h.out)
	if got := h.state(alice); got != Idle {
		t.Fatalf("state after restart = %v", got)
	}
}

func TestSessionsAreIsolatedPerKey(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	bob := Key{OwnerID: 2002, ChatID: 2002}
	h.toHour(t, alice)
	_ = h.m.Start(context.Background(), bob, h.out)
	h.press(t, bob, ActionMenu, MenuScheduleOther)

	if got := h.state(alice); got != AwaitingHour {
		t.Fatalf("alice state = %v", got)
	}
	if got := h.state(bob); got != AwaitingBody {
		t.Fatalf("bob state = %v", got)
	}
}

func TestIdleTextIsIgnoredAndStaleButtonsExpire(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.text(t, alice, "hello")
	if n := len(h.out.texts()); n != 0 {
		t.Fatalf("replies = %d, want 0", n)
	}
	h.press(t, alice, ActionDay, "2")
	if got := h.out.last().Text; got != textExpired {
		t.Fatalf("reply = %q", got)
	}
}

type failingStore struct{ Store }

func (failingStore) Create(context.Context, schedule.Definition) (int64, error) {
	return 0, errors.New("disk full")
}

func TestStoreFailureKeepsSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.m.store = failingStore{Store: h.st}
	h.toHour(t, alice)
	h.text(t, alice, "9")
	h.text(t, alice, "0")
	before, _ := h.m.Session(alice)

	err := h.m.Handle(context.Background(), alice, Input{Text: "555"}, h.out)
	if err == nil {
		t.Fatalf("Handle error = nil, want persist failure")
	}
	after, _ := h.m.Session(alice)
	if after != before {
		t.Fatalf("session = %+v, want %+v", after, before)
	}
	if got := h.gw.count(); got != 0 {
		t.Fatalf("sends = %d, want 0", got)
	}
}

func TestMenuList(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	_ = h.m.Start(context.Background(), alice, h.out)
	h.press(t, alice, ActionMenu, MenuList)
	if got := h.out.last(); got.Text != "You don't have any scheduled messages." || !got.Replace {
		t.Fatalf("reply = %+v", got)
	}
}

func TestSelfTargetFailedTestThenYes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ModeFreeText)
	h.gw.err = &schedule.DeliveryError{Detail: "bot was blocked by the user"}
	_ = h.m.Start(ctx, alice, h.out)
	h.press(t, alice, ActionMenu, MenuScheduleSelf)
	h.text(t, alice, "Water plants")
	h.text(t, alice, "6")
	h.text(t, alice, "18")
	h.text(t, alice, "45")
	h.text(t, alice, "ok")

	sess, ok := h.m.Session(alice)
	if !ok || sess.PendingID == 0 {
		t.Fatalf("session = %+v, %v; want pending", sess, ok)
	}
	h.text(t, alice, "yes")

	if got := h.gw.count(); got != 1 {
		t.Fatalf("sends = %d, want 1 (no second test)", got)
	}
	defs, _ := h.st.ListByOwner(ctx, alice.OwnerID)
	if len(defs) != 1 {
		t.Fatalf("rows = %d, want 1", len(defs))
	}
	if ids := h.rec.ActiveIDs(); len(ids) != 1 || ids[0] != sess.PendingID {
		t.Fatalf("ActiveIDs = %v, want [%d]", ids, sess.PendingID)
	}
	if got := h.state(alice); got != Idle {
		t.Fatalf("state = %v, want Idle", got)
	}
}

// flakyGateway fails the first send and accepts the rest.
type flakyGateway struct {
	fakeGateway
	calls int
}

func (g *flakyGateway) Send(ctx context.Context, to, text string) error {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		return &schedule.DeliveryError{Detail: "chat not found"}
	}
	return g.fakeGateway.Send(ctx, to, text)
}

func TestNewTargetAfterFailedTestCommitsAgain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, ModeFreeText)
	gw := &flakyGateway{}
	h.m.gateway = gw
	h.toHour(t, alice)
	h.text(t, alice, "9")
	h.text(t, alice, "30")
	h.text(t, alice, "-100200")

	first, ok := h.m.Session(alice)
	if !ok || first.PendingID == 0 {
		t.Fatalf("session = %+v, %v; want pending", first, ok)
	}
	h.text(t, alice, "555")

	if got := h.state(alice); got != Idle {
		t.Fatalf("state = %v, want Idle", got)
	}
	defs, _ := h.st.ListByOwner(ctx, alice.OwnerID)
	if len(defs) != 2 {
		t.Fatalf("rows = %d, want 2", len(defs))
	}
	second := defs[1]
	if second.TargetID != "555" || second.Body != "Standup reminder" || second.Hour != 9 || second.Minute != 30 {
		t.Fatalf("second definition = %+v", second)
	}
	if ids := h.rec.ActiveIDs(); len(ids) != 1 || ids[0] != second.ID {
		t.Fatalf("ActiveIDs = %v, want [%d]", ids, second.ID)
	}
}

// deadlineResponder drops replies whose context is already done, like a
// transport would.
type deadlineResponder struct{ recorder }

func (r *deadlineResponder) Respond(ctx context.Context, resp Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.recorder.Respond(ctx, resp)
}

type slowGateway struct{}

func (slowGateway) Send(ctx context.Context, to, text string) error {
	<-ctx.Done()
	return &schedule.DeliveryError{Detail: "timed out", Err: ctx.Err()}
}

func TestFailureReplySurvivesTurnDeadline(t *testing.T) {
	t.Parallel()

	h := newHarness(t, ModeFreeText)
	h.m.gateway = slowGateway{}
	h.toHour(t, alice)
	h.text(t, alice, "9")
	h.text(t, alice, "0")

	out := &deadlineResponder{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.m.Handle(ctx, alice, Input{Text: "555"}, out); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := out.last().Text; !strings.Contains(got, "timed out") || !strings.Contains(got, "'yes'") {
		t.Fatalf("last reply = %q, want the test failure guidance", got)
	}
	if sess, ok := h.m.Session(alice); !ok || sess.PendingID == 0 {
		t.Fatalf("session = %+v, %v; want pending", sess, ok)
	}
}
