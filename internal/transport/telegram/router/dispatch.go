package router

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	rtsup "schedbot/internal/runtime/supervisor"
	kit "schedbot/internal/transport"
	logx "schedbot/pkg/logx"
	"schedbot/pkg/tgui"
)

const textUnknownCommand = "Unknown command. Try /help"

// Run consumes updates until ctx is done or the channel closes. Each update
// is routed to a lane chosen by (chat, user) so turns of one conversation
// never run concurrently or out of order.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))

	lanes := make([]chan func(context.Context), r.opt.Workers)
	for i := range lanes {
		lane := make(chan func(context.Context), r.opt.QueueSize)
		lanes[i] = lane
		sup.GoRestart("lane."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-lane:
					job(c)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	sup.Go0("limiter.prune", func(c context.Context) {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case now := <-t.C:
				if n := r.pruneLimiters(now, 10*time.Minute); n > 0 {
					r.log.Debug("pruned chat limiters", logx.Int("count", n))
				}
			}
		}
	})
	r.log.Info("router started", logx.Int("lanes", len(lanes)), logx.Int("lane_queue", r.opt.QueueSize))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			job, key, ok := r.prepare(ctx, up)
			if !ok {
				continue
			}
			lane := lanes[laneIndex(key, len(lanes))]
			select {
			case lane <- job:
			default:
				r.log.Warn("lane full, update dropped", logx.Uint64("lane_key", key))
				r.busy(ctx, up)
			}
		}
	}
}

func laneIndex(key uint64, n int) int { return int(key % uint64(n)) }

func laneKey(chatID, fromID int64) uint64 {
	h := fnv.New64a()
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(chatID >> (8 * i))
		b[8+i] = byte(fromID >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return h.Sum64()
}

// Serve routes and runs one update on the calling goroutine.
func (r *Router) Serve(ctx context.Context, up kit.Update) {
	if job, _, ok := r.prepare(ctx, up); ok {
		job(ctx)
	}
}

func (r *Router) busy(ctx context.Context, up kit.Update) {
	switch {
	case up.Callback != nil:
		_ = r.adapter.AnswerCallback(ctx, up.Callback.ID, "busy, try again")
	case up.Message != nil:
		_, _ = r.adapter.SendText(ctx, kit.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}, "Busy, try again in a moment.", nil)
	}
}

// prepare resolves the handler for up. ok is false when the update is
// dropped (rate limited, unknown callback, nothing to do).
func (r *Router) prepare(ctx context.Context, up kit.Update) (job func(context.Context), key uint64, ok bool) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return nil, 0, false
		}
		return r.prepareMessage(ctx, up)
	case kit.UpdateCallback:
		if up.Callback == nil {
			return nil, 0, false
		}
		return r.prepareCallback(ctx, up)
	}
	return nil, 0, false
}

func (r *Router) prepareMessage(ctx context.Context, up kit.Update) (func(context.Context), uint64, bool) {
	msg := up.Message
	if !r.allow(msg.ChatID, time.Now()) {
		r.log.Debug("message rate limited", logx.Int64("chat_id", msg.ChatID))
		return nil, 0, false
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	key := laneKey(msg.ChatID, msg.FromID)
	owners := r.ownersSnapshot()

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") || msg.ForwardedFrom != "" {
		r.mu.RLock()
		fb := r.fallback
		r.mu.RUnlock()
		if fb == nil {
			return nil, 0, false
		}
		req := r.newRequest(up, chat, msg.FromID, "message", owners)
		return r.wrap(fb, req, r.opt.DefaultTimeout), key, true
	}

	name, args := splitCommand(text)
	r.mu.RLock()
	cmd := r.cmds[name]
	r.mu.RUnlock()
	if cmd == nil {
		return func(c context.Context) {
			_, _ = r.adapter.SendText(c, chat, textUnknownCommand, nil)
		}, key, true
	}
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, owners) {
		return func(c context.Context) {
			_, _ = r.adapter.SendText(c, chat, "This command is restricted to bot operators.", nil)
		}, key, true
	}

	req := r.newRequest(up, chat, msg.FromID, cmd.Name, owners)
	req.Args = args
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.opt.DefaultTimeout
	}
	return r.wrap(cmd.Handle, req, timeout), key, true
}

func (r *Router) prepareCallback(ctx context.Context, up kit.Update) (func(context.Context), uint64, bool) {
	cb := up.Callback
	scope, action, payload := tgui.ParseData(cb.Data)
	r.mu.RLock()
	route, found := r.callbacks[callbackKey(scope, action)]
	r.mu.RUnlock()
	if !found {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return nil, 0, false
	}
	owners := r.ownersSnapshot()
	if route.Access == AccessOwnerOnly && !isOwner(cb.FromID, owners) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return nil, 0, false
	}

	req := r.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, "cb:"+scope+":"+action, owners)
	req.Action, req.Payload = action, payload
	timeout := route.Timeout
	if timeout <= 0 {
		timeout = r.opt.DefaultTimeout
	}
	run := r.wrap(route.Handle, req, timeout)
	return func(c context.Context) {
		run(c)
		// stops the client spinner
		_ = r.adapter.AnswerCallback(c, cb.ID, "")
	}, laneKey(cb.ChatID, cb.FromID), true
}

func (r *Router) newRequest(up kit.Update, chat kit.ChatTarget, from int64, command string, owners []int64) *Request {
	rid := uuid.NewString()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: command,
		ReqID:   rid,
		Adapter: r.adapter,
		Owners:  owners,
		Logger: r.log.With(
			logx.String("req_id", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", from),
			logx.String("cmd", command),
		),
	}
}

func (r *Router) wrap(h HandlerFunc, req *Request, timeout time.Duration) func(context.Context) {
	final := Chain(h,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWFailureReply(),
		MWTimeout(timeout),
	)
	return func(ctx context.Context) { _ = final(ctx, req) }
}

// splitCommand parses "/name@bot arg1 arg2" into the lower-cased name and args.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:]
}
