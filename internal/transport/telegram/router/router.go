// Package router turns adapter updates into command, callback and
// conversation handler calls.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "schedbot/internal/transport"
	logx "schedbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Hidden keeps the command out of the platform menu and /help.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

// CallbackRoute handles inline-button data of the form "scope:action:payload".
type CallbackRoute struct {
	Scope   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	// Action and Payload are set for callbacks.
	Action  string
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
	Owners  []int64
}

// Reply sends plain text to the request chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (r *Request) IsOwner() bool { return isOwner(r.FromID, r.Owners) }

// Message returns the message update, or nil for callbacks.
func (r *Request) Message() *kit.Message { return r.Update.Message }

// Callback returns the callback update, or nil for messages.
func (r *Request) Callback() *kit.Callback { return r.Update.Callback }

type Options struct {
	Owners []int64
	// Workers is the number of ordered lanes. Updates of one (chat, user)
	// pair always land on the same lane.
	Workers   int
	QueueSize int
	// ChatRate and ChatBurst bound inbound updates per chat. Zero disables it.
	ChatRate       float64
	ChatBurst      int
	DefaultTimeout time.Duration
}

type Router struct {
	mu        sync.RWMutex
	cmds      map[string]*Command
	menu      []Command
	callbacks map[string]CallbackRoute
	fallback  HandlerFunc
	owners    []int64

	opt     Options
	log     logx.Logger
	adapter kit.Adapter

	limMu    sync.Mutex
	limiters map[int64]*chatLimiter
}

type chatLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func New(log logx.Logger, adapter kit.Adapter, opt Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = 64
	}
	if opt.ChatRate > 0 && opt.ChatBurst <= 0 {
		opt.ChatBurst = 5
	}
	return &Router{
		cmds:      map[string]*Command{},
		callbacks: map[string]CallbackRoute{},
		owners:    append([]int64(nil), opt.Owners...),
		opt:       opt,
		log:       log.With(logx.String("comp", "telegram.router")),
		adapter:   adapter,
		limiters:  map[int64]*chatLimiter{},
	}
}

// SetOwners replaces the operator list. Safe during hot reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) ownersSnapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int64(nil), r.owners...)
}

// SetFallback handles every message that is not a command.
func (r *Router) SetFallback(h HandlerFunc) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// SetRegistry installs commands and callback routes, adds /help and publishes
// the command menu when the adapter supports it.
func (r *Router) SetRegistry(ctx context.Context, cmds []Command, cbs []CallbackRoute) {
	cmds = append(cmds, Command{
		Name:        "help",
		Description: "Show available commands",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, r.helpText(req.IsOwner()))
		},
	})

	byName := map[string]*Command{}
	menu := make([]Command, 0, len(cmds))
	for i := range cmds {
		c := cmds[i]
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		byName[name] = &c
		for _, a := range c.Aliases {
			if a = sanitizeCommand(a); a != "" {
				if _, taken := byName[a]; !taken {
					byName[a] = &c
				}
			}
		}
		menu = append(menu, c)
	}

	routes := map[string]CallbackRoute{}
	for _, cb := range cbs {
		if cb.Handle == nil || strings.TrimSpace(cb.Scope) == "" || strings.TrimSpace(cb.Action) == "" {
			continue
		}
		routes[callbackKey(cb.Scope, cb.Action)] = cb
	}

	r.mu.Lock()
	r.cmds, r.menu, r.callbacks = byName, menu, routes
	r.mu.Unlock()

	if up, ok := r.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(mctx, buildMenu(menu)); err != nil {
			r.log.Warn("command menu update failed", logx.Err(err))
		}
	}
}

func callbackKey(scope, action string) string {
	return strings.TrimSpace(scope) + ":" + strings.TrimSpace(action)
}

// allow applies the per-chat inbound rate limit.
func (r *Router) allow(chatID int64, now time.Time) bool {
	if r.opt.ChatRate <= 0 {
		return true
	}
	r.limMu.Lock()
	defer r.limMu.Unlock()
	cl := r.limiters[chatID]
	if cl == nil {
		cl = &chatLimiter{lim: rate.NewLimiter(rate.Limit(r.opt.ChatRate), r.opt.ChatBurst)}
		r.limiters[chatID] = cl
	}
	cl.seen = now
	return cl.lim.AllowN(now, 1)
}

func (r *Router) pruneLimiters(now time.Time, idle time.Duration) int {
	r.limMu.Lock()
	defer r.limMu.Unlock()
	n := 0
	for id, cl := range r.limiters {
		if now.Sub(cl.seen) > idle {
			delete(r.limiters, id)
			n++
		}
	}
	return n
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
