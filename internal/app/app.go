// Package app wires configuration, storage, the scheduler and the Telegram
// transport into one running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schedbot/internal/commands"
	"schedbot/internal/config"
	"schedbot/internal/conversation"
	"schedbot/internal/eventbus"
	"schedbot/internal/recurring"
	rtsup "schedbot/internal/runtime/supervisor"
	"schedbot/internal/storage"
	"schedbot/internal/task/engine"
	"schedbot/internal/task/scheduler"
	kit "schedbot/internal/transport"
	"schedbot/internal/transport/telegram/adapter"
	"schedbot/internal/transport/telegram/router"
	logx "schedbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	adapter *adapter.Adapter
	store   storage.Store
	bus     eventbus.Bus
	engine  *engine.Service
	sched   *scheduler.Service
	rec     *recurring.Service
	conv    *conversation.Machine
	router  *router.Router
	cmds    commands.Set

	sup     *rtsup.Supervisor
	updates chan kit.Update
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	adCfg, err := mapAdapter(cfg)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO")
	ad, err := adapter.New(adCfg, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))

	a, err := build(cfg, ad, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.cfgm, a.logs, a.adapter, a.log = cfgm, logSvc, ad, appLog
	return a, nil
}

// build creates the components that do not depend on the Telegram client.
// gateway and transport may be the same value.
func build(cfg *config.Config, gateway interface {
	kit.Adapter
	Send(ctx context.Context, destinationID, text string) error
}, log logx.Logger) (*App, error) {
	stCfg, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	fail := func(err error) (*App, error) {
		_ = store.Close()
		return nil, err
	}

	engCfg, err := mapEngine(cfg)
	if err != nil {
		return fail(err)
	}
	recCfg, err := mapRecurring(cfg)
	if err != nil {
		return fail(err)
	}
	convCfg, err := mapConversation(cfg)
	if err != nil {
		return fail(err)
	}
	rtOpt, err := mapRouter(cfg)
	if err != nil {
		return fail(err)
	}

	bus := eventbus.New()
	eng := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	sched := scheduler.New(mapScheduler(cfg), eng, log.With(logx.String("comp", "scheduler")), bus)
	rec := recurring.New(recCfg, store, gateway, sched, bus, log.With(logx.String("comp", "recurring")))
	conv := conversation.New(convCfg, store, gateway, rec, log)
	rt := router.New(log, gateway, rtOpt)
	cmds := commands.Build(commands.Deps{
		Machine:  conv,
		Surface:  commands.NewSurface(store, rec, log.With(logx.String("comp", "commands"))),
		Triggers: sched,
		Log:      log.With(logx.String("comp", "commands")),
	})
	rt.SetFallback(cmds.Fallback)

	return &App{
		log:     log.With(logx.String("comp", "app")),
		store:   store,
		bus:     bus,
		engine:  eng,
		sched:   sched,
		rec:     rec,
		conv:    conv,
		router:  rt,
		cmds:    cmds,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Done is closed when the app's run context ends, including on a fatal error.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		return nil
	}
	return a.sup.Context().Done()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	}

	a.engine.Start(c)
	if _, err := a.rec.RehydrateAll(c); err != nil {
		return fmt.Errorf("rehydrate definitions: %w", err)
	}
	if a.sched.Enabled() {
		a.sched.Start(c)
	} else {
		a.log.Warn("scheduler disabled; stored messages will not be delivered")
	}

	if a.adapter != nil {
		if err := a.adapter.Start(c, a.updates); err != nil {
			return err
		}
	}
	a.router.SetRegistry(c, a.cmds.Commands, a.cmds.Callbacks)
	a.sup.Go("router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			last := a.cfgm.Get()
			for {
				select {
				case <-c.Done():
					return
				case next, ok := <-sub:
					if !ok {
						return
					}
					// Coalesce bursts: keep only the latest config.
				drain:
					for {
						select {
						case newer := <-sub:
							if newer != nil {
								next = newer
							}
						default:
							break drain
						}
					}
					a.reload(c, last, next)
					last = next
				}
			}
		})
		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started",
		logx.String("mode", string(a.conv.Mode())),
		logx.Int("armed", len(a.rec.ActiveIDs())))
	return nil
}

func (a *App) logEvent(e eventbus.Event) {
	switch ev := e.Data.(type) {
	case recurring.DispatchEvent:
		if ev.OK {
			a.log.Debug("event", logx.String("type", e.Type), logx.Int64("id", ev.ID))
			return
		}
		a.log.Warn("event", logx.String("type", e.Type), logx.Int64("id", ev.ID), logx.String("err", ev.Error))
	default:
		a.log.Debug("event", logx.String("type", e.Type))
	}
}

// reload applies a validated config to the running components. Token and
// storage changes only take effect after a restart.
func (a *App) reload(ctx context.Context, prev, next *config.Config) {
	change := config.Diff(prev, next)
	if len(change.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(change.Sections, ","))}, change.Fields...)...)

	if change.Has("storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if prev != nil && prev.Telegram.Token != next.Telegram.Token {
		a.log.Warn("telegram token changed; restart required for changes to take effect")
	}

	if a.logs != nil {
		a.logs.Apply(mapLogging(next))
	}
	a.router.SetOwners(next.Telegram.OwnerUserIDs)
	if convCfg, err := mapConversation(next); err != nil {
		a.log.Warn("invalid conversation config; keeping previous", logx.Err(err))
	} else if convCfg.Mode != a.conv.Mode() {
		a.conv.SetMode(convCfg.Mode)
		a.log.Info("conversation mode changed", logx.String("mode", string(convCfg.Mode)))
	}

	prevSched := a.sched.Enabled()
	if engCfg, err := mapEngine(next); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, engCfg)
	}
	schedCfg := mapScheduler(next)
	a.sched.Apply(schedCfg)
	switch {
	case prevSched && !schedCfg.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !prevSched && schedCfg.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(change.Sections, ","))}, change.Fields...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 2*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	if a.adapter != nil {
		step("adapter", 2*time.Second, a.adapter.Stop)
	}
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
