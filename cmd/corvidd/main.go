package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/agentproc"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/api"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/config"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/eventbus"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/scheduler"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/storage"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/transport/telegram"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (json or yaml)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	bus := eventbus.New(log.With(logx.String("comp", "eventbus")))

	col := scheduler.Collaborators{}
	if cfg.Telegram != nil {
		bridge, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			AlertChatID: cfg.Telegram.AlertChatID,
			RatePerSec:  cfg.Telegram.RatePerSec,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return fmt.Errorf("telegram bridge: %w", err)
		}
		col.Messenger = bridge
		col.Alerter = bridge
	}
	if cfg.Runtime != nil {
		col.Runtime = agentproc.New(agentproc.Config{
			Command: cfg.Runtime.Command,
			Args:    cfg.Runtime.Args,
			WorkDir: cfg.Runtime.WorkDir,
		}, log.With(logx.String("comp", "agentproc")))
	}

	tick, err := config.ParseDurationOrDefault("scheduler.tick_interval", cfg.Scheduler.TickInterval, 30*time.Second)
	if err != nil {
		return err
	}
	window, err := config.ParseDurationOrDefault("scheduler.failure_window", cfg.Scheduler.FailureWindow, 24*time.Hour)
	if err != nil {
		return err
	}
	svc := scheduler.New(scheduler.Config{
		TickInterval:  tick,
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		FailureWindow: window,
	}, store, bus, col, log.With(logx.String("comp", "scheduler")))

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer svc.Stop()

	// Log every lifecycle event; the bus also feeds external subscribers.
	unsub := bus.OnEvent(func(e eventbus.Event) {
		log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
	})
	defer unsub()

	var apiSrv *api.Server
	apiErr := make(chan error, 1)
	if cfg.API.Enabled {
		apiSrv = api.New(api.Config{Addr: cfg.API.Addr}, svc, log.With(logx.String("comp", "api")))
		go func() { apiErr <- apiSrv.Start() }()
	}

	// Hot-reload only touches logging; cadence and storage need a restart.
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)
	go func() {
		for next := range updates {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.Logging.File.Path,
				},
			})
		}
	}()
	go func() { _ = mgr.Watch(ctx) }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("corvidd started", logx.String("config", cfgPath))

	select {
	case <-ctx.Done():
	case err := <-apiErr:
		if err != nil {
			log.Error("admin api failed", logx.Err(err))
		}
		cancel()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if apiSrv != nil {
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = apiSrv.Shutdown(shCtx)
	}
	return nil
}
