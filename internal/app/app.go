package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/clock"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/config"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/reminder"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/scheduler"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/seed"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/store"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/telegram"
)

// pollTimeout is the long-polling timeout for getUpdates, in seconds.
const pollTimeout = 30

type App struct {
	cfg     config.Config
	log     *zap.Logger
	loc     *time.Location
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	// Every request, including a long poll, ends within the client timeout,
	// so sends abandoned by a reminder deadline do not linger.
	client := &http.Client{Timeout: pollTimeout*time.Second + cfg.SendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, loc: loc, bot: bot, httpSrv: srv}, nil
}

// openStore picks the configured backend.
func openStore(ctx context.Context, cfg config.Config) (store.Repo, error) {
	if cfg.StoreBackend == "memory" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(ctx, cfg.DBPath)
}

// importSchedule loads the YAML schedule file into the store.
func (a *App) importSchedule(ctx context.Context) {
	s, err := seed.Load(a.cfg.ScheduleFile)
	if err != nil {
		a.log.Error("schedule file rejected", zap.String("path", a.cfg.ScheduleFile), zap.Error(err))
		return
	}
	n, err := seed.Apply(ctx, a.repo, s)
	if err != nil {
		a.log.Error("schedule import failed", zap.Error(err))
		return
	}
	a.log.Info("schedule imported",
		zap.String("path", a.cfg.ScheduleFile),
		zap.Int("users", len(s.Users)),
		zap.Int("lessons", n),
	)
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting lessons bot",
		zap.String("store", a.cfg.StoreBackend),
		zap.String("tz", a.loc.String()),
		zap.Duration("scanInterval", a.cfg.ScanInterval),
		zap.String("http", a.cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, a.cfg)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = repo
	defer func() { _ = a.repo.Close() }()
	a.log.Info("store ready")

	clk := clock.InZone(a.loc)
	a.router = telegram.NewRouter(a.bot, a.log, a.repo, clk, a.cfg.IsAdmin)
	if err := a.router.RegisterCommands(a.cfg.AdminIDs...); err != nil {
		a.log.Warn("set commands failed", zap.Error(err))
	}

	disp := reminder.New(a.repo, a.repo, a.router, clk, a.log, reminder.Config{
		Window: a.cfg.ScanInterval,
		Retry: reminder.RetryPolicy{
			Attempts:       a.cfg.SendAttempts,
			InitialBackoff: a.cfg.SendBackoff,
			MaxBackoff:     a.cfg.SendBackoffMax,
			Timeout:        a.cfg.SendTimeout,
		},
		RatePerSec: a.cfg.SendRate,
	})
	sched, err := scheduler.New(disp, a.log, scheduler.Config{
		ScanInterval: a.cfg.ScanInterval,
		PurgeSpec:    a.cfg.PurgeSpec,
		Location:     a.loc,
	})
	if err != nil {
		return err
	}

	if a.cfg.ScheduleFile != "" {
		a.importSchedule(ctx)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	if a.cfg.ScheduleFile != "" && a.cfg.WatchScheduleFile {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := seed.Watch(ctx, a.cfg.ScheduleFile, a.log, a.importSchedule); err != nil {
				a.log.Error("schedule watcher stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			// Scheduler and watcher exit on ctx; wait so the store is closed last.
			wg.Wait()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
