package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/app"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/config"
	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	bot, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err), zap.String("tz", cfg.TZ))
	}

	if err := bot.Run(context.Background()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
