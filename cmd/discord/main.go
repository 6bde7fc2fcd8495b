package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"aurora/internal/config"
	"aurora/internal/discord"
	"aurora/internal/locale"
	"aurora/internal/logging"
	"aurora/internal/storage"
	v "aurora/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log, err := logging.Setup(*cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}
	log.WithField("build_date", v.BuildDate).Infof("starting %s bot", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg, logging.WithComponent("storage"))
	if err != nil {
		log.WithError(err).Fatal("failed to open record store")
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.WithError(err).Warn("failed to close record store")
		}
	}()

	locales, err := locale.Load(cfg.DefaultLocale)
	if err != nil {
		log.WithError(err).Fatal("failed to load locales")
	}

	bot, err := discord.New(cfg, store, locales, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create bot")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.WithField("signal", s.String()).Info("shutting down")
		cancel()
		if err := <-errCh; err != nil {
			log.WithError(err).Warn("discord session closed with error")
		}
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("discord bot error")
		}
		cancel()
	}

	log.Info("discord bot exited cleanly")
}
