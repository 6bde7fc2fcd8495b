package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"aurora/internal/admin"
	"aurora/internal/config"
	"aurora/internal/logging"
	"aurora/internal/recordsync"
	"aurora/internal/storage"
	v "aurora/internal/version"
	"aurora/pkg/cmd"
)

func main() {
	admin.Register(cmd.DefaultRegistry)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := logging.Setup(*cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	c, ok := cmd.DefaultRegistry.Get(flag.Arg(0))
	if !ok {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg, logging.WithComponent("storage"))
	if err != nil {
		log.WithError(err).Fatal("failed to open record store")
	}

	env := &admin.Env{
		Records: recordsync.New(store, logging.WithComponent("recordsync")),
		Out:     os.Stdout,
	}
	runErr := c.Run(ctx, &cmd.Invocation{Args: flag.Args()[1:], Data: env})

	if err := store.Close(ctx); err != nil {
		log.WithError(err).Warn("failed to close record store")
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		if errors.Is(runErr, admin.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s admin CLI\n\nCommands:\n", v.AppName)
	for _, c := range cmd.DefaultRegistry.GetAll() {
		fmt.Fprintf(os.Stderr, "  %s\n", c.Description())
	}
}
