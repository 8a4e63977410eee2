package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thisisjab/rulezilla/config"
	"github.com/thisisjab/rulezilla/engine"
	"gopkg.in/yaml.v3"
)

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "./.config.yaml", "path to config file")
	flag.Parse()

	fileContent, err := os.ReadFile(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("cannot read config file content: %w", err))
	}

	var cfg config.Config
	if err := yaml.Unmarshal(fileContent, &cfg); err != nil {
		panic(fmt.Errorf("cannot parse config file: %w", err))
	}

	logger, err := cfg.ParseLogger()
	if err != nil {
		panic(fmt.Errorf("cannot create logger: %w", err))
	}

	st, err := cfg.ParseStorage()
	if err != nil {
		logger.Error("storage error.", "error", err)
		os.Exit(1)
	}

	engineCfg, err := cfg.ParseEngine(logger, st)
	if err != nil {
		logger.Error("cannot parse config file", "error", err)
		os.Exit(1)
	}

	if err := st.Connect(ctx); err != nil {
		logger.Error("cannot connect to storage.", "error", err)
		os.Exit(1)
	}
	defer st.Close(context.WithoutCancel(ctx)) //nolint:errcheck

	// Setup signal handling to catch Ctrl+C (SIGINT) or Terminate (SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run the engine in a separate goroutine so we can wait for signals
	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	// Create engine
	e, err := engine.New(*engineCfg, logger)
	if err != nil {
		logger.Error("engine error.", "error", err)
		return
	}

	// Run engine
	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("engine error.", "error", err)
	}

	logger.Info("engine stopped.")
}
