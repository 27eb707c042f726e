// Package main is the entry point for the decalforge product customizer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/app"
	"github.com/Faultbox/decalforge/internal/config"
	"github.com/Faultbox/decalforge/internal/logger"
	"github.com/Faultbox/decalforge/internal/viewer"
)

// headlessFPS is the frame rate of the loop when no window paces it.
const headlessFPS = 60

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if path := config.WriteConfigPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	if err := initLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== decalforge ===", zap.String("product", cfg.Product.ID), zap.Bool("headless", cfg.Viewer.Headless))
	logger.Sugar.Debugf("Config: %+v", cfg)

	if cfg.Viewer.Headless {
		err = runHeadless(cfg)
	} else {
		err = runWindowed(cfg)
	}
	if err != nil {
		logger.Error("customizer stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("customizer closed normally")
}

func initLogging(cfg config.LoggingConfig) error {
	opts := logger.Options{Level: cfg.Level, Console: os.Stdout, JSON: cfg.Format == "json"}
	if cfg.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.LogFile)
	}
	return logger.Setup(opts)
}

func runHeadless(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if addr := a.APIAddr(); addr != "" {
		logger.Info("command API listening", zap.String("addr", addr))
	}
	fps := cfg.Viewer.FPSLimit
	if fps <= 0 {
		fps = headlessFPS
	}
	if err := a.Run(ctx, fps); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runWindowed(cfg *config.Config) error {
	v, err := viewer.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer v.Close()

	if addr := v.App().APIAddr(); addr != "" {
		logger.Info("command API listening", zap.String("addr", addr))
	}
	return v.Run()
}
