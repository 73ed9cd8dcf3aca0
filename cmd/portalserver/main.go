package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/etherportal/portal-api/pkg/cmdrunner"
	"github.com/etherportal/portal-api/pkg/config"
	"github.com/etherportal/portal-api/pkg/portal"
)

func main() {
	var configFile string

	app := &cli.App{
		Name:  "ether-portal-api",
		Usage: "A lightweight REST gateway that proxies portal requests to the OpenClaw CLI.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				Destination: &configFile,
			},
		},
		Action: func(*cli.Context) error {
			return run(configFile)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.Logging)
	log.Infof("server config: %v", cfg)

	runner, err := cmdrunner.New(cfg.Tool.Command, cfg.Tool.Timeout())
	if err != nil {
		return fmt.Errorf("tool command: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: portal.NewServer(runner, cfg).Handler(),
	}

	go func() {
		log.Printf("ether-portal-api listening on %s", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Let systemd release units ordered after us.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("Failed to notify systemd of readiness: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	if err := srv.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
