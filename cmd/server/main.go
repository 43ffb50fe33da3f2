package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"invoicer/internal/app"
	"invoicer/internal/config"
	"invoicer/internal/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "invoicer",
		Usage: "page shell server for the invoicing front end",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded over the process environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "port",
				Usage:   "listen port, overrides PORT",
				EnvVars: []string{"INVOICER_PORT"},
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	cfg := config.Load()
	if port := c.String("port"); port != "" {
		cfg.Port = port
	}

	log, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to construct application: %w", err)
	}
	defer application.Shutdown()

	log.Info("starting", zap.String("port", cfg.Port))
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	log.Info("shut down")
	return nil
}
