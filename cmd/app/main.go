package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/smartattend/auditlog/internal/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "auditlog",
		Usage: "Tamper-evident audit log service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./auditlog.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "chain-scope",
				Value:   "global",
				Sources: cli.EnvVars("AUDITLOG_CHAIN_SCOPE"),
				Usage:   "Chain scoping: global (one chain) or per-tenant",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("AUDITLOG_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-tenant",
				Value:   "default",
				Sources: cli.EnvVars("AUDITLOG_BOOTSTRAP_TENANT"),
				Usage:   "Tenant for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars("AUDITLOG_BOOTSTRAP_KEY_NAME"),
				Usage:   "Name for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-role",
				Value:   "auditor",
				Sources: cli.EnvVars("AUDITLOG_BOOTSTRAP_KEY_ROLE"),
				Usage:   "Role for bootstrap API key (service, auditor, member)",
			},
			&cli.StringFlag{
				Name:    "alert-webhook-url",
				Sources: cli.EnvVars("AUDITLOG_ALERT_WEBHOOK_URL"),
				Usage:   "Webhook target for integrity/immutability alerts",
			},
			&cli.StringFlag{
				Name:    "alert-webhook-secret",
				Sources: cli.EnvVars("AUDITLOG_ALERT_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for alert webhooks",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:               c.String("addr"),
				DBPath:             c.String("db-path"),
				ChainScopeMode:     c.String("chain-scope"),
				BootstrapAPIKey:    c.String("bootstrap-api-key"),
				BootstrapTenant:    c.String("bootstrap-tenant"),
				BootstrapKeyName:   c.String("bootstrap-key-name"),
				BootstrapKeyRole:   c.String("bootstrap-key-role"),
				AlertWebhookURL:    c.String("alert-webhook-url"),
				AlertWebhookSecret: c.String("alert-webhook-secret"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
