// session-store inspects the persisted session in the configured store.
//
// Usage:
//
//	go run ./scripts/session-store show
//	go run ./scripts/session-store profile --path=profile/
//	go run ./scripts/session-store logout
//	go run ./scripts/session-store delete
//
// The store is selected by BANKAPI_SESSION_STORE (file or redis; a memory
// store never holds anything across runs).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/grez-lucas/bankapi/internal/api"
	"github.com/grez-lucas/bankapi/internal/api/store"
	"github.com/grez-lucas/bankapi/internal/config"
	"github.com/grez-lucas/bankapi/internal/logging"
)

func main() {
	path := pflag.String("path", "profile/", "Endpoint requested by the profile command")
	timeout := pflag.Duration("timeout", 30*time.Second, "Overall timeout")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: session-store [flags] show|profile|logout|delete")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	log := logging.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	sessions, closer, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("Failed to open session store", "store", cfg.SessionStore, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(ctx, cfg, sessions, pflag.Arg(0), *path); err != nil {
		if errors.Is(err, api.ErrSessionNotFound) {
			log.Info("No stored session", "store", cfg.SessionStore)
			os.Exit(3)
		}
		log.Error("Command failed", "command", pflag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sessions api.SessionStore, command, path string) error {
	switch command {
	case "show":
		data, err := sessions.Load(ctx, api.AuthSessionKey)
		if err != nil {
			return err
		}
		record, err := api.ParseSessionRecord(data)
		if err != nil {
			return err
		}
		// The key grants access to the account.
		record.AuthorizationKey = "[REDACTED]"
		return printJSON(record)

	case "profile":
		auth, err := restore(ctx, cfg, sessions)
		if err != nil {
			return err
		}
		result, err := auth.Get(ctx, path, nil)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "logout":
		auth, err := restore(ctx, cfg, sessions)
		if err != nil {
			return err
		}
		result, err := auth.Terminate(ctx)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "delete":
		if err := sessions.Delete(ctx, api.AuthSessionKey); err != nil {
			return err
		}
		return sessions.Delete(ctx, api.CookieJarSessionKey)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func restore(ctx context.Context, cfg *config.Config, sessions api.SessionStore) (*api.Auth, error) {
	return api.Restore(ctx, sessions,
		api.WithConfig(cfg),
		api.WithLogger(logging.Logger),
	)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
