// Command alphagate is the entry point for the signal gateway. It loads
// configuration, validates it, wires dependencies, sets up signal handling and
// serves the webhook and admin API until interrupted.
//
// Usage:
//
//	alphagate [-config config.toml]
//	alphagate encrypt-credentials [-config config.toml] -out credentials.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/alphagate/internal/app"
	"github.com/alanyoungcy/alphagate/internal/config"
	"github.com/alanyoungcy/alphagate/internal/crypto"
)

const defaultConfigPath = "config.toml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "encrypt-credentials" {
		if err := encryptCredentials(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt-credentials: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	path := resolveConfigPath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("alphagate starting",
		slog.String("config", path),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error",
			slog.String("error", err.Error()),
		)
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		application.Close()
		os.Exit(1)
	}

	logger.Info("alphagate stopped")
}

// resolveConfigPath lets the gateway run from environment variables alone when
// the default config file is absent. An explicitly named file must exist.
func resolveConfigPath(path string) string {
	if path != defaultConfigPath {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// encryptCredentials writes the venue credentials from the loaded
// configuration (file, .env or environment) to an encrypted file that
// venue.encrypted_credentials_path can point at.
func encryptCredentials(args []string) error {
	fs := flag.NewFlagSet("encrypt-credentials", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	out := fs.String("out", "credentials.enc.json", "output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		return err
	}
	if cfg.Venue.CredentialsPassword == "" {
		return errors.New("venue.credentials_password (ALPHAGATE_VENUE_CREDENTIALS_PASSWORD) must be set")
	}

	data, err := crypto.EncryptCredentials(crypto.Credentials{
		APIKey:     cfg.Venue.APIKey,
		SecretKey:  cfg.Venue.SecretKey,
		Passphrase: cfg.Venue.Passphrase,
	}, cfg.Venue.CredentialsPassword)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("wrote encrypted credentials to %s\n", *out)
	return nil
}
