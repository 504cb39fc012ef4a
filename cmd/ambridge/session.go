package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kalambet/ambridge/internal/appstore"
	"github.com/kalambet/ambridge/internal/config"
	"github.com/kalambet/ambridge/internal/legacy"
	"github.com/kalambet/ambridge/internal/storage"
)

// session is everything a command needs to touch local state.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store
	legacy *legacy.FileStore
	facade *appstore.Facade
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if legacyFile != "" {
		cfg.Storage.LegacyFile = legacyFile
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	store, err := storage.Open(cfg.Storage.DataDir, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	leg, err := legacy.OpenFile(cfg.LegacyPath())
	if err != nil {
		store.Close()
		return nil, err
	}

	facade := appstore.New(store.Config(), store.AppStates(), leg,
		appstore.WithHashing(cfg.Secure.Iterations, cfg.Secure.OutputLength),
		appstore.WithLogger(logger),
	)
	return &session{cfg: cfg, logger: logger, store: store, legacy: leg, facade: facade}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// withSession opens a session for the duration of fn.
func withSession(fn func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd, s, args)
	}
}
