package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/app"
	"github.com/campuspay/student-portal/internal/credential"
	applog "github.com/campuspay/student-portal/internal/log"
	"github.com/campuspay/student-portal/internal/model"
	"github.com/campuspay/student-portal/internal/notify"
	"github.com/campuspay/student-portal/internal/payment"
	"github.com/campuspay/student-portal/internal/session"
	"github.com/campuspay/student-portal/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFile, err := applog.OpenLogFile()
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	logger := applog.New(cfg.Environment, logFile)

	creds, err := credential.Open()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	mgr := session.NewManager(creds, logger)
	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.APIPrefix, mgr.Token)
	mgr.SetAPI(client)
	guard := session.NewGuard(mgr)

	poller := payment.New(
		client,
		logger,
		time.Duration(cfg.Payment.PollIntervalSec)*time.Second,
		time.Duration(cfg.Payment.PollWindowSec)*time.Second,
	)

	// The local cache is an offline fallback; the portal runs without it.
	var cache store.Store
	cachePath, err := store.DefaultCachePath()
	if err != nil {
		logger.Warn().Err(err).Msg("resolving cache path failed, using in-memory cache")
		cachePath = ":memory:"
	}
	if s, err := store.NewSQLiteStore(cachePath); err != nil {
		logger.Warn().Err(err).Msg("opening local cache failed, running without")
	} else {
		cache = s
		defer s.Close()
	}

	pushURL := notify.PushURL(cfg.Server.BaseURL, cfg.Server.PushPath)
	dialer := func(ctx context.Context) (*notify.Channel, error) {
		return notify.Dial(ctx, pushURL, mgr.Token())
	}
	newSync := func() *notify.Synchronizer {
		return notify.NewSynchronizer(client, dialer, logger, cfg.Notifications.PageSize)
	}

	var initial session.Route
	if len(os.Args) > 1 {
		initial = session.Route(os.Args[1])
	}

	root := app.New(app.Deps{
		Config:     cfg,
		ConfigPath: cfgPath,
		Log:        logger,
		Manager:    mgr,
		Guard:      guard,
		API:        client,
		Poller:     poller,
		Cache:      cache,
		NewSync:    newSync,
	}, initial)

	logger.Info().Str("base_url", cfg.Server.BaseURL).Msg("starting student portal")

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
