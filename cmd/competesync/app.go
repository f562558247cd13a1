package main

import (
	"fmt"

	"competesync/pkg/auth"
	"competesync/pkg/challenge"
	"competesync/pkg/client"
	"competesync/pkg/config"
	"competesync/pkg/logger"
	"competesync/pkg/metrics"
	"competesync/pkg/ratelimit"
	"competesync/pkg/storage"
	"competesync/pkg/syncer"
)

// app holds the wired components shared by the commands
type app struct {
	cfg     *config.Config
	creds   auth.CredentialStore
	solver  challenge.Solver
	client  *client.AuthenticatedClient
	store   *storage.Store
	syncer  *syncer.Syncer
	metrics *metrics.Metrics
}

func newApp(cfg *config.Config) (*app, error) {
	creds, err := auth.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	m := metrics.New()

	solver := challenge.NewBrowserSolver(challenge.Options{
		Store:     creds,
		Clearance: cfg.Credentials.ClearanceCookie,
		Headless:  cfg.Challenge.Headless,
		ExecPath:  cfg.Challenge.ExecPath,
		Timeout:   cfg.Challenge.Timeout,
		Metrics:   m,
	})

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	httpClient := client.New(client.Options{
		Store:       creds,
		Solver:      solver,
		Challenge:   challengeRequest(cfg),
		Clearance:   cfg.Credentials.ClearanceCookie,
		UserAgent:   cfg.Remote.UserAgent,
		Headers:     cfg.Remote.Headers,
		Timeout:     cfg.Remote.Timeout,
		MaxAttempts: cfg.Credentials.MaxAttempts,
		RetryDelay:  cfg.Credentials.RetryDelay,
		Limiter:     limiter,
		Metrics:     m,
	})

	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	logger.GetLogger().DebugWithFields("components initialized", map[string]interface{}{
		"backend":  cfg.Credentials.Backend,
		"database": cfg.Storage.DatabasePath,
		"base_url": cfg.Remote.BaseURL,
	})

	return &app{
		cfg:     cfg,
		creds:   creds,
		solver:  solver,
		client:  httpClient,
		store:   store,
		syncer:  syncer.New(cfg, httpClient, store, nil, m),
		metrics: m,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func challengeRequest(cfg *config.Config) challenge.Request {
	return challenge.Request{
		EntryURL:  cfg.Challenge.EntryURL,
		UserAgent: cfg.Remote.UserAgent,
		Wait:      cfg.Challenge.Wait,
	}
}
