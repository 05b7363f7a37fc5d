package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/article-archiver/internal/browser"
	"github.com/jonathan/article-archiver/internal/config"
	"github.com/jonathan/article-archiver/internal/db"
	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/pipeline"
	"github.com/jonathan/article-archiver/internal/site"
	"github.com/jonathan/article-archiver/internal/sqlitedb"
	"github.com/jonathan/article-archiver/internal/store"
)

// Store backends selected by the DATABASE_URL scheme.
const (
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
)

// app bundles the collaborators shared by every command.
type app struct {
	cfg *config.Config
	log logger.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

// parseStoreDSN maps DATABASE_URL onto a backend and the target it opens.
func parseStoreDSN(dsn string) (backend, target string, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return "", "", fmt.Errorf("database URL is empty")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return backendPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite database URL has no path: %s", dsn)
		}
		return backendSQLite, path, nil
	case strings.HasPrefix(dsn, "file:"):
		return backendSQLite, dsn, nil
	case strings.Contains(dsn, "://"):
		return "", "", fmt.Errorf("unsupported database URL scheme: %s", dsn)
	default:
		return backendSQLite, dsn, nil
	}
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	backend, target, err := parseStoreDSN(a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case backendPostgres:
		database, err := db.Connect(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return database, nil
	default:
		database, err := sqlitedb.Open(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return database, nil
	}
}

func (a *app) profile() (site.Profile, error) {
	if a.cfg.ProfilePath == "" {
		return site.TVPWorld(), nil
	}
	p, err := site.LoadProfile(a.cfg.ProfilePath)
	if err != nil {
		return site.Profile{}, err
	}
	a.log.Info("site profile loaded", logger.String("name", p.Name), logger.String("path", a.cfg.ProfilePath))
	return p, nil
}

func waitPolicy(cfg *config.Config) browser.WaitPolicy {
	if cfg.WaitPolicy == config.WaitPolicyPoll {
		return browser.DefaultPollReady(cfg.PollTimeout)
	}
	return browser.FixedPause{}
}

func opener(cfg *config.Config) browser.Opener {
	rc := browser.DefaultRemoteConfig(cfg.BrowserURL)
	rc.Local = cfg.BrowserLocal
	rc.PageLoadTimeout = cfg.PageLoadTimeout
	return browser.RemoteOpener(rc)
}

// runnerOptions assembles pipeline options from the loaded configuration.
func (a *app) runnerOptions(st store.Store, rec pipeline.Recorder) (pipeline.Options, error) {
	p, err := a.profile()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Opener:   opener(a.cfg),
		Store:    st,
		Profile:  p,
		Wait:     waitPolicy(a.cfg),
		Logger:   a.log,
		Recorder: rec,
	}, nil
}
