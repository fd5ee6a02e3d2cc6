package main

import (
	"context"
	"fmt"

	"github.com/altsecops/findings-console/internal/application/triage"
	"github.com/altsecops/findings-console/internal/config"
	mysqldb "github.com/altsecops/findings-console/internal/infra/db/mysql"
	postgresdb "github.com/altsecops/findings-console/internal/infra/db/postgres"
	"github.com/altsecops/findings-console/internal/infra/upstream"
	"github.com/altsecops/findings-console/internal/middleware"
)

type engine struct {
	svc      *triage.Service
	upstream *upstream.Client // nil in direct-DB mode
	health   map[string]middleware.HealthChecker
	close    func()
}

// buildEngine wires the triage service against either the upstream HTTP API
// or a direct database connection, depending on configuration.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	opts := triage.Options{
		PageSize:  cfg.Engine.PageSize,
		Lookahead: cfg.Engine.Lookahead,
	}

	if cfg.Upstream.BaseURL != "" {
		cli, err := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.UpstreamTimeout(), log)
		if err != nil {
			return nil, fmt.Errorf("upstream init: %w", err)
		}
		if err := cli.WarmProducts(ctx); err != nil {
			log.Warn("product cache warmup failed", "err", err)
		}
		svc := triage.NewService(triage.Deps{
			Source:    cli,
			Pipelines: cli,
			Mutator:   cli,
			Exporter:  cli,
			Snippets:  cli,
			Products:  cli,
			Logger:    log.With("component", "triage"),
		}, opts)
		return &engine{
			svc:      svc,
			upstream: cli,
			health:   map[string]middleware.HealthChecker{"upstream": middleware.PingFunc(cli.Ping)},
			close:    func() {},
		}, nil
	}

	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqldb.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		products := mysqldb.NewProductLookup(db)
		if err := products.Warm(ctx); err != nil {
			log.Warn("product cache warmup failed", "err", err)
		}
		svc := triage.NewService(triage.Deps{
			Source:    mysqldb.NewFindingSource(db),
			Pipelines: mysqldb.NewPipelineLister(db),
			Products:  products,
			Logger:    log.With("component", "triage"),
		}, opts)
		return &engine{
			svc:    svc,
			health: map[string]middleware.HealthChecker{"database": &middleware.DatabaseHealthChecker{DB: db}},
			close:  func() { db.Close() },
		}, nil
	case "postgres":
		db, err := postgresdb.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		svc := triage.NewService(triage.Deps{
			Source: postgresdb.NewFindingSource(db),
			Logger: log.With("component", "triage"),
		}, opts)
		return &engine{
			svc:    svc,
			health: map[string]middleware.HealthChecker{"database": &middleware.DatabaseHealthChecker{DB: db}},
			close:  func() { db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("no upstream.baseUrl and unknown database.driver %q", cfg.Database.Driver)
	}
}
