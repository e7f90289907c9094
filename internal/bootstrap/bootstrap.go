// Package bootstrap assembles the transformation pipeline from configuration
// so the HTTP server and the CLI share one wiring.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"closet/internal/adapter/repo"
	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/infra/credentials"
	"closet/internal/pipeline"
	"closet/internal/storage"
)

// Runtime holds the long-lived collaborators of a process.
type Runtime struct {
	Config      *infra.Config
	Logger      infra.Logger
	Store       *storage.FileStore
	Pool        *pgxpool.Pool
	SQL         *infra.SQLRunner
	Credentials *credentials.Store
	Service     *pipeline.Service
}

// New opens storage and, when DATABASE_URL is set, the database. Stored
// credentials fill in any provider key the environment left empty. Without a
// database the ledger lives in memory.
func New(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Runtime, error) {
	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("configure storage: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logger, Store: store}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var ledger domain.TransformationRepository
	if pool == nil {
		logger.Info().Msg("no DATABASE_URL; keeping the transformation ledger in memory")
		ledger = repo.NewMemoryTransformationRepository(0)
	} else {
		rt.Pool = pool
		rt.SQL = infra.NewSQLRunner(pool, logger)
		pg := repo.NewTransformationRepository(rt.SQL)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		ledger = pg

		rt.Credentials = credentials.NewStore(rt.SQL)
		filled, err := rt.Credentials.Fill(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load stored provider credentials")
		} else if len(filled) > 0 {
			logger.Info().Strs("providers", filled).Msg("loaded provider credentials from store")
		}
	}

	// Each provider builds its own client bounded by its RequestTimeout.
	caps := pipeline.NewCapabilities(cfg, pipeline.Deps{Store: store, Logger: &rt.Logger})
	rt.Service = pipeline.NewService(caps, store, ledger, &rt.Logger)
	return rt, nil
}

// Close releases the database pool if one was opened.
func (r *Runtime) Close() {
	if r != nil && r.Pool != nil {
		r.Pool.Close()
	}
}
