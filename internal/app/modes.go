package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	busredis "bolao/internal/bus/redis"
	"bolao/internal/governance"
	"bolao/internal/pool"
	"bolao/internal/server"
	"bolao/internal/server/handler"
	"bolao/internal/server/ws"
)

// PoolMode runs the betting pool engine: the command stream consumer, the
// HTTP API for pool operations, and the archive loop.
func (a *App) PoolMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting pool mode")

	g, ctx := errgroup.WithContext(ctx)

	poolSvc := a.buildPoolService(deps)
	a.startPoolConsumer(ctx, g, deps, poolSvc)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Pool:   handler.NewPoolHandler(poolSvc, a.logger),
			Events: handler.NewEventsHandler(deps.Journal, a.logger),
		})
	}

	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// GovernMode runs the governance proposal engine and its HTTP API. Commands
// from executed proposals are dispatched over the bus to the pool process.
func (a *App) GovernMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting govern mode")

	g, ctx := errgroup.WithContext(ctx)

	govSvc := a.buildGovernanceService(deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health:     handler.NewHealthHandler(a.logger),
			Governance: handler.NewGovernanceHandler(govSvc, a.logger),
			Events:     handler.NewEventsHandler(deps.Journal, a.logger),
		})
	}

	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// FullMode runs both engines in one process. Governance still dispatches
// through the bus and the pool consumer still reads from it, so the two
// engines stay decoupled exactly as they are when split across processes.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	poolSvc := a.buildPoolService(deps)
	govSvc := a.buildGovernanceService(deps)
	a.startPoolConsumer(ctx, g, deps, poolSvc)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health:     handler.NewHealthHandler(a.logger),
			Pool:       handler.NewPoolHandler(poolSvc, a.logger),
			Governance: handler.NewGovernanceHandler(govSvc, a.logger),
			Events:     handler.NewEventsHandler(deps.Journal, a.logger),
		})
	}

	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

func (a *App) buildPoolService(deps *Dependencies) *pool.Service {
	return pool.New(pool.Config{
		Owner:            common.HexToAddress(a.cfg.Pool.Owner),
		PrizeDistributor: common.HexToAddress(a.cfg.Pool.PrizeDistributor),
		Params: pool.Params{
			FeeBps:         a.cfg.Pool.FeeBps,
			FinalPrizeBps:  a.cfg.Pool.FinalPrizeBps,
			MaxPayoutChunk: a.cfg.Pool.MaxPayoutChunk,
		},
	}, deps.Verifier, deps.Treasury, deps.Emitter, a.logger)
}

func (a *App) buildGovernanceService(deps *Dependencies) *governance.Service {
	return governance.New(governance.Config{
		Owner:        common.HexToAddress(a.cfg.Governance.Owner),
		MarketTarget: common.HexToAddress(a.cfg.Governance.MarketTarget),
		QuorumBps:    a.cfg.Governance.QuorumBps,
		VotingPeriod: a.cfg.Governance.VotingPeriod.Duration,
	}, deps.CommandBus, deps.Emitter, a.logger)
}

// startPoolConsumer adds the governance command stream consumer to the group.
// The pool reads from the stream keyed by the configured market target, the
// same identity governance dispatches to.
func (a *App) startPoolConsumer(ctx context.Context, g *errgroup.Group, deps *Dependencies, poolSvc *pool.Service) {
	target := common.HexToAddress(a.cfg.Governance.MarketTarget)
	consumer := pool.NewConsumer(poolSvc, deps.CommandSource, deps.LockManager, target, a.logger)
	g.Go(func() error {
		err := consumer.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// group. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, handlers server.Handlers) {
	hub := ws.NewHub(deps.EventPub, busredis.EventsChannel, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop adds the periodic event archival goroutine to the group
// when archiving is enabled. Each cycle moves journal rows older than the
// retention window into object storage.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := a.cfg.Archive.RetentionDays

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -retention)
				moved, err := deps.Archiver.ArchiveEvents(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "event archival failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if moved > 0 {
					a.logger.InfoContext(ctx, "archived events",
						slog.Int64("moved", moved),
						slog.Time("cutoff", cutoff),
					)
				}
			}
		}
	})
}
