package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/evetools/slacksync/internal/access"
	"github.com/evetools/slacksync/internal/audit"
	"github.com/evetools/slacksync/internal/auth"
	"github.com/evetools/slacksync/internal/cache"
	"github.com/evetools/slacksync/internal/config"
	"github.com/evetools/slacksync/internal/httpapi"
	"github.com/evetools/slacksync/internal/jobs"
	"github.com/evetools/slacksync/internal/obs"
	"github.com/evetools/slacksync/internal/slack"
	"github.com/evetools/slacksync/internal/store/pg"
	syncpkg "github.com/evetools/slacksync/internal/sync"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.NewJSONLogger(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client, err := slack.New(cfg.SlackToken, cfg.SlackScopes,
		slack.WithPageSize(cfg.PageSize),
		slack.WithLimiter(rate.NewLimiter(rate.Limit(1), 3)),
		slack.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("slack client: %v", err)
	}

	// Persistent stores behind Postgres when a DSN is configured; plain
	// in-memory stores otherwise, which suits local development.
	var (
		relations    access.RelationStore
		affiliations access.AffiliationStore
		identities   access.IdentityStore
		snapshots    cache.Store
		associations syncpkg.AssociationStore
		tracking     jobs.TrackingStore
		readyProbe   httpapi.ReadyProbe
	)
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		relations = store
		affiliations = store
		identities = store
		snapshots = store
		associations = store
		tracking = store.Jobs()
		readyProbe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		logger.Warning("no database configured, using in-memory stores", nil)
		memoryRelations := access.NewMemoryStore()
		memoryDirectory := access.NewMemoryDirectory()
		relations = memoryRelations
		affiliations = memoryDirectory
		identities = memoryDirectory
		snapshots = cache.NewMemoryStore()
		associations = syncpkg.NewMemoryAssociations()
		tracking = jobs.NewMemoryTracking()
	}

	auditLog := audit.New(logger)
	resolver := access.NewResolver(relations, affiliations, logger)
	membershipCache := cache.New(snapshots, client, logger)

	reconciler := syncpkg.NewReconciler(resolver, membershipCache, client, associations, logger, auditLog,
		syncpkg.WithRetryCap(cfg.RetryCap),
		syncpkg.WithGeneralChannel(cfg.GeneralChannelID),
	)
	discovery := syncpkg.NewDiscovery(client, membershipCache, associations, identities, logger, auditLog)
	sweeper := syncpkg.NewSweeper(discovery, reconciler, associations, logger)

	backend := jobs.NewInProcBackend(tracking)
	queue := jobs.NewQueue(tracking, backend, cfg.AdminContactConfigured, cfg.GraceDelay, logger)
	syncService := syncpkg.NewService(queue, reconciler, associations)

	api := httpapi.New(readyProbe, version, membershipCache, associations, syncService, auth.NewVerifier(cfg.APISecret), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	go runSweeps(sweepCtx, sweeper, cfg, logger)

	logger.Log("starting slacksync", map[string]any{
		"version": version,
		"addr":    cfg.ListenAddr,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Log("shutting down", nil)
	stopSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	backend.Wait()
	logger.Log("stopped", nil)
}

// runSweeps runs the periodic full sweep until ctx is canceled. The first
// pass starts immediately; jobs stay gated behind the admin-contact check.
func runSweeps(ctx context.Context, sweeper *syncpkg.Sweeper, cfg config.Config, logger obs.Logger) {
	if !cfg.AdminContactConfigured() {
		logger.Error("default admin contact still set, periodic sweeps disabled", nil)
		return
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		report, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Error("sweep failed", map[string]any{"error": err.Error()})
		} else if len(report.UserErrors) > 0 {
			logger.Warning("sweep finished with failures", map[string]any{
				"sweep_id": report.SweepID,
				"failures": len(report.UserErrors),
			})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
