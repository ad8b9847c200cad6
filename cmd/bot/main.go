// Package main is the entry point for the rolewarden Discord bot.
// It connects to the gateway, mirrors guild state into the entity cache,
// and serves the role-delegation commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	disgocache "github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/events"
	disgogateway "github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/commands"
	"github.com/isahooman/rolewarden/internal/config"
	"github.com/isahooman/rolewarden/internal/gateway"
	"github.com/isahooman/rolewarden/internal/permissions"
	"github.com/isahooman/rolewarden/internal/preview"
	"github.com/isahooman/rolewarden/internal/ratelimit"
	"github.com/isahooman/rolewarden/internal/reconcile"
	"github.com/isahooman/rolewarden/internal/search"
	"github.com/isahooman/rolewarden/internal/store"
	"github.com/isahooman/rolewarden/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		// Sync errors on stdout/stderr are expected and can be safely ignored
		// for non-syncable file descriptors (pipes, terminals, etc.)
		_ = log.Sync()
	}()

	log.Info("starting rolewarden",
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("log_level", cfg.Logging.Level),
	)

	// Open the grant store
	grantStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("failed to open grant store", zap.Error(err))
	}
	defer func() {
		if err := grantStore.Close(); err != nil {
			log.Error("failed to close grant store", zap.Error(err))
		}
	}()

	// Core services
	entityCache := cache.New(log)
	perms := permissions.New(entityCache, grantStore, log)
	searchIndex := search.New(entityCache, log)
	feed := gateway.NewFeed(entityCache, log)

	// Preview sessions with background expiry sweep
	previews := preview.NewManager(time.Duration(cfg.Preview.TTLMinutes)*time.Minute, log)
	if err := previews.Start(); err != nil {
		log.Fatal("failed to start preview sweep", zap.Error(err))
	}
	defer previews.Stop()

	// Command registry
	deps := commands.Deps{
		Cache:    entityCache,
		Perms:    perms,
		Search:   searchIndex,
		Previews: previews,
		Log:      log,
	}
	registry := commands.NewRegistry(log)
	if err := commands.RegisterAll(registry, deps); err != nil {
		log.Fatal("failed to register commands", zap.Error(err))
	}

	// On the first Ready: snapshot every guild over REST, then prune grants
	// that reference roles that no longer exist. Disgo delivers Ready again
	// when a session re-identifies after a failed resume; the bootstrap must
	// not restart while the first pass is still in flight, so it runs once
	// per process.
	reconcileJob := reconcile.New(entityCache, grantStore, log)
	var bootstrapOnce sync.Once
	onReady := func(event *events.Ready) {
		log.Info("gateway session ready", zap.Int("guilds", len(event.Guilds)))

		bootstrapOnce.Do(func() {
			guildIDs := make([]snowflake.ID, 0, len(event.Guilds))
			for _, guild := range event.Guilds {
				guildIDs = append(guildIDs, guild.ID)
			}

			go func() {
				pacer := ratelimit.NewPacer(ratelimit.DefaultRequestsPerSecond, ratelimit.DefaultBurst, log)
				gateway.NewSnapshot(event.Client(), entityCache, pacer, log).LoadAll(context.Background(), guildIDs)

				if _, err := reconcileJob.Run(context.Background()); err != nil {
					log.Error("grant reconciliation failed", zap.Error(err))
				}
			}()
		})
	}

	onCommand := func(event *events.ApplicationCommandInteractionCreate) {
		name := event.Data.CommandName()
		handler, ok := registry.Lookup(name)
		if !ok {
			log.Warn("no handler for command", zap.String("command", name))
			return
		}
		if err := handler(context.Background(), event); err != nil {
			log.Error("command failed", zap.String("command", name), zap.Error(err))
		}
	}

	listeners := append(feed.Listeners(),
		bot.NewListenerFunc(onReady),
		bot.NewListenerFunc(onCommand),
		bot.NewListenerFunc(commands.NewComponentHandler(deps)),
	)

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			disgogateway.WithIntents(
				disgogateway.IntentGuilds,
				disgogateway.IntentGuildMembers,
			),
		),
		bot.WithCacheConfigOpts(
			disgocache.WithCaches(disgocache.FlagsNone),
		),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		log.Fatal("failed to build discord client", zap.Error(err))
	}
	defer client.Close(context.Background())

	if _, err := client.Rest().SetGlobalCommands(client.ApplicationID(), commands.Definitions()); err != nil {
		log.Fatal("failed to register application commands", zap.Error(err))
	}

	if err := client.OpenGateway(context.Background()); err != nil {
		log.Fatal("failed to open gateway", zap.Error(err))
	}
	log.Info("gateway connected")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	log.Info("shut down cleanly")
}

// openStore builds the grant store selected by STORE_BACKEND.
func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		return store.NewFileStore(cfg.Store.FilePath, log)
	case config.BackendSQLite:
		return store.OpenSQLite(cfg.Store.SQLitePath, log)
	default:
		return store.OpenPostgres(cfg.Database.GetDSN(), log)
	}
}
