package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/audit"
	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/bootstrap"
	"github.com/veilshare-inc/veilshare-engine/pkg/config"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/logging"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
	"github.com/veilshare-inc/veilshare-engine/pkg/repositories"
	"github.com/veilshare-inc/veilshare-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	demo := flag.Bool("demo", false, "run a demonstration sharing flow and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Log startup configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", cfg.Env)
	log.Printf("  Ledger backend: %s", cfg.Ledger.Backend)
	log.Printf("  Auth verification: %v", cfg.Auth.EnableVerification)
	log.Printf("  Request TTL: %s", cfg.Engine.DefaultRequestTTL())

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	led, cleanup, err := buildLedger(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize ledger", zap.Error(err))
	}
	defer cleanup()

	// The administrator capability comes from the environment, or is minted
	// fresh for throwaway local runs.
	admin := authority.Generate()
	if cfg.Auth.AdminToken != "" {
		admin = authority.FromToken(cfg.Auth.AdminToken)
	} else {
		logger.Warn("ADMIN_TOKEN not set, generated an ephemeral administrator capability")
	}
	keeper := authority.NewKeeper(admin)

	if _, err := authority.NewTokenVerifier(&authority.VerifierConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Secret:             cfg.Auth.TokenSecret,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	}); err != nil {
		logger.Fatal("failed to initialize token verifier", zap.Error(err))
	}

	trail := audit.NewTrail(logger)

	registry := services.NewRegistryService(repositories.NewEntityRepository(), keeper, trail, led, logger.Named("registry"), nil)
	catalog := services.NewCatalogService(repositories.NewReferenceRepository(), registry, keeper, trail, led, logger.Named("catalog"), nil)
	lifecycle := services.NewLifecycleService(repositories.NewRequestRepository(), keeper, trail, led, logger.Named("lifecycle"), nil)

	if cfg.Seed.Enabled {
		seed, err := bootstrap.Load(cfg.Seed.Path)
		if err != nil {
			logger.Fatal("failed to load seed file", zap.Error(err))
		}
		seeder := bootstrap.NewSeeder(registry, catalog, admin, cfg.Engine.DefaultPermissionTTL(), logger)
		if err := seeder.Apply(ctx, seed); err != nil {
			logger.Fatal("failed to apply seed", zap.Error(err))
		}
	}

	overrides, err := cfg.Engine.SensitivityOverrides()
	if err != nil {
		logger.Fatal("invalid sensitivity overrides", zap.Error(err))
	}

	orchestrator := services.NewSharingOrchestrator(
		registry,
		catalog,
		lifecycle,
		services.PriorityGateway{Threshold: cfg.Engine.GatewayThreshold},
		services.StaticClassifier{Overrides: overrides, Default: cfg.Engine.DefaultSensitivityLevel()},
		services.LevelContentFilter{},
		led,
		logger.Named("orchestrator"),
		cfg.Engine.DefaultRequestTTL(),
		nil,
	)

	logger.Info("veilshare-engine ready",
		zap.String("version", cfg.Version),
		zap.String("ledger_backend", cfg.Ledger.Backend),
	)

	if *demo {
		if err := runDemo(ctx, admin, registry, orchestrator, logger); err != nil {
			logger.Fatal("demo flow failed", zap.Error(err))
		}
	}
}

// buildLedger constructs the configured durability backend. The postgres
// backend migrates its schema before serving.
func buildLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ledger.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case "postgres":
		connStr := cfg.Ledger.Database.ConnectionString()
		logger.Info("connecting to ledger database",
			zap.String("connection", logging.SanitizeConnectionString(connStr)),
		)

		sqlDB, err := sql.Open("pgx", connStr)
		if err != nil {
			return nil, nil, err
		}
		if err := ledger.RunMigrations(sqlDB, cfg.Ledger.MigrationsPath, logger); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		sqlDB.Close()

		led, err := ledger.NewPostgresLedger(ctx, &ledger.PostgresConfig{
			URL:            connStr,
			MaxConnections: cfg.Ledger.Database.MaxConnections,
		})
		if err != nil {
			return nil, nil, err
		}
		return led, led.Close, nil
	default:
		led := ledger.NewMemoryLedger()
		return led, led.Close, nil
	}
}

// runDemo walks one complete sharing flow: register an entity, ingest a batch
// of readings, file a data request, and resolve it.
func runDemo(ctx context.Context, admin authority.Authority, registry services.RegistryService, orchestrator *services.SharingOrchestrator, logger *zap.Logger) error {
	if err := registry.RegisterEntity(ctx, admin, "researcher-1", "researcher", "demo-principal", models.LevelResearcher); err != nil {
		return err
	}

	readings := []services.Reading{
		{DeviceID: "sensor-a", DataType: "temperature", Field: "celsius", Value: "36.8", Priority: "high"},
		{DeviceID: "sensor-a", DataType: "temperature", Field: "celsius", Value: "37.1", Priority: "normal"},
		{DeviceID: "sensor-b", DataType: "heart_rate", Field: "bpm", Value: "71", Priority: "low"},
	}
	ingested, err := orchestrator.IngestReadings(ctx, admin, readings)
	if err != nil {
		return err
	}
	logger.Info("demo ingestion complete",
		zap.Int("total", ingested.Total),
		zap.Int("admitted", ingested.Admitted),
	)

	requestID, err := orchestrator.HandleDataRequest(ctx, "researcher-1", "temperature", "demo aggregate study", models.LevelResearcher)
	if err != nil {
		return err
	}

	req, err := orchestrator.ResolveRequest(ctx, admin, requestID)
	if err != nil {
		return err
	}
	logger.Info("demo request resolved",
		zap.Uint64("request_id", req.RequestID),
		zap.String("status", string(req.Status)),
		zap.String("fulfillment_pointer", req.FulfillmentPointer),
	)
	return nil
}
