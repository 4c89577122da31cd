package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fibratrack/fibratrack-backend/internal/api"
	"github.com/fibratrack/fibratrack-backend/internal/apperrors"
	"github.com/fibratrack/fibratrack-backend/internal/config"
	"github.com/fibratrack/fibratrack-backend/internal/database"
	"github.com/fibratrack/fibratrack-backend/internal/jobs"
	"github.com/fibratrack/fibratrack-backend/internal/officialsource"
	"github.com/fibratrack/fibratrack-backend/internal/repository"
	"github.com/fibratrack/fibratrack-backend/internal/secrets"
	"github.com/fibratrack/fibratrack-backend/internal/service"
)

// officialTokenKey is the system_setting key holding the sealed registry token.
const officialTokenKey = "official_source_token"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Printf("Connected to database: %s", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db)
	distributionRepo := repository.NewDistributionRepository(db)
	securityRepo := repository.NewSecurityRepository(db)
	systemRepo := repository.NewSystemRepository(db)

	clock := service.SystemClock{}

	token, err := resolveOfficialToken(ctx, cfg, systemRepo, clock)
	if err != nil {
		log.Fatalf("Failed to resolve official source token: %v", err)
	}
	officialClient := officialsource.NewClient(cfg.OfficialSource.BaseURL, token)

	// Create services
	systemService := service.NewSystemService(db)
	recalcService := service.NewRecalcService(portfolioRepo, securityRepo, clock)
	runner := jobs.NewRunner(cfg.Scheduler, recalcService)

	reconcileService := service.NewReconcileService(
		distributionRepo,
		portfolioRepo,
		officialClient,
		securityRepo,
		runner,
		clock,
	)
	runner.SetReconcileService(reconcileService)

	importService := service.NewImportService(distributionRepo, portfolioRepo, runner, clock)
	catalogService := service.NewCatalogService(securityRepo, portfolioRepo, runner, clock)

	// Create router
	router := api.NewRouter(systemService, reconcileService, recalcService, importService, catalogService, runner, clock, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server exited")
}

// resolveOfficialToken returns the registry API token. A token supplied via
// the environment is sealed and stored, rotating any previous value; otherwise
// the stored sealed token is used. Without a fernet key the environment token
// is used directly.
func resolveOfficialToken(ctx context.Context, cfg *config.Config, systemRepo *repository.SystemRepository, clock service.Clock) (string, error) {
	if cfg.OfficialSource.FernetKey == "" {
		return cfg.OfficialSource.Token, nil
	}

	sealer, err := secrets.NewSealer(cfg.OfficialSource.FernetKey)
	if err != nil {
		return "", err
	}

	if cfg.OfficialSource.Token != "" {
		sealed, err := sealer.Seal(cfg.OfficialSource.Token)
		if err != nil {
			return "", err
		}
		if err := systemRepo.SetSetting(ctx, officialTokenKey, sealed, clock.UTCNow()); err != nil {
			return "", err
		}
		return cfg.OfficialSource.Token, nil
	}

	sealed, err := systemRepo.GetSetting(ctx, officialTokenKey)
	if errors.Is(err, apperrors.ErrSettingNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sealer.Unseal(sealed)
}
