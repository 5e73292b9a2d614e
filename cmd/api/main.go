package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	httptransport "github.com/taller-labs/fieldservice/internal/api/http"
	"github.com/taller-labs/fieldservice/internal/api/http/handlers"
	"github.com/taller-labs/fieldservice/internal/auth"
	"github.com/taller-labs/fieldservice/internal/config"
	"github.com/taller-labs/fieldservice/internal/documents"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/messaging"
	"github.com/taller-labs/fieldservice/internal/objectstore"
	"github.com/taller-labs/fieldservice/internal/observability"
	"github.com/taller-labs/fieldservice/internal/persistence"
	"github.com/taller-labs/fieldservice/internal/replica"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/internal/service"
	"github.com/taller-labs/fieldservice/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	budgetRepo := repository.NewBudgetRepository(pool)
	staffRepo := repository.NewTechnicianRepository(pool)
	positionRepo := repository.NewPositionRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	changes := events.NewRedisChangeStream(rdb.Client, logger)
	docs := documents.NewLogGenerator(logger)
	channels := messaging.NewChannels(cfg.Messaging, logger)

	store, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init object storage", zap.Error(err))
	}

	taxRate, err := decimal.NewFromString(cfg.App.TaxRate)
	if err != nil {
		logger.Fatal("invalid TAX_RATE", zap.Error(err))
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		TechnicianRepo: staffRepo,
		Dispatcher:     dispatcher,
		Changes:        changes,
		Policy:         cfg.Policy,
		Logger:         logger,
	})
	scheduleService := service.NewScheduleService(service.ScheduleDependencies{
		TicketRepo:     ticketRepo,
		TechnicianRepo: staffRepo,
		State:          ticketService,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	quoteService := service.NewQuoteService(service.QuoteDependencies{
		TicketRepo: ticketRepo,
		BudgetRepo: budgetRepo,
		State:      ticketService,
		Documents:  docs,
		Dispatcher: dispatcher,
		Quote:      cfg.Quote,
		Logger:     logger,
	})
	materialService := service.NewMaterialService(service.MaterialDependencies{
		TicketRepo: ticketRepo,
		State:      ticketService,
		Documents:  docs,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	paymentService := service.NewPaymentService(service.PaymentDependencies{
		TicketRepo: ticketRepo,
		State:      ticketService,
		Documents:  docs,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	locationService := service.NewLocationService(service.LocationDependencies{
		PositionRepo: positionRepo,
		State:        ticketService,
		Policy:       cfg.Policy,
		Location:     cfg.Location,
		Logger:       logger,
	})
	notificationService := service.NewNotificationService(ticketRepo, channels, cfg.Quote.ValidityDays, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, staffRepo)

	cache := replica.NewCache()

	worker.StartNotificationWorker(notificationService, dispatcher)
	worker.StartLocationWorker(ctx, locationService, cfg.Location.Recheck(), logger)
	worker.StartPaymentWorker(ctx, rdb.Client, paymentService, logger)
	worker.StartReplicaWorker(ctx, changes, cache, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Auth:           handlers.NewAuthHandler(staffRepo, tokens),
		Tickets:        handlers.NewTicketsHandler(ticketService, cache),
		Schedule:       handlers.NewScheduleHandler(scheduleService),
		Quotes:         handlers.NewQuotesHandler(quoteService, taxRate),
		Materials:      handlers.NewMaterialsHandler(materialService),
		Payments:       handlers.NewPaymentsHandler(paymentService),
		Locations:      handlers.NewLocationsHandler(locationService),
		Uploads:        handlers.NewUploadsHandler(store),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()
	_ = app.Shutdown()
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (objectstore.ObjectStore, error) {
	if cfg.Backend == "gcs" {
		return objectstore.NewGCSStore(ctx, cfg.Bucket, cfg.URLPrefix)
	}
	return objectstore.NewMemoryStore(), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
