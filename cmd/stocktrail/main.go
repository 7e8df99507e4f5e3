package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	httpadapter "github.com/stocktrail/stocktrail/internal/adapter/http"
	"github.com/stocktrail/stocktrail/internal/adapter/persistence"
	"github.com/stocktrail/stocktrail/internal/config"
	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ledger"
	"github.com/stocktrail/stocktrail/internal/service/logger"
	"github.com/stocktrail/stocktrail/internal/service/ratelimit"
	"github.com/stocktrail/stocktrail/internal/service/token"
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var (
		version = flag.Bool("version", false, "Show version information")
		migrate = flag.Bool("migrate", false, "Run database migrations and exit")
		seed    = flag.Bool("seed", false, "Seed database with sample data and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("StockTrail Warehouse Inventory Service\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	log.WithFields(logrus.Fields{
		"version":     Version,
		"environment": cfg.Server.Environment,
	}).Info("Starting StockTrail")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if *migrate {
		if err := persistence.Migrate(db); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
		log.Info("Migrations completed successfully")
		os.Exit(0)
	}

	store := persistence.NewPostgresLedgerStore(db)
	ledgerService := ledger.New(store, log, ledger.Config{
		MaxRetries: cfg.Ledger.MaxRetries,
		Backoff:    cfg.Ledger.Backoff,
	})

	if *seed {
		if err := seedDatabase(ctx, ledgerService); err != nil {
			log.WithError(err).Fatal("Failed to seed database")
		}
		log.Info("Database seeded successfully")
		os.Exit(0)
	}

	tokens := token.NewService(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)

	limiter, err := ratelimit.NewRateLimitService(ratelimit.Config{
		Enabled:  cfg.Security.RateLimitEnabled,
		RedisURL: cfg.Redis.URL,
		Timeout:  cfg.Redis.Timeout,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize rate limiter")
	}

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		RateLimitEnabled:  cfg.Security.RateLimitEnabled,
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
	}, log, ledgerService, tokens, limiter)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Server started successfully")
	<-sigChan
	log.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during server shutdown")
	}

	log.Info("Server stopped")
}

// initDatabase initializes the database connection
func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxConnections / 2)
	db.SetConnMaxLifetime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// seedDatabase inserts the demo hierarchy through the ledger so every
// seeded row carries its create audit record.
func seedDatabase(ctx context.Context, l *ledger.Ledger) error {
	const actor = "seed"

	warehouse, err := l.RecordCreate(ctx, domain.KindWarehouse, domain.Fields{
		"name": "Central Warehouse",
	}, actor)
	if err != nil {
		return err
	}

	shelf, err := l.RecordCreate(ctx, domain.KindShelf, domain.Fields{
		"code":         "SH-A1",
		"warehouse_id": warehouse.EntityID,
	}, actor)
	if err != nil {
		return err
	}

	var slots []*ledger.CreateResult
	for i := 1; i <= 3; i++ {
		slot, err := l.RecordCreate(ctx, domain.KindSlot, domain.Fields{
			"code":     fmt.Sprintf("SL-A1-%02d", i),
			"shelf_id": shelf.EntityID,
		}, actor)
		if err != nil {
			return err
		}
		slots = append(slots, slot)
	}

	shipment, err := l.RecordCreate(ctx, domain.KindShipment, domain.Fields{
		"code":             "SHP-202509-001",
		"supplier":         "Acme Logistics",
		"expected_pallets": 2,
		"expected_boxes":   4,
	}, actor)
	if err != nil {
		return err
	}

	pallet, err := l.RecordCreate(ctx, domain.KindPallet, domain.Fields{
		"code":        "PL-202509-001",
		"status":      string(domain.PalletStatusArriving),
		"shipment_id": shipment.EntityID,
	}, actor)
	if err != nil {
		return err
	}

	if _, err := l.RecordMutation(ctx, pallet.EntityID, domain.Fields{
		"slot_id": slots[0].EntityID,
		"status":  string(domain.PalletStatusWarehoused),
	}, actor, domain.AuditActionMove); err != nil {
		return err
	}

	box, err := l.RecordCreate(ctx, domain.KindBox, domain.Fields{
		"code":        "BX-202509-001",
		"contents":    "Invoices Q3",
		"pallet_id":   pallet.EntityID,
		"shipment_id": shipment.EntityID,
	}, actor)
	if err != nil {
		return err
	}

	if _, err := l.RecordCreate(ctx, domain.KindFolder, domain.Fields{
		"code":   "FD-202509-001",
		"title":  "Supplier invoices",
		"box_id": box.EntityID,
	}, actor); err != nil {
		return err
	}

	return nil
}
