package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"countrypulse/config"
	"countrypulse/handlers"
	"countrypulse/metrics"
	"countrypulse/models"
	"countrypulse/services"
	"countrypulse/storage"
	"countrypulse/system"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

func main() {
	// 0. Load configuration (defaults <- file <- env)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 1. Initialize Logger
	if err := system.InitLogger(cfg.LogDir); err != nil {
		log.Printf("Warning: Could not initialize file logger: %v", err)
	}
	defer system.Close()

	system.Info("countrypulse starting...")

	// 2. Setup Database
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		system.Error("Failed to connect to database: %v", err)
		log.Fatal("Failed to connect to database:", err)
	}
	system.Info("Database connected: %s", cfg.DBPath)

	// Enable WAL mode so read requests never block behind a refresh
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		system.Warn("Failed to enable WAL mode: %v", err)
	} else {
		system.Info("SQLite WAL mode enabled")
	}

	if err := db.AutoMigrate(&models.Country{}); err != nil {
		system.Error("Database migration failed: %v", err)
		log.Fatalf("CRITICAL: Database migration failed. Application cannot start: %v", err)
	}
	system.Info("Database migration completed successfully")

	// 3. Setup Services
	store := storage.New(db)

	summary, err := services.NewSummaryService(store, cfg.CacheDir)
	if err != nil {
		system.Error("Failed to initialize summary service: %v", err)
		log.Fatalf("CRITICAL: Summary cache setup failed: %v", err)
	}

	source := services.NewSourceClient(cfg.CountriesAPI, cfg.ExchangeAPI,
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second)
	calculator := services.NewCalculator(nil)
	countries := services.NewCountryService(store, source, calculator, summary)

	if total, err := store.Count(); err == nil {
		metrics.SetCountriesTracked(total)
	}

	// 4. Setup Handlers
	h := handlers.NewHandler(countries, summary)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: false,
		// Country names carry spaces and non-ASCII characters, so
		// /api/countries/:name segments must be percent-decoded.
		UnescapePath: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}))
	app.Use(cors.New())

	h.Register(app)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Graceful Shutdown Handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		system.Info("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	system.Info("Server starting on %s", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal(err)
	}
}
