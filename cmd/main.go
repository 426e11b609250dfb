package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/seowithroki-star/file-store-bot/internal/api/handler"
	"github.com/seowithroki-star/file-store-bot/internal/broadcast"
	"github.com/seowithroki-star/file-store-bot/internal/config"
	"github.com/seowithroki-star/file-store-bot/internal/membership"
	"github.com/seowithroki-star/file-store-bot/internal/models"
	"github.com/seowithroki-star/file-store-bot/internal/reaper"
	"github.com/seowithroki-star/file-store-bot/internal/registry"
	"github.com/seowithroki-star/file-store-bot/internal/storage"
	"github.com/seowithroki-star/file-store-bot/internal/telegram"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.StoredFile{},
		&models.Subscriber{},
		&models.BroadcastRun{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting file relay bot...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to start Telegram bot: %v", err)
	}
	bot.Debug = false

	reg := registry.NewRegistry(s)
	verifier := membership.NewVerifier(bot, cfg.GatingChannelIDs, s, config.MembershipCacheTTL)
	dispatcher := broadcast.NewDispatcher(bot, s, cfg.BroadcastDelay)
	sweeper := reaper.NewReaper(reg, bot, s, cfg.FileTTL, cfg.SweepInterval, cfg.PurgeArchiveCopy)
	botService := telegram.NewBotService(bot, cfg, s, reg, verifier, dispatcher)

	// Background tasks share one process context; SIGINT/SIGTERM stops the
	// update loop, the reaper, and any in-flight broadcast between sends.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)
	go botService.Run(ctx)

	r := gin.Default()
	h := handler.NewHandler(ctx, s, dispatcher, cfg)

	r.GET("/healthz", h.Healthz)
	r.POST("/api/auth", h.Auth)
	r.GET("/ws/events", h.ServeEvents)

	api := r.Group("/api", h.AuthRequired())
	api.GET("/stats", h.Stats)
	api.POST("/broadcast", h.Broadcast)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: HTTP server shutdown failed: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Shutdown complete.")
}
