package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/dodocesoir/internal/applog"
	"github.com/iliyamo/dodocesoir/internal/availability"
	"github.com/iliyamo/dodocesoir/internal/config"
	"github.com/iliyamo/dodocesoir/internal/database"
	"github.com/iliyamo/dodocesoir/internal/handler"
	"github.com/iliyamo/dodocesoir/internal/mailer"
	"github.com/iliyamo/dodocesoir/internal/otp"
	"github.com/iliyamo/dodocesoir/internal/queue"
	"github.com/iliyamo/dodocesoir/internal/repository"
	"github.com/iliyamo/dodocesoir/internal/router"
	"github.com/iliyamo/dodocesoir/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: .env not loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis is optional: nil disables caching and limiting and keeps codes in memory.
	rdb := config.NewRedisClient()
	var codes otp.Store = otp.NewMemoryStore()
	if rdb != nil {
		codes = otp.NewRedisStore(rdb, "")
		defer rdb.Close()
	} else {
		log.Printf("redis unavailable: one-time codes kept in memory")
	}

	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.MailLog)
	var publisher service.CodePublisher
	if cfg.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.AMQPURL)
	}

	listings := repository.NewListingRepo(db)
	links := repository.NewLinkRepo(db)
	clock := availability.SystemClock{}
	window := cfg.FreshnessWindow

	resolver := service.NewLinkResolver(links, listings)
	directory := service.NewDirectoryService(listings, clock, window)
	avail := service.NewAvailabilityService(links, repository.NewAvailabilityRepo(db), listings, resolver, clock, window)
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		CodeLength:     cfg.OTPLength,
		CodeTTL:        cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendInterval: cfg.OTPResendInterval,
	}, listings, repository.NewPrincipalRepo(db), repository.NewTokenRepo(db), codes, publisher, mail, clock)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(applog.RequestLogger())

	router.RegisterRoutes(e, router.Deps{
		JWTSecret:     cfg.JWTSecret,
		Redis:         rdb,
		Cache:         config.LoadCacheConfig(),
		RateLimit:     config.LoadRateLimitConfig(),
		AuthRateLimit: config.LoadAuthRateLimitConfig(),
		Health:        &handler.HealthHandler{DB: db, Redis: rdb},
		Listings:      handler.NewListingHandler(directory),
		Auth:          handler.NewAuthHandler(auth, cfg.JWTSecret),
		Provider:      handler.NewProviderHandler(avail, resolver),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartMailConsumer(ctx, cfg.AMQPURL, mail); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("mail-consumer: stopped: %v", err)
			}
		}()
	}

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
