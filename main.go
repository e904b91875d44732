package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"travelplanner/config"
	"travelplanner/database"
	"travelplanner/handlers"
	"travelplanner/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serp := services.NewSerpClient(services.SerpConfig{
		APIKey:     cfg.SerpAPI.APIKey,
		BaseURL:    cfg.SerpAPI.BaseURL,
		RatePerSec: cfg.SerpAPI.RatePerSec,
		Burst:      cfg.SerpAPI.Burst,
	})

	deps := handlers.Dependencies{
		Flights: services.NewFlightService(serp, logger),
		Hotels:  services.NewHotelService(serp, logger),
		Itineraries: services.NewItineraryGenerator(
			services.NewGroqClient(cfg.Groq.APIKey, cfg.Groq.BaseURL),
			cfg.Groq.Models,
			logger,
		),
		Email: services.NewEmailSender(
			services.NewSendGridClient(cfg.SendGrid.APIKey),
			services.EmailConfig{
				FromEmail: cfg.SendGrid.FromEmail,
				FromName:  cfg.SendGrid.FromName,
				AttachPDF: cfg.SendGrid.AttachPDF,
			},
			logger,
		),
		Logger: logger,
	}

	if cfg.Database.URL != "" {
		archive, err := database.Open(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to open itinerary archive", "error", err)
			os.Exit(1)
		}
		defer archive.Close()
		deps.Archive = archive
	} else {
		logger.Info("DATABASE_URL not set, itinerary archive disabled")
	}

	if cfg.HTTP.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))

	// Trusted proxies (the app runs behind a platform proxy)
	r.SetTrustedProxies([]string{"0.0.0.0/0"})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID", "X-Itinerary-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handlers.New(deps).Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("travel planner backend starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}
