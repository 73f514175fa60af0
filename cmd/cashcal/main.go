package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"cashcal/internal/auth"
	"cashcal/internal/cache"
	"cashcal/internal/calendar"
	"cashcal/internal/cli"
	apphttp "cashcal/internal/http"
	"cashcal/internal/log"
	"cashcal/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.CloseBackend(logger, result)

	calendarCache := cache.NewLRUCache[calendar.Calendar](cfg.CalendarCacheSize, cfg.CalendarCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(calendarCache)
	if cfg.CalendarCacheTTL > 0 {
		cacheManager.Start(ctx, cfg.CalendarCacheTTL)
		defer cacheManager.Stop()
	}

	publisher := result.Publisher()
	calendars := services.NewCalendarService(calendarCache)
	ledger := services.NewLedgerService(calendars, publisher)
	projections := services.NewProjectionService(calendars, publisher, cfg.ProjectionHorizon)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	var provider auth.Provider
	if cfg.GoogleEnabled() {
		provider = auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		logger.Info("Google login enabled", "redirect_url", cfg.GoogleRedirectURL)
	} else {
		logger.Warn("Google login disabled - GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET missing")
	}
	secureCookie := strings.HasPrefix(cfg.GoogleRedirectURL, "https://")

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Directory:          result.Directory,
		Calendars:          calendars,
		Ledger:             ledger,
		Projections:        projections,
		Tokens:             tokens,
		Login:              auth.NewHandlers(provider, result.Directory, tokens, cfg.FrontendURL, secureCookie),
		Logger:             logger,
		FrontendURL:        cfg.FrontendURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting cashcal server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"queue", result.Queue != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cli.CloseBackend(logger, result)
		os.Exit(1)
	}
	<-stopped
	logger.Info("Server stopped gracefully")
}
