package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/auth"
	"github.com/MarcoPoloResearchLab/clipshare/internal/cache"
	"github.com/MarcoPoloResearchLab/clipshare/internal/catalog"
	"github.com/MarcoPoloResearchLab/clipshare/internal/config"
	"github.com/MarcoPoloResearchLab/clipshare/internal/database"
	"github.com/MarcoPoloResearchLab/clipshare/internal/engagement"
	"github.com/MarcoPoloResearchLab/clipshare/internal/feed"
	"github.com/MarcoPoloResearchLab/clipshare/internal/logging"
	"github.com/MarcoPoloResearchLab/clipshare/internal/media"
	"github.com/MarcoPoloResearchLab/clipshare/internal/metrics"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/MarcoPoloResearchLab/clipshare/internal/server"
	"github.com/MarcoPoloResearchLab/clipshare/internal/subscriptions"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	serviceName     = "clipshare-api"
	shutdownTimeout = 10 * time.Second
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Clipshare video sharing backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, mysql)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite file path")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("redis-url", "", "Redis URL for the trending cache (empty disables caching)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "cache.redis_url", "redis-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, serviceName)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		CookieName:    appConfig.CookieName,
	})
	if err != nil {
		return err
	}
	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		Audience:       appConfig.GoogleClientID,
		JWKSURL:        appConfig.GoogleJWKSURL,
		AllowedIssuers: auth.GoogleIssuers,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	idProvider := model.NewUUIDProvider()
	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	engagementStore, err := engagement.NewStore(engagement.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	subscriptionGraph, err := subscriptions.NewGraph(subscriptions.GraphConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:      db,
		Clock:         time.Now,
		IDProvider:    idProvider,
		Logger:        logger,
		Users:         userService,
		Engagement:    engagementStore,
		Subscriptions: subscriptionGraph,
	})
	if err != nil {
		return err
	}

	readinessChecks := []server.ReadinessCheck{{Name: "database", Check: sqlDB.PingContext}}

	redisCache := cache.NewRedisCache(ctx, appConfig.RedisURL, logger)
	defer redisCache.Close() //nolint:errcheck
	var trendingCache feed.ListCache
	if redisCache.Enabled() {
		trendingCache = redisCache
		readinessChecks = append(readinessChecks, server.ReadinessCheck{Name: "redis", Check: redisCache.Ping})
	}

	composer, err := feed.NewComposer(feed.ComposerConfig{
		Catalog:       catalogService,
		Users:         userService,
		Engagement:    engagementStore,
		Subscriptions: subscriptionGraph,
		Cache:         trendingCache,
		TrendingTTL:   appConfig.TrendingTTL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	var mediaStore media.Store
	if appConfig.Media.Enabled() {
		minioStore, err := media.NewMinioStore(media.MinioConfig{
			Endpoint:      appConfig.Media.Endpoint,
			AccessKey:     appConfig.Media.AccessKey,
			SecretKey:     appConfig.Media.SecretKey,
			Bucket:        appConfig.Media.Bucket,
			UseSSL:        appConfig.Media.UseSSL,
			PublicBaseURL: appConfig.Media.PublicBaseURL,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		mediaStore = minioStore
		readinessChecks = append(readinessChecks, server.ReadinessCheck{Name: "media", Check: minioStore.Ping})
	} else {
		logger.Info("media storage not configured, uploads disabled")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier:   googleVerifier,
		SessionIssuer:    tokenIssuer,
		SessionValidator: sessionValidator,
		Users:            userService,
		Catalog:          catalogService,
		Feed:             composer,
		Engagement:       engagementStore,
		Subscriptions:    subscriptionGraph,
		MediaStore:       mediaStore,
		IDProvider:       idProvider,
		Metrics:          metrics.NewRecorder(sqlDB),
		ReadinessChecks:  readinessChecks,
		AllowedOrigins:   appConfig.AllowedOrigins,
		CookieSecure:     appConfig.CookieSecure,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
