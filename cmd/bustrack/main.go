package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/layer-3/bustrack/adapters/cognito"
	"github.com/layer-3/bustrack/adapters/events"
	"github.com/layer-3/bustrack/adapters/fleet"
	"github.com/layer-3/bustrack/adapters/store"
	"github.com/layer-3/bustrack/adapters/verifier"
	"github.com/layer-3/bustrack/internal/config"
	"github.com/layer-3/bustrack/internal/logging"
	"github.com/layer-3/bustrack/internal/metrics"
	"github.com/layer-3/bustrack/ports"
	"github.com/layer-3/bustrack/service"
	transport "github.com/layer-3/bustrack/transport/http"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "bustrack",
		Short:         "Bus tracking API gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("BUSTRACK_CONFIG")
			}
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logging.NewWatermillAdapter(logger),
		)
		if err != nil {
			return fmt.Errorf("failed to create redis publisher: %w", err)
		}
		defer publisher.Close()
		eventPub = events.NewWatermillPublisher(publisher, cfg.Events.AuthTopic, cfg.Events.LocationTopic)
	}

	provider, err := cognito.NewClient(ctx, cognito.Settings{
		Region:       cfg.Cognito.Region,
		UserPoolID:   cfg.Cognito.UserPoolID,
		ClientID:     cfg.Cognito.ClientID,
		ClientSecret: cfg.Cognito.ClientSecret,
		Endpoint:     cfg.Cognito.Endpoint,
		Timeout:      cfg.Cognito.Timeout,
	}, logger, m)
	if err != nil {
		return fmt.Errorf("failed to create identity provider client: %w", err)
	}

	tokenVerifier := verifier.NewOIDCVerifier(ctx, cfg.Cognito.Issuer(), cfg.Cognito.JWKSURL(), cfg.Cognito.ClientID)

	fleetClient := fleet.NewClient(fleet.Endpoints{
		BusList:       cfg.Fleet.BusListURL,
		BusCreate:     cfg.Fleet.BusCreateURL,
		DriverBus:     cfg.Fleet.DriverBusURL,
		LocationStore: cfg.Fleet.LocationStoreURL,
		LocationList:  cfg.Fleet.LocationListURL,
		UserCreate:    cfg.Fleet.UserCreateURL,
	}, nil, cfg.Fleet.Timeout, logger, m)

	sessions := store.NewRedisStore(redisClient, cfg.Redis.SessionPrefix)
	authService := service.NewAuthService(provider, sessions, eventPub, logger, m, cfg.Cognito.SessionTTL)
	fleetService := service.NewFleetService(fleetClient, eventPub, logger)

	router := transport.SetupRouter(authService, fleetService, tokenVerifier, transport.Options{
		Logger:    logger,
		Metrics:   m,
		Gatherer:  registry,
		RateLimit: rate.Limit(cfg.Server.AuthRateLimit),
		RateBurst: cfg.Server.AuthRateBurst,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server shutdown complete")
	return nil
}
