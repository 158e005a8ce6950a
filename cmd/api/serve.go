package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpadp "leaseprotect/internal/adapter/http"
	"leaseprotect/internal/adapter/repository/sqlstore"
	"leaseprotect/internal/auth"
	"leaseprotect/internal/authz"
	"leaseprotect/internal/config"
	"leaseprotect/internal/domain/document"
	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/infrastructure/cache"
	"leaseprotect/internal/infrastructure/db"
	"leaseprotect/internal/infrastructure/notify"
	"leaseprotect/internal/infrastructure/storage"
	"leaseprotect/internal/observability/metrics"
	"leaseprotect/internal/observability/tracing"
	ucactor "leaseprotect/internal/usecase/actor"
	ucdocument "leaseprotect/internal/usecase/document"
	"leaseprotect/internal/usecase/policy"
	"leaseprotect/internal/usecase/token"
	"leaseprotect/internal/usecase/verification"
	"leaseprotect/internal/usecase/workflow"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run AutoMigrate before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) error {
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTelEndpoint, "leaseprotect", cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), !cfg.IsProduction(), log)
	if err != nil {
		return err
	}
	if migrate {
		if err := sqlstore.AutoMigrate(gdb); err != nil {
			return err
		}
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var (
		store document.ObjectStore
		local *storage.LocalStore
	)
	switch cfg.StorageDriver {
	case "s3":
		s3, err := storage.NewS3(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return err
		}
		store = s3
	default:
		local, err = storage.NewLocal(cfg.StorageLocalDir, cfg.StorageSigningSecret, cfg.PublicBaseURL)
		if err != nil {
			return err
		}
		store = local
	}

	var sink notification.Notifier = notify.NewLogNotifier(log)
	if cfg.NotifyWebhookURL != "" {
		sink = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
	}
	dispatcher := notify.NewDispatcher(sink, log, cfg.NotifyWorkers, 256)

	az, err := authz.New(cfg.AuthzPolicyFile)
	if err != nil {
		return err
	}
	repos, tx := sqlstore.ReposFor(gdb), sqlstore.NewGormUoW(gdb)
	machine := workflow.NewMachine(cfg.PublicBaseURL, dispatcher, log)

	tokens := token.NewUsecase(repos, tx, machine, az, cfg.TokenTTL(), log)
	docs := ucdocument.NewUsecase(repos, tx, store, machine, az, ucdocument.Options{
		MaxActorBytes: cfg.MaxUploadBytesActor,
		MaxStaffBytes: cfg.MaxUploadBytesStaff,
		ActorURLTTL:   cfg.ActorURLTTL(),
		StaffURLTTL:   cfg.StaffURLTTL(),
	}, log)
	policies := policy.NewUsecase(repos, tx, store, machine, az, policy.Options{
		TokenTTL:         cfg.TokenTTL(),
		MaxContractBytes: cfg.MaxUploadBytesStaff,
		StaffURLTTL:      cfg.StaffURLTTL(),
	}, log)

	routes := httpadp.Routes{
		Health: httpadp.NewHandler(map[string]httpadp.Pinger{
			"db":    sqlDB.PingContext,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Policies:       httpadp.NewPolicyHandler(policies, tokens, verification.NewUsecase(repos, tx, machine, az, log), docs, log),
		Actors:         httpadp.NewActorHandler(tokens, ucactor.NewUsecase(repos, tx, machine, log), docs, log),
		Tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer),
		ActorIn:        tokens,
		Redis:          rdb,
		IdempTTL:       time.Duration(cfg.IdempTTLSecs) * time.Second,
		ActorPerMinute: cfg.RateLimitTokenPerMinute,
		// multipart overhead on top of the largest accepted file
		BodyLimit: strconv.FormatInt(cfg.MaxUploadBytesStaff+(1<<20), 10),
		Log:       log,
	}
	if local != nil {
		routes.Files = httpadp.NewFileHandler(local, log)
	}

	e := echo.New()
	e.HideBanner, e.HidePort = true, true
	e.Use(middleware.RequestID(), middleware.Recover(), metrics.EchoMiddleware(), requestLogger(log))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpadp.Register(e, routes)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           otelhttp.NewHandler(e, "leaseprotect"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "env", cfg.AppEnv, "db", cfg.DBDriver, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	// drain queued invitations after the last request has finished
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("notifications dropped on shutdown", "error", err)
	}
	return nil
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("route", v.RoutePath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
