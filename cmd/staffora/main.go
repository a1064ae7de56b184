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

	"github.com/hibiken/asynq"

	"github.com/staffora/staffora/internal/app"
	"github.com/staffora/staffora/internal/audit"
	"github.com/staffora/staffora/internal/auth"
	"github.com/staffora/staffora/internal/employees"
	"github.com/staffora/staffora/internal/leave"
	"github.com/staffora/staffora/internal/observability"
	"github.com/staffora/staffora/internal/platform/cache"
	"github.com/staffora/staffora/internal/platform/db"
	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/roles"
	"github.com/staffora/staffora/internal/shared"
	"github.com/staffora/staffora/internal/users"
	"github.com/staffora/staffora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	authzMetrics := observability.NewAuthzMetrics(metrics.Registerer())

	rbacService, err := app.NewRBACService(cfg, dbpool, redisClient, logger, authzMetrics)
	if err != nil {
		logger.Error("init rbac", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := rbacService.Refresh(ctx); err != nil {
		logger.Error("load roles", slog.Any("error", err))
		os.Exit(1)
	}
	if err := rbacService.Listen(ctx); err != nil {
		logger.Warn("rbac listen", slog.Any("error", err))
	}
	authorizer := rbac.NewAuthorizer(rbacService.Store(), rbac.WithObserver(authzMetrics))
	guard := rbac.Middleware{Authorizer: authorizer, Logger: logger}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	otpStore := auth.NewOTPStore(redisClient, cfg.OTPTTL, cfg.OTPLength)
	authService := auth.NewService(auth.NewRepository(dbpool), tokens, otpStore, jobClient, logger)
	authHandler := auth.NewHandler(logger, authService, authorizer, sessionManager, csrfManager)

	usersService := users.NewService(users.NewRepository(dbpool), authorizer, rbacService.Store(), auditLogger, logger)
	rolesService := roles.NewService(roles.NewRepository(dbpool), rbacService, authorizer, auditLogger, logger)
	employeesService := employees.NewService(employees.NewRepository(dbpool), authorizer, auditLogger, logger)
	leaveService := leave.NewService(leave.NewRepository(dbpool), approvalRecorder, authorizer, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthService:      authService,
		SubjectLookup:    usersService,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		RBACHandler:      rbac.NewHandler(logger, rbacService, authorizer, guard),
		RolesHandler:     roles.NewHandler(logger, rolesService, guard),
		UsersHandler:     users.NewHandler(logger, usersService, guard),
		EmployeesHandler: employees.NewHandler(logger, employeesService, guard),
		LeaveHandler:     leave.NewHandler(logger, leaveService),
		AuditHandler:     audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), guard),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
