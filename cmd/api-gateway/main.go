package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	_ "github.com/talimhub/school-ops-api/api/swagger"
	"github.com/talimhub/school-ops-api/internal/billing"
	"github.com/talimhub/school-ops-api/internal/handler"
	"github.com/talimhub/school-ops-api/internal/repository"
	"github.com/talimhub/school-ops-api/internal/service"
	"github.com/talimhub/school-ops-api/pkg/cache"
	"github.com/talimhub/school-ops-api/pkg/config"
	"github.com/talimhub/school-ops-api/pkg/database"
	"github.com/talimhub/school-ops-api/pkg/logger"
)

// @title School Ops API
// @version 1.0.0
// @description Multi-tenant school operations: attendance, payroll adjustments, session dispatch, subscriptions
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, policy cache disabled", "error", err)
		rdb = nil
	}

	defaultAbsence, err := decimal.NewFromString(cfg.Payroll.DefaultAbsenceAmount)
	if err != nil {
		logr.Sugar().Fatalw("invalid default absence amount", "value", cfg.Payroll.DefaultAbsenceAmount, "error", err)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	sessionLinkRepo := repository.NewSessionLinkRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	penaltyRepo := repository.NewPenaltyRepository(db)
	waiverRepo := repository.NewWaiverRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	cacheRepo := repository.NewCacheRepository(rdb, logr)

	authSvc := service.NewAuthService(userRepo, auditRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshExpiration, validate, logr)
	policySvc := service.NewPolicyService(policyRepo, cacheRepo, service.PolicyDefaults{
		Timezone:       cfg.Payroll.Timezone,
		DefaultAbsence: defaultAbsence,
		CacheTTL:       cfg.Payroll.PolicyCacheTTL,
	}, validate, logr)
	absenceSvc := service.NewAbsenceService(assignmentRepo, sessionLinkRepo, attendanceRepo, logr)
	latenessSvc := service.NewLatenessService(assignmentRepo, sessionLinkRepo, logr)
	adjustmentSvc := service.NewAdjustmentService(db, waiverRepo, penaltyRepo, teacherRepo,
		absenceSvc, latenessSvc, auditRepo, policySvc, cfg.Payroll.AuditDetailLimit, validate, logr)
	waiverSvc := service.NewWaiverService(waiverRepo, teacherRepo, logr)

	dispatchQueue := service.NewDispatchQueue(service.LogNotifier{Logger: logr},
		cfg.Sessions.DispatchWorkers, cfg.Sessions.DispatchRetries, logr)
	sessionLinkSvc := service.NewSessionLinkService(sessionLinkRepo, studentRepo, auditRepo, dispatchQueue, validate, logr)

	stripeProvider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.SearchWindow, cfg.Stripe.SearchLimit, logr)
	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, studentRepo, stripeProvider, auditRepo, validate, logr)

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Adjustments:   handler.NewAdjustmentHandler(adjustmentSvc),
		Subscriptions: handler.NewSubscriptionHandler(subscriptionSvc),
		SessionLinks:  handler.NewSessionLinkHandler(sessionLinkSvc),
		Waivers:       handler.NewWaiverHandler(waiverSvc),
		Policies:      handler.NewPolicyHandler(policySvc),
	}

	router := handler.NewRouter(cfg, logr, handlers, authSvc, db, rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchQueue.Start(ctx)
	defer dispatchQueue.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
