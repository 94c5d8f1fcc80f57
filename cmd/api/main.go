package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/physiodesk/clinic-api/internal/config"
	"github.com/physiodesk/clinic-api/internal/handler"
	"github.com/physiodesk/clinic-api/internal/middleware"
	"github.com/physiodesk/clinic-api/internal/refdata"
	"github.com/physiodesk/clinic-api/internal/repository/postgres"
	"github.com/physiodesk/clinic-api/internal/router"
	"github.com/physiodesk/clinic-api/internal/service/audit"
	"github.com/physiodesk/clinic-api/internal/service/auth"
	"github.com/physiodesk/clinic-api/internal/service/bridge"
	"github.com/physiodesk/clinic-api/internal/service/casestate"
	"github.com/physiodesk/clinic-api/internal/service/clinic"
	"github.com/physiodesk/clinic-api/internal/service/ledger"
	"github.com/physiodesk/clinic-api/internal/service/patient"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/metrics"
	"github.com/physiodesk/clinic-api/pkg/security"
)

func main() {
	l := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		l.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		l.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("physiodesk", "api")

	// Repositories
	txManager := postgres.NewTxManager(db)
	caseRepo := postgres.NewCaseRepository(db)
	courseRepo := postgres.NewCourseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	historyRepo := postgres.NewStatusHistoryRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	clinicRepo := postgres.NewClinicRepository(db)
	clinicianRepo := postgres.NewClinicianRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	clinicCache := refdata.NewClinicCache(clinicRepo)
	recorder := audit.NewRecorder(historyRepo, auditRepo)
	ledgerSvc := ledger.NewService(txManager, courseRepo, outboxRepo, m, l)
	caseSvc := casestate.NewService(txManager, caseRepo, ledgerSvc, recorder,
		clinicCache, outboxRepo, m, l, cfg.Clinical.NoAssessmentClinicCode)
	bridgeSvc := bridge.NewService(txManager, appointmentRepo, caseRepo,
		caseSvc, outboxRepo, m, l)
	caseSvc.SetAppointmentPropagator(bridgeSvc)

	patientSvc := patient.NewService(patientRepo, recorder)
	clinicSvc := clinic.NewService(clinicRepo, clinicCache)
	authSvc := auth.NewService(clinicianRepo, security.NewBcryptHasher(0), cfg.JWT)

	// HTTP layer
	handlers := &router.Handlers{
		Health:      handler.NewHealthHandler(db),
		Auth:        handler.NewAuthHandler(authSvc),
		Case:        handler.NewCaseHandler(caseSvc),
		Course:      handler.NewCourseHandler(ledgerSvc),
		Appointment: handler.NewAppointmentHandler(bridgeSvc),
		Patient:     handler.NewPatientHandler(patientSvc),
		Clinic:      handler.NewClinicHandler(clinicSvc),
	}
	authMW := middleware.NewAuthMiddleware(authSvc)

	engine := router.New(handlers, authMW, router.Config{
		TimeoutSeconds: cfg.Server.TimeoutSeconds,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		l.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Error(err, "forced shutdown")
	}

	l.Info("server stopped")
}
