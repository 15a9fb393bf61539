package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	advancehandler "github.com/peopleops/hrms-backend/internal/advance/handler"
	advancerepo "github.com/peopleops/hrms-backend/internal/advance/repository"
	advanceservice "github.com/peopleops/hrms-backend/internal/advance/service"
	attendancehandler "github.com/peopleops/hrms-backend/internal/attendance/handler"
	attendancerepo "github.com/peopleops/hrms-backend/internal/attendance/repository"
	attendanceservice "github.com/peopleops/hrms-backend/internal/attendance/service"
	"github.com/peopleops/hrms-backend/internal/audit"
	authhandler "github.com/peopleops/hrms-backend/internal/auth/handler"
	"github.com/peopleops/hrms-backend/internal/auth/jwt"
	authrepo "github.com/peopleops/hrms-backend/internal/auth/repository"
	authservice "github.com/peopleops/hrms-backend/internal/auth/service"
	designationhandler "github.com/peopleops/hrms-backend/internal/designation/handler"
	designationrepo "github.com/peopleops/hrms-backend/internal/designation/repository"
	designationservice "github.com/peopleops/hrms-backend/internal/designation/service"
	employeehandler "github.com/peopleops/hrms-backend/internal/employee/handler"
	employeerepo "github.com/peopleops/hrms-backend/internal/employee/repository"
	employeeservice "github.com/peopleops/hrms-backend/internal/employee/service"
	"github.com/peopleops/hrms-backend/internal/events"
	leavehandler "github.com/peopleops/hrms-backend/internal/leave/handler"
	leaverepo "github.com/peopleops/hrms-backend/internal/leave/repository"
	leaveservice "github.com/peopleops/hrms-backend/internal/leave/service"
	loanhandler "github.com/peopleops/hrms-backend/internal/loan/handler"
	loanrepo "github.com/peopleops/hrms-backend/internal/loan/repository"
	loanservice "github.com/peopleops/hrms-backend/internal/loan/service"
	"github.com/peopleops/hrms-backend/internal/payroll/calc"
	payrollhandler "github.com/peopleops/hrms-backend/internal/payroll/handler"
	payrollrepo "github.com/peopleops/hrms-backend/internal/payroll/repository"
	payrollservice "github.com/peopleops/hrms-backend/internal/payroll/service"
	"github.com/peopleops/hrms-backend/internal/server"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/messaging"
	"github.com/peopleops/hrms-backend/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadWithValidation("hrms-backend")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("hrms-backend", cfg.Server.Environment)
	log.Info().Msg("starting HRMS backend")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// RabbitMQ is optional; with no broker configured events are
	// discarded.
	var rmq *messaging.RabbitMQ
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		amqpPublisher, err := events.NewAMQPPublisher(rmq, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up event publisher")
		}
		publisher = amqpPublisher
	}

	auditRepo := audit.NewRepository(db)
	recorder := audit.NewRecorder(auditRepo, cfg.Audit.QueueSize, log)
	recorder.Start()
	defer recorder.Stop()

	limiter := ratelimit.New(&cfg.RateLimit)
	defer limiter.Stop()

	jwtManager := jwt.NewManager(&cfg.JWT)
	params := calc.NewParams(&cfg.Payroll)

	userRepo := authrepo.NewUserRepository(db)
	employeeRepo := employeerepo.NewEmployeeRepository(db)
	designationRepo := designationrepo.NewDesignationRepository(db)
	attendanceRepo := attendancerepo.NewAttendanceRepository(db)
	advanceRepo := advancerepo.NewAdvanceRepository(db)
	loanRepo := loanrepo.NewLoanRepository(db)
	leaveRepo := leaverepo.NewLeaveRepository(db)
	payrunRepo := payrollrepo.NewPayRunRepository(db)

	deps := server.Deps{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		RabbitMQ:   rmq,
		JWTManager: jwtManager,
		Limiter:    limiter,
		Recorder:   recorder,

		Auth: authhandler.NewAuthHandler(
			authservice.NewAuthService(userRepo, jwtManager, recorder, log), log),
		Employees: employeehandler.NewEmployeeHandler(
			employeeservice.NewEmployeeService(employeeRepo, params, recorder, publisher, log), log),
		Designations: designationhandler.NewDesignationHandler(
			designationservice.NewDesignationService(designationRepo, recorder, log), log),
		Attendance: attendancehandler.NewAttendanceHandler(
			attendanceservice.NewAttendanceService(attendanceRepo, recorder, log), log),
		Advances: advancehandler.NewAdvanceHandler(
			advanceservice.NewAdvanceService(advanceRepo, recorder, log), log),
		Loans: loanhandler.NewLoanHandler(
			loanservice.NewLoanService(loanRepo, recorder, publisher, log), log),
		Leaves: leavehandler.NewLeaveHandler(
			leaveservice.NewLeaveService(leaveRepo, recorder, publisher, log), log),
		PayRuns: payrollhandler.NewPayRunHandler(
			payrollservice.NewPayRunService(db, payrunRepo, employeeRepo, attendanceRepo,
				loanRepo, advanceRepo, params, &cfg.Payroll, recorder, publisher, log), log),
		AuditLogs: audit.NewHandler(auditRepo, log),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
