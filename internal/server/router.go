package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	advancehandler "github.com/peopleops/hrms-backend/internal/advance/handler"
	attendancehandler "github.com/peopleops/hrms-backend/internal/attendance/handler"
	"github.com/peopleops/hrms-backend/internal/audit"
	authhandler "github.com/peopleops/hrms-backend/internal/auth/handler"
	"github.com/peopleops/hrms-backend/internal/auth/jwt"
	authrepo "github.com/peopleops/hrms-backend/internal/auth/repository"
	designationhandler "github.com/peopleops/hrms-backend/internal/designation/handler"
	employeehandler "github.com/peopleops/hrms-backend/internal/employee/handler"
	leavehandler "github.com/peopleops/hrms-backend/internal/leave/handler"
	loanhandler "github.com/peopleops/hrms-backend/internal/loan/handler"
	payrollhandler "github.com/peopleops/hrms-backend/internal/payroll/handler"
	"github.com/peopleops/hrms-backend/pkg/config"
	"github.com/peopleops/hrms-backend/pkg/database"
	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/messaging"
	"github.com/peopleops/hrms-backend/pkg/ratelimit"
)

// Deps carries everything the route table needs.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *database.DB
	RabbitMQ   *messaging.RabbitMQ
	JWTManager *jwt.Manager
	Limiter    *ratelimit.Limiter
	Recorder   *audit.Recorder

	Auth         *authhandler.AuthHandler
	Employees    *employeehandler.EmployeeHandler
	Designations *designationhandler.DesignationHandler
	Attendance   *attendancehandler.AttendanceHandler
	Advances     *advancehandler.AdvanceHandler
	Loans        *loanhandler.LoanHandler
	Leaves       *leavehandler.LeaveHandler
	PayRuns      *payrollhandler.PayRunHandler
	AuditLogs    *audit.Handler
}

// NewRouter builds the full route table. Authorization is deny by
// default: every route under /api/v1 outside the auth group declares its
// role predicate explicitly.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.ClientInfo)
	r.Use(httputil.CorrelationID)
	r.Use(httputil.Logger(d.Logger))
	r.Use(httputil.Recoverer(d.Logger))
	r.Use(httputil.Deadline(d.Config.Server.RequestDeadline))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authn := Authenticate(d.JWTManager)
	anyRole := RequireRole(d.Recorder, authrepo.AllRoles...)
	adminOnly := RequireRole(d.Recorder, authrepo.RoleAdmin)
	hrOrAdmin := RequireRole(d.Recorder, authrepo.RoleHR, authrepo.RoleAdmin)

	r.Get("/health", d.health)
	r.Get("/health/ready", d.ready)
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, "alive", nil)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(d.Limiter.Middleware(ratelimit.ClassLogin)).Post("/login", d.Auth.Login)
			r.With(d.Limiter.Middleware(ratelimit.ClassRegister)).Post("/register", d.Auth.Register)
			r.With(d.Limiter.Middleware(ratelimit.ClassAuth)).Post("/refresh", d.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(d.Limiter.Middleware(ratelimit.ClassAuth))
				r.Use(authn)
				r.Get("/me", d.Auth.Me)
				r.Post("/logout", d.Auth.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Limiter.Middleware(ratelimit.ClassGeneral))
			r.Use(authn)

			r.Route("/employees", func(r chi.Router) {
				r.With(anyRole).Get("/", d.Employees.List)
				r.With(anyRole).Get("/{publicID}", d.Employees.Get)
				r.With(adminOnly).Post("/", d.Employees.Create)
				r.With(hrOrAdmin).Post("/preview", d.Employees.Preview)
				r.With(adminOnly).Put("/{publicID}", d.Employees.Update)
				r.With(adminOnly).Delete("/{publicID}", d.Employees.Delete)
			})

			r.Route("/designations", func(r chi.Router) {
				r.With(anyRole).Get("/", d.Designations.List)
				r.With(anyRole).Get("/{id}", d.Designations.Get)
				r.With(adminOnly).Post("/", d.Designations.Create)
				r.With(adminOnly).Put("/{id}", d.Designations.Update)
				r.With(adminOnly).Delete("/{id}", d.Designations.Delete)
			})

			r.Route("/attendance", func(r chi.Router) {
				r.Use(hrOrAdmin)
				r.Get("/", d.Attendance.List)
				r.Get("/{id}", d.Attendance.Get)
				r.Post("/", d.Attendance.Upsert)
				r.Delete("/{id}", d.Attendance.Delete)
			})

			r.Route("/advances", func(r chi.Router) {
				r.Use(hrOrAdmin)
				r.Get("/", d.Advances.List)
				r.Get("/{id}", d.Advances.Get)
				r.Post("/", d.Advances.Create)
				r.Put("/{id}", d.Advances.Update)
				r.Delete("/{id}", d.Advances.Delete)
			})

			r.Route("/loans", func(r chi.Router) {
				r.With(hrOrAdmin).Get("/", d.Loans.List)
				r.With(hrOrAdmin).Get("/{id}", d.Loans.Get)
				r.With(hrOrAdmin).Post("/", d.Loans.Create)
				r.With(adminOnly).Put("/{id}/cancel", d.Loans.Cancel)
				r.With(hrOrAdmin).Delete("/{id}", d.Loans.Delete)
			})

			r.Route("/leaves", func(r chi.Router) {
				r.With(anyRole).Post("/", d.Leaves.Create)
				r.With(anyRole).Get("/{id}", d.Leaves.Get)
				r.With(anyRole).Get("/employee/{employeeID}", d.Leaves.ListByEmployee)
				r.With(RequireRole(d.Recorder, authrepo.RoleManager)).Put("/{id}/manager-approve", d.Leaves.ManagerApprove)
				r.With(adminOnly).Put("/{id}/admin-approve", d.Leaves.AdminApprove)
				r.With(RequireRole(d.Recorder, authrepo.RoleManager, authrepo.RoleAdmin)).Put("/{id}/reject", d.Leaves.Reject)
				r.With(anyRole).Put("/{id}/cancel", d.Leaves.Cancel)
			})

			r.Route("/payruns", func(r chi.Router) {
				r.Use(hrOrAdmin)
				r.Post("/generate", d.PayRuns.Generate)
				r.Get("/", d.PayRuns.List)
				r.Get("/{id}", d.PayRuns.Get)
				r.Get("/{id}/export", d.PayRuns.Export)
			})

			r.With(adminOnly).Get("/admin/audit-logs", d.AuditLogs.List)
		})
	})

	return r
}

func (d Deps) health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status":   "healthy",
		"service":  "hrms-backend",
		"database": d.DB.Health(r.Context()),
	}
	if d.RabbitMQ != nil {
		payload["rabbitmq"] = d.RabbitMQ.Health()
	}
	httputil.JSON(w, http.StatusOK, "health", payload)
}

func (d Deps) ready(w http.ResponseWriter, r *http.Request) {
	dbHealth := d.DB.Health(r.Context())
	status := http.StatusOK
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	httputil.JSON(w, status, "readiness", map[string]interface{}{
		"database":            dbHealth,
		"audit_dropped_total": d.Recorder.Dropped(),
	})
}
