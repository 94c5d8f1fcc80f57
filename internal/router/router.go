package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/physiodesk/clinic-api/internal/handler"
	"github.com/physiodesk/clinic-api/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Case        *handler.CaseHandler
	Course      *handler.CourseHandler
	Appointment *handler.AppointmentHandler
	Patient     *handler.PatientHandler
	Clinic      *handler.ClinicHandler
}

type Config struct {
	TimeoutSeconds int
	RateLimitRPS   float64
	RateLimitBurst int
}

// New assembles the gin engine with the full middleware chain and all
// API routes.
func New(h *Handlers, authMW *middleware.AuthMiddleware, cfg Config) *gin.Engine {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 200
	}

	registerValidators()

	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(httpMetrics())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Timeout(middleware.TimeoutConfig{
		Duration: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}))
	r.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   cfg.RateLimitRPS,
		Burst: cfg.RateLimitBurst,
	}).RateLimit())
	r.Use(middleware.ErrorHandler())

	r.GET("/healthz", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	v1.POST("/auth/login", h.Auth.Login)

	authed := v1.Group("")
	authed.Use(authMW.Authenticate())
	{
		cases := authed.Group("/cases")
		{
			cases.POST("", h.Case.Create)
			cases.GET("", h.Case.List)
			cases.GET("/:id", h.Case.Get)
			cases.POST("/:id/transition", h.Case.Transition)
			cases.GET("/:id/history", h.Case.History)
		}

		courses := authed.Group("/courses")
		{
			courses.POST("", h.Course.Create)
			courses.GET("/:id", h.Course.Get)
			courses.GET("/:id/entries", h.Course.Entries)
			courses.POST("/:id/use", h.Course.Use)
			courses.POST("/:id/return", h.Course.Return)
			courses.POST("/:id/adjust", authMW.RequirePrivileged(), h.Course.Adjust)
		}

		appointments := authed.Group("/appointments")
		{
			appointments.POST("", h.Appointment.Book)
			appointments.GET("", h.Appointment.List)
			appointments.GET("/conflicts", h.Appointment.Conflicts)
			appointments.GET("/:id", h.Appointment.Get)
			appointments.POST("/:id/complete", h.Appointment.Complete)
			appointments.POST("/:id/cancel", h.Appointment.Cancel)
			appointments.DELETE("/:id", h.Appointment.Delete)
		}

		patients := authed.Group("/patients")
		{
			patients.POST("", h.Patient.Create)
			patients.GET("", h.Patient.List)
			patients.GET("/:id", h.Patient.Get)
			patients.PUT("/:id", h.Patient.Update)
		}

		clinics := authed.Group("/clinics")
		{
			clinics.POST("", h.Clinic.Create)
			clinics.GET("", h.Clinic.List)
			clinics.GET("/:id", h.Clinic.Get)
		}
	}

	return r
}
