// Package httpapi HTTP API сервиса записи на консультации.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/identity"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services сервисы, которые обслуживает API
type Services struct {
	Slots        *service.SlotRegistry
	Booking      *service.BookingCoordinator
	Status       *service.AppointmentStatusMachine
	Appointments *service.AppointmentService
	Messages     *service.MessageService
	Accounts     *service.AccountService
	Stats        *service.StatsService
}

// ReadinessCheck проверка зависимости для /readyz
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Identity      *identity.Provider
	CORSOrigins   []string
	AuthRateLimit float64
	AuthRateBurst int
	Readiness     map[string]ReadinessCheck
	// StreamKeepAlive период комментариев keep-alive в SSE потоке
	StreamKeepAlive time.Duration
	Logger          *zap.Logger
}

type handler struct {
	svc       Services
	identity  *identity.Provider
	readiness map[string]ReadinessCheck
	keepAlive time.Duration
	logger    *zap.Logger
}

// NewRouter собирает gin engine со всеми маршрутами
func NewRouter(svc Services, opts Options) *gin.Engine {
	registerValidators()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	keepAlive := opts.StreamKeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}

	h := &handler{
		svc:       svc,
		identity:  opts.Identity,
		readiness: opts.Readiness,
		keepAlive: keepAlive,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(opts.CORSOrigins))
	r.NoRoute(func(c *gin.Context) {
		writeError(c, apperr.New(apperr.CodeNotFound, "route not found"))
	})

	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	auth := authMiddleware(opts.Identity)

	// ================= AUTH =================
	public := api.Group("/auth", rateLimit(opts.AuthRateLimit, opts.AuthRateBurst))
	{
		public.POST("/register", h.register)
		public.POST("/login", h.login)
		public.POST("/password-reset", h.requestPasswordReset)
		public.POST("/password-reset/confirm", h.confirmPasswordReset)
	}
	api.POST("/auth/logout", auth, h.logout)
	api.GET("/auth/me", auth, h.me)
	api.PATCH("/auth/me", auth, h.updateProfile)

	staff := requireRole(model.RoleTeacher, model.RoleAdmin)

	// ================= SLOTS =================
	slots := api.Group("/slots", auth)
	{
		slots.POST("", staff, h.createSlot)
		slots.GET("/available", h.listAvailableSlots)
		slots.GET("/:id", h.getSlot)
		slots.PATCH("/:id", staff, h.updateSlot)
		slots.DELETE("/:id", staff, h.deleteSlot)
	}

	teachers := api.Group("/teachers", auth)
	{
		teachers.GET("/search", h.searchTeachers)
		teachers.GET("/:id/slots", h.listTeacherSlots)
		teachers.GET("/:id/slots/stats", h.teacherSlotStats)
	}

	// ================= APPOINTMENTS =================
	appointments := api.Group("/appointments", auth)
	{
		appointments.POST("", requireRole(model.RoleStudent), h.bookAppointment)
		appointments.GET("", h.listAppointments)
		appointments.GET("/stats", h.appointmentStats)
		appointments.GET("/:id", h.getAppointment)
		appointments.POST("/:id/status", h.setAppointmentStatus)

		appointments.POST("/:id/messages", h.sendMessage)
		appointments.GET("/:id/messages", h.listAppointmentMessages)
		appointments.GET("/:id/messages/stream", h.streamMessages)
	}

	messages := api.Group("/messages", auth)
	{
		messages.GET("", h.listMessages)
		messages.GET("/stats", h.messageStats)
	}

	// ================= ADMIN =================
	admin := api.Group("/admin", auth, requireRole(model.RoleAdmin))
	{
		admin.GET("/registrations", h.listPendingRegistrations)
		admin.POST("/registrations/:id/approve", h.approveRegistration)
		admin.POST("/registrations/:id/reject", h.rejectRegistration)

		admin.GET("/users", h.listUsers)
		admin.POST("/teachers", h.addTeacher)
		admin.PATCH("/teachers/:id", h.updateTeacher)
		admin.DELETE("/teachers/:id", h.deleteTeacher)
		admin.POST("/admins", h.addAdmin)

		admin.GET("/stats/users", h.userStats)
		admin.GET("/stats/system", h.systemStats)
	}

	return r
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperr.Newf(apperr.CodeInvalidInput, "invalid %s", name))
		return 0, false
	}
	return id, true
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.readiness))
	ready := true
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
