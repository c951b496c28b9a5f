package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/config"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/logger"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/middleware"
	"github.com/FleetLinkBook/FleetLinkBook/internal/notification"
	"github.com/FleetLinkBook/FleetLinkBook/internal/report"
	"github.com/FleetLinkBook/FleetLinkBook/internal/setting"
	"github.com/FleetLinkBook/FleetLinkBook/internal/user"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

// Deps 路由依赖的各引擎
type Deps struct {
	Bookings      *booking.Service
	Vehicles      *vehicle.Service
	Users         *user.Service
	Notifications *notification.Service
	Reports       *report.Service
	Settings      *setting.Store
}

// Server HTTP服务
type Server struct {
	cfg  *config.Config
	log  logger.Logger
	http *http.Server
}

// New 组装路由与中间件。
func New(cfg *config.Config, log logger.Logger, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AccessLog(log))
	r.Use(Trace())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	r.Use(RateLimit(middleware.NewTokenBucket(200, 100)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.Server.Name})
	})

	users := NewUserHandler(deps.Users)
	vehicles := NewVehicleHandler(deps.Vehicles)
	bookings := NewBookingHandler(deps.Bookings)
	notifications := NewNotificationHandler(deps.Notifications)
	reports := NewReportHandler(deps.Reports)
	settings := NewSettingHandler(deps.Settings)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", users.Register)
	v1.POST("/auth/login", users.Login)

	authed := v1.Group("")
	authed.Use(Authn(cfg.Auth))
	{
		// 可用性查询独立于 /vehicles/:id，避免路由段冲突
		authed.GET("/availability", bookings.Available)
		authed.GET("/vehicles", vehicles.List)
		authed.GET("/vehicles/:id", vehicles.Get)

		authed.POST("/bookings", bookings.Create)
		authed.GET("/bookings", bookings.List)
		authed.GET("/bookings/:id", bookings.Get)
		authed.POST("/bookings/:id/return", bookings.Return)

		authed.GET("/notifications", notifications.List)
		authed.GET("/notifications/unread", notifications.UnreadCount)
		authed.POST("/notifications/:id/read", notifications.MarkRead)

		authed.GET("/users/:id", users.Get)
	}

	admin := authed.Group("")
	admin.Use(RequireAdmin())
	{
		admin.POST("/vehicles", vehicles.Add)
		admin.PUT("/vehicles/:id", vehicles.Update)
		admin.DELETE("/vehicles/:id", vehicles.Delete)
		admin.PUT("/vehicles/:id/status", vehicles.SetStatus)
		admin.POST("/vehicles/:id/service", vehicles.Service)
		admin.GET("/maintenance/due", vehicles.ServiceDue)

		admin.POST("/bookings/:id/approve", bookings.Approve)
		admin.POST("/bookings/:id/reject", bookings.Reject)
		admin.POST("/bookings/:id/cancel", bookings.Cancel)

		admin.GET("/users", users.List)
		admin.PUT("/users/:id/roles", users.SetRoles)

		admin.GET("/reports/summary", reports.Summary)

		admin.GET("/settings", settings.List)
		admin.PUT("/settings", settings.Set)
	}

	return &Server{
		cfg: cfg,
		log: log,
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Run 阻塞监听。
func (s *Server) Run() error {
	s.log.Infof("http server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅停机。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
