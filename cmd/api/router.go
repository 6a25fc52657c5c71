package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-calendar-api/internal/handler"
	"github.com/noah-isme/lesson-calendar-api/internal/middleware"
	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/service"
	"github.com/noah-isme/lesson-calendar-api/pkg/config"
	"github.com/noah-isme/lesson-calendar-api/pkg/i18n"
	"github.com/noah-isme/lesson-calendar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lesson-calendar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lesson-calendar-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg          *config.Config
	logger       *zap.Logger
	translator   *i18n.Translator
	metrics      *service.MetricsService
	auth         middleware.TokenValidator
	limiter      *middleware.RateLimiter
	ops          *handler.MetricsHandler
	calendars    *handler.CalendarHandler
	availability *handler.AvailabilityHandler
	bookings     *handler.BookingHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(logger.Recovery(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(i18n.Middleware(d.translator))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.ops.Health)
	r.GET("/ready", d.ops.Ready)
	r.GET("/metrics", d.ops.Prometheus)

	if d.cfg.Docs.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.cfg.APIPrefix)

	public := api.Group("/public")
	public.GET("/calendars/:code", d.calendars.Public)
	public.GET("/calendars/:code/availability", d.availability.Public)
	public.GET("/calendars/:code/bookings", d.bookings.PublicList)
	public.POST("/bookings", d.limiter.Middleware(), d.bookings.Submit)

	owner := api.Group("")
	owner.Use(middleware.JWT(d.auth), middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	owner.GET("/calendars", d.calendars.List)
	owner.POST("/calendars", d.calendars.Create)
	owner.GET("/calendars/:id", d.calendars.Get)
	owner.PATCH("/calendars/:id", d.calendars.Update)
	owner.DELETE("/calendars/:id", d.calendars.Delete)
	owner.PUT("/calendars/:id/availability", d.availability.Edit)
	owner.GET("/calendars/:id/bookings", d.bookings.List)
	owner.GET("/calendars/:id/bookings/export", d.bookings.Export)
	owner.DELETE("/bookings/:id", d.bookings.Delete)

	return r
}
