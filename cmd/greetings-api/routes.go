package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/middleware"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/pkg/config"
	"github.com/noah-isme/birthday-greetings-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/birthday-greetings-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/birthday-greetings-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(a.metrics))
		r.GET("/metrics", a.handlers.metrics.Prometheus)
	}

	r.GET("/health", a.handlers.metrics.Health)
	r.GET("/ready", a.handlers.metrics.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := a.handlers
	hrOnly := middleware.RequireRoles(models.RoleHR)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(a.audit, logr, action, resource)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.Refresh)

	api.GET("/files/:token", h.files.Serve)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))

	secured.POST("/auth/logout", h.auth.Logout)
	secured.GET("/auth/me", h.auth.Me)

	employees := secured.Group("/employees")
	employees.GET("/me/profile", h.employees.Profile)
	employees.PATCH("/me/profile", h.employees.UpdateProfile)
	employees.GET("/me/notification-settings", h.employees.NotificationSettings)
	employees.PATCH("/me/notification-settings", h.employees.UpdateNotificationSettings)
	employees.POST("/me/change-password", h.auth.ChangePassword)
	employees.POST("/me/photo", h.employees.UploadPhoto)
	employees.DELETE("/me/photo", h.employees.DeletePhoto)

	employees.GET("/birthdays", h.birthdays.List)
	employees.GET("/birthdays/export", audit(models.AuditActionExport, "birthdays"), h.birthdays.Export)
	employees.GET("/birthdays/contacts.vcf", h.birthdays.Contacts)
	if cfg.Birthdays.CalendarFeed {
		employees.GET("/birthdays/calendar.ics", h.birthdays.Calendar)
	}
	employees.GET("/birthday-history", hrOnly, h.greetings.History)
	employees.GET("/birthday-history/export", hrOnly, audit(models.AuditActionExport, "greeting_logs"), h.greetings.ExportHistory)

	employees.GET("", hrOnly, h.employees.List)
	employees.POST("/create-with-user", hrOnly, h.employees.CreateWithUser)
	employees.GET("/:id", middleware.RBAC(string(models.RoleHR), middleware.Self), h.employees.Get)
	employees.PATCH("/:id", hrOnly, h.employees.Update)
	employees.DELETE("/:id", hrOnly, h.employees.Delete)
	employees.GET("/:id/vcard", h.birthdays.VCard)

	secured.GET("/dashboard/birthdays", h.dashboard.Birthdays)

	departments := secured.Group("/departments")
	departments.GET("", h.departments.List)
	departments.GET("/:id", h.departments.Get)
	departments.POST("", hrOnly, audit(models.AuditActionCatalogChange, "departments"), h.departments.Create)
	departments.PATCH("/:id", hrOnly, audit(models.AuditActionCatalogChange, "departments"), h.departments.Rename)
	departments.DELETE("/:id", hrOnly, audit(models.AuditActionCatalogChange, "departments"), h.departments.Delete)

	positions := secured.Group("/positions")
	positions.GET("", h.positions.List)
	positions.GET("/:id", h.positions.Get)
	positions.POST("", hrOnly, audit(models.AuditActionCatalogChange, "positions"), h.positions.Create)
	positions.PATCH("/:id", hrOnly, audit(models.AuditActionCatalogChange, "positions"), h.positions.Rename)
	positions.DELETE("/:id", hrOnly, audit(models.AuditActionCatalogChange, "positions"), h.positions.Delete)

	templates := secured.Group("/card-templates", hrOnly)
	templates.GET("", h.templates.List)
	templates.POST("", h.templates.Create)
	templates.GET("/:id", h.templates.Get)
	templates.PATCH("/:id", h.templates.Update)
	templates.DELETE("/:id", h.templates.Delete)
	templates.POST("/:id/background", h.templates.UploadBackground)
	templates.GET("/:id/preview", h.templates.Preview)

	mailing := secured.Group("/mailing-settings", hrOnly)
	mailing.GET("", h.mailing.Get)
	mailing.PATCH("", h.mailing.Update)

	secured.POST("/greetings/run", hrOnly, h.greetings.Run)

	return r
}
