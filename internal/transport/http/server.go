package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gopherai-workspace/internal/bootstrap"
	"gopherai-workspace/internal/transport/http/handler"
	"gopherai-workspace/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(app.Logger))

	healthHandler := handler.NewHealthHandler(handler.HealthConfig{
		Name:      app.Config.App.Name,
		Env:       app.Config.App.Env,
		StartedAt: app.StartedAt,
		Checks:    healthChecks(app),
	})
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	workspaceHandler := handler.NewWorkspaceHandler(app.Service)
	documentHandler := handler.NewDocumentHandler(app.Service)
	messageHandler := handler.NewMessageHandler(app.Service)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	v1.GET("/workspaces", workspaceHandler.List)
	v1.POST("/workspaces", workspaceHandler.Create)
	v1.PUT("/workspaces/:id", workspaceHandler.Update)
	v1.DELETE("/workspaces/:id", workspaceHandler.Delete)
	v1.POST("/workspaces/:id/select", workspaceHandler.Select)
	v1.GET("/workspaces/:id/view", workspaceHandler.View)
	v1.POST("/workspaces/:id/refresh", workspaceHandler.Refresh)
	v1.GET("/workspaces/:id/files", workspaceHandler.Files)
	v1.GET("/workspaces/:id/history", workspaceHandler.History)
	v1.POST("/workspaces/:id/history/load", workspaceHandler.LoadHistory)

	v1.POST("/workspaces/:id/documents", documentHandler.Upload)
	v1.DELETE("/documents/:id", documentHandler.Delete)
	v1.POST("/workspaces/:id/urls", documentHandler.ScrapeURL)

	v1.POST("/workspaces/:id/messages", messageHandler.Send)
	v1.GET("/notifications", workspaceHandler.Notifications)

	return router
}

func healthChecks(app *bootstrap.App) map[string]handler.Checker {
	checks := map[string]handler.Checker{}
	for name, check := range app.HealthChecks() {
		checks[name] = handler.Checker(check)
	}
	return checks
}
