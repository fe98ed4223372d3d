package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/muni-info/backend/internal/config"
	"github.com/muni-info/backend/internal/conversation"
	"github.com/muni-info/backend/internal/http/handlers"
	"github.com/muni-info/backend/internal/http/middleware"
	"github.com/muni-info/backend/internal/notify"
	"github.com/muni-info/backend/internal/routing"
	"github.com/muni-info/backend/internal/store"
	"github.com/muni-info/backend/internal/triage"

	_ "github.com/muni-info/backend/docs"
)

func Router(
	cfg config.Config,
	complaints store.ComplaintStore,
	conv *conversation.Engine,
	registry *routing.Registry,
	complaintRouter *routing.Engine,
	notifier notify.Notifier,
	logger zerolog.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowed, ",")
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Complaints: complaints,
		Engine:     conv,
		Classifier: triage.New(),
		Registry:   registry,
		Router:     complaintRouter,
		Notifier:   notifier,
		Validator:  validator.New(),
		Logger:     logger,
	}

	r.GET("/healthz", h.Healthz)
	r.POST("/webhook/chat", h.WebhookChat)
	r.POST("/webhook/ussd", h.WebhookUSSD)

	api := r.Group("/api/v1")
	api.Use(middleware.AdminKey(cfg.AdminKey))
	{
		api.GET("/complaints", h.ComplaintsList)
		api.GET("/complaints/:reference", h.ComplaintGet)
		api.POST("/complaints/:reference/status", h.ComplaintStatusUpdate)
		api.GET("/departments", h.DepartmentsList)
		api.GET("/analytics/trending", h.Trending)
		api.POST("/classify", h.Classify)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
