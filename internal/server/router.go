package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"protein-advisor/internal/common/logger"
)

type RouterConfig struct {
	ServiceName  string
	AllowOrigins []string
	Handler      *Handler
	Checks       []ReadinessCheck
	Logger       logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(RequestID())
	r.Use(RequestLogger(cfg.Logger))
	if len(cfg.AllowOrigins) > 0 {
		r.Use(CORS(cfg.AllowOrigins))
	}

	r.GET("/health", Health)
	r.GET("/ready", Ready(cfg.Checks, cfg.Logger))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/sessions", cfg.Handler.CreateSession)
		api.GET("/sessions", cfg.Handler.ListSessions)
		api.GET("/sessions/:id", cfg.Handler.GetSession)
		api.DELETE("/sessions/:id", cfg.Handler.EndSession)
		api.PUT("/sessions/:id/persona", cfg.Handler.UpdatePersona)
		api.POST("/sessions/:id/confirm", cfg.Handler.ConfirmPersona)
		api.POST("/sessions/:id/turns", cfg.Handler.SubmitTurn)

		api.GET("/catalog/brands", cfg.Handler.ListBrands)
		api.GET("/catalog/brands/:brand/products", cfg.Handler.ListBrandProducts)
	}

	return r
}
