package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// RouterConfig - настройки HTTP роутера.
type RouterConfig struct {
	AllowedOrigins []string
	// Metrics включает сбор HTTP метрик и /metrics. Метрики регистрируются глобально,
	// поэтому включать только один раз на процесс.
	Metrics bool
	// WebSocket обслуживает подписку на события плана. nil отключает маршрут.
	WebSocket gin.HandlerFunc
}

// NewRouter собирает gin.Engine со всеми маршрутами API.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ZapLogger(logger))

	if cfg.Metrics {
		p := ginprometheus.NewPrometheus("gin")
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			if path := c.FullPath(); path != "" {
				return path
			}
			return "unmatched"
		}
		p.Use(router)
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", clientIDHeader, requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/categories", h.Categories)
		v1.POST("/provider/validate", h.ValidateProvider)
		v1.POST("/analysis", h.Analyze)
		v1.POST("/ideas", h.Ideas)

		plans := v1.Group("/plans")
		plans.POST("", h.CreatePlan)
		plans.GET("/:planID", h.GetPlan)
		plans.POST("/:planID/chapters/:chapterID/generate", h.GenerateChapter)
		plans.GET("/:planID/chapters/:chapterID/failure", h.ChapterFailure)

		v1.GET("/tasks/:taskID", h.GetTask)
		v1.DELETE("/tasks/:taskID", h.CancelTask)

		clients := v1.Group("/clients/:clientID")
		clients.GET("/inputs", h.GetInputs)
		clients.PUT("/inputs", h.SaveInputs)
		clients.GET("/errors", h.GetErrors)
	}

	if cfg.WebSocket != nil {
		router.GET("/ws/plans/:planID", cfg.WebSocket)
	}

	return router
}
