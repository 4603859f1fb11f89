package app

import (
	"time"

	"lectio_backend/docs"
	"lectio_backend/internal/config"
	"lectio_backend/internal/middleware"
	"lectio_backend/pkg/monitoring"
	"lectio_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.POST("/lectures", c.lecture.Create)
		authGroup.GET("/lectures", c.lecture.List)
		authGroup.GET("/lectures/:lectureId", c.lecture.Get)
		authGroup.DELETE("/lectures/:lectureId", c.lecture.Delete)

		story := authGroup.Group("/lectures/:lectureId")
		{
			story.GET("/story/segments/:segmentNumber/state", c.story.GetSegmentState)
			story.GET("/story/progress", c.story.GetProgress)
			story.POST("/story/segments/:segmentNumber/continue", c.story.Continue)
			story.POST("/story/segments/:segmentNumber/answer", c.story.AnswerQuestion)
		}

		// These endpoints can trigger LLM generation, so they get their own,
		// much tighter rate budget.
		generateMax := cfg.RateLimit.GenerateMaxRequests
		if generateMax <= 0 {
			generateMax = 30
		}
		generation := authGroup.Group("/lectures/:lectureId")
		generation.Use(security.RateLimiter(generateMax, time.Minute))
		{
			generation.GET("/pathway", c.story.GetPathway)
			generation.GET("/story/segments", c.story.GetSegments)
			generation.GET("/story/segments/:segmentNumber/content", c.story.GetSegmentContent)
		}
	}
}
