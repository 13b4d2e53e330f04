package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter собирает роутер галереи: публичные маршруты чтения и
// административные маршруты мутаций под проверкой пароля.
func NewRouter(h *Handler, adminPass string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(ZapLogging(logger.Named("HTTP")))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Admin-Password", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/slots", h.GetSlots)
		v1.GET("/ws", h.HandleWS)
		v1.GET("/stats", h.GetStats)
		v1.POST("/login", h.Login)

		admin := v1.Group("")
		admin.Use(AdminAuth(adminPass, logger))
		{
			admin.POST("/slots/:id/image", h.UploadImage)
			admin.PUT("/slots/:id/story", h.UpdateStory)
			admin.DELETE("/slots/:id", h.DeleteSlot)
			admin.POST("/slots/reset", h.ResetSlots)
			admin.POST("/uploads/bulk", h.BulkUpload)
			admin.POST("/sync", h.Sync)
			admin.POST("/images/generate", h.GenerateImage)
		}
	}

	return router
}
