package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the notebook API on router.
func (s *Server) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1", IdentityMiddleware(s.sessions))
	{
		records := v1.Group("/records")
		{
			records.POST("", s.createRecord)
			records.DELETE("/:id", s.deleteRecord)
			records.POST("/:id/sign", s.signRecord)
			records.POST("/:id/edit", s.requestEdit)
			records.POST("/:id/save", s.save)
			records.POST("/:id/cancel", s.cancel)
			records.POST("/:id/unlock", s.unlock)
			records.GET("/:id/revisions", s.listRevisions)
			records.POST("/:id/revisions/:number/restore", s.restore)
		}

		fields := v1.Group("/fields")
		{
			fields.POST("/:id/autosave", s.autosave)
			fields.GET("/:id/content", s.fieldContent)
			fields.GET("/:id/links", s.links)
		}

		v1.POST("/sessions/:id/logout", s.logout)
	}
}
