package upload

import "github.com/gin-gonic/gin"

// RegisterRoutes registers upload routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	uploads := r.Group("/uploads")
	{
		uploads.GET("", h.ListMine)
		uploads.GET("/:name", h.GetMine)
	}
}
