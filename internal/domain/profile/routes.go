package profile

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the picture routes. uploadGuards run before the body is read.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup, uploadGuards ...gin.HandlerFunc) {
	if public != nil {
		public.GET("/users/:id/picture", h.GetPicture)
	}

	if protected != nil {
		chain := append(append([]gin.HandlerFunc{}, uploadGuards...), h.ingest, h.SetMyPicture)
		protected.PUT("/users/me/picture", chain...)
	}
}
