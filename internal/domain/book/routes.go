package book

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the book routes. createGuards run before the upload is
// read, so unauthorized or throttled callers never stream a body to disk.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup, createGuards ...gin.HandlerFunc) {
	if public != nil {
		public.GET("/books", h.List)
		public.GET("/books/:id", h.Get)
	}

	if protected != nil {
		chain := append(append([]gin.HandlerFunc{}, createGuards...), h.ingest, h.Create)
		protected.POST("/books", chain...)
		protected.DELETE("/books/:id", h.Delete)
	}
}
