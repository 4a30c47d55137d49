package files

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the public retrieval routes. They need no authentication.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	for _, prefix := range []string{"/files", "/api/files"} {
		g := r.Group(prefix)
		g.GET("/remote", h.ProxyURL)
		g.GET("/:category/:filename", h.Serve)
		g.HEAD("/:category/:filename", h.Serve)
	}
}
