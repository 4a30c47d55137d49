package upload

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"novelistan/internal/pkg/response"
)

// Handler exposes the caller's upload descriptors. Files themselves are
// accepted by domain endpoints (books, profile) through Ingestor.Middleware.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListMine godoc
// @Summary List my uploads
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /uploads [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	files, err := h.repo.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list uploads")
		return
	}
	response.Success(c, http.StatusOK, files)
}

// GetMine godoc
// @Summary Get one of my uploads by stored name
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param name path string true "Stored file name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /uploads/{name} [get]
func (h *Handler) GetMine(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	f, err := h.repo.GetByStoredName(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, ErrUploadNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "upload not found")
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to load upload")
		return
	}
	// Other users' uploads are reported as missing rather than forbidden.
	if f.OwnerID != userID {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "upload not found")
		return
	}
	response.Success(c, http.StatusOK, f)
}

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return 0
	}
	switch v := id.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid user id")
	return 0
}
