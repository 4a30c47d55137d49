package profile

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/response"
)

const pictureField = "profilePicture"

// UploadFields maps the picture form field to its upload role.
var UploadFields = map[string]upload.Role{pictureField: upload.RoleProfile}

// FileServer streams a stored file of a category to the client.
type FileServer interface {
	ServeFile(c *gin.Context, category, filename string)
}

type Handler struct {
	service       *Service
	ingest        gin.HandlerFunc
	files         FileServer
	defaultAvatar string
}

func NewHandler(service *Service, ingestor *upload.Ingestor, files FileServer, defaultAvatar string) *Handler {
	return &Handler{
		service:       service,
		ingest:        ingestor.Middleware(UploadFields),
		files:         files,
		defaultAvatar: defaultAvatar,
	}
}

// SetMyPicture godoc
// @Summary Replace my profile picture
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param profilePicture formData file true "Picture (jpg, png, gif)"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,500 {object} map[string]interface{}
// @Router /users/me/picture [put]
func (h *Handler) SetMyPicture(c *gin.Context) {
	pic := upload.Files(c)[pictureField]
	if pic == nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, pictureField+" file is required")
		return
	}

	p, err := h.service.SetPicture(c.Request.Context(), c.GetInt64("user_id"), pic)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to update profile picture")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"profile": p, "file": pic})
}

// GetPicture godoc
// @Summary Get a user's profile picture
// @Description Serves the stored picture, or redirects to remote storage or the default avatar.
// @Tags Profile
// @Param id path int true "User ID"
// @Success 200 {file} file
// @Success 302
// @Failure 400,404 {object} map[string]interface{}
// @Router /users/{id}/picture [get]
func (h *Handler) GetPicture(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid user id")
		return
	}

	p, err := h.service.Get(c.Request.Context(), userID)
	switch {
	case errors.Is(err, ErrProfileNotFound) || (err == nil && p.PictureFile == ""):
		h.defaultPicture(c)
	case err != nil:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to load profile")
	case isAbsoluteURL(p.PictureURL):
		c.Redirect(http.StatusFound, p.PictureURL)
	default:
		h.files.ServeFile(c, "profiles", p.PictureFile)
	}
}

func (h *Handler) defaultPicture(c *gin.Context) {
	if h.defaultAvatar == "" {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "profile picture not found")
		return
	}
	c.Redirect(http.StatusFound, h.defaultAvatar)
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
