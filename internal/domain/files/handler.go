package files

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/blob"
	"novelistan/internal/pkg/response"
)

const imageCacheControl = "public, max-age=86400"

// keyOwner is implemented by blob stores that can map one of their public URLs
// back to a key.
type keyOwner interface {
	Owns(rawURL string) (string, bool)
}

type Handler struct {
	gw         *Gateway
	log        *zap.Logger
	production bool
}

func NewHandler(gw *Gateway, log *zap.Logger, production bool) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{gw: gw, log: log, production: production}
}

// Serve godoc
// @Summary Download a stored file
// @Tags Files
// @Produce octet-stream
// @Param category path string true "books, covers or profiles"
// @Param filename path string true "Stored file name"
// @Success 200 {file} file
// @Success 302
// @Failure 400,404,500 {object} map[string]interface{}
// @Router /files/{category}/{filename} [get]
func (h *Handler) Serve(c *gin.Context) {
	h.ServeFile(c, c.Param("category"), c.Param("filename"))
}

// ServeFile answers with the bytes (or a redirect) of a stored file. Other
// handlers use it to serve files they reference.
func (h *Handler) ServeFile(c *gin.Context, category, filename string) {
	r, err := h.gw.Retrieve(c.Request.Context(), category, filename)
	if err != nil {
		h.fail(c, category, filename, err)
		return
	}

	switch r.Kind {
	case KindLocal:
		h.serveLocal(c, r)
	case KindRedirect:
		c.Redirect(http.StatusFound, r.RedirectURL)
	case KindProxied:
		h.serveProxied(c, r)
	}
}

func (h *Handler) serveLocal(c *gin.Context, r *Retrieval) {
	f, err := os.Open(r.LocalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.fail(c, r.Policy.Category, r.Filename, ErrNotFound)
			return
		}
		h.fail(c, r.Policy.Category, r.Filename,
			&upload.StorageIOError{Op: "open", Role: r.Policy.Role, Filename: r.Filename, Offset: -1, Err: err})
		return
	}
	defer f.Close()

	setFileHeaders(c, r)
	http.ServeContent(c.Writer, c.Request, r.Filename, r.ModTime, f)
}

func (h *Handler) serveProxied(c *gin.Context, r *Retrieval) {
	defer r.Object.Body.Close()

	setFileHeaders(c, r)
	h.stream(c, r.Object, r.Filename)
}

// stream copies a remote object to the client. Content-Type must be set.
func (h *Handler) stream(c *gin.Context, obj *blob.Object, name string) {
	if obj.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Status(http.StatusOK)

	n, err := io.Copy(c.Writer, obj.Body)
	if err != nil {
		// Headers are gone already; the client sees a truncated body.
		h.log.Warn("proxy copy interrupted",
			zap.String("filename", name),
			zap.Int64("offset", n),
			zap.Error(err),
		)
	}
}

func setFileHeaders(c *gin.Context, r *Retrieval) {
	c.Header("Content-Type", r.ContentType())
	switch {
	case r.Policy.IsImage():
		c.Header("Cache-Control", imageCacheControl)
	case r.Policy.Role == upload.RoleManuscript:
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", r.Filename))
	}
}

// ProxyURL godoc
// @Summary Proxy a blob storage URL
// @Description Streams an object addressed by its public blob URL. Only URLs under the configured blob base are accepted.
// @Tags Files
// @Produce octet-stream
// @Param url query string true "Public blob URL"
// @Success 200 {file} file
// @Failure 400,404,500 {object} map[string]interface{}
// @Router /files/remote [get]
func (h *Handler) ProxyURL(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "url query parameter is required")
		return
	}

	owner, ok := h.gw.Remote().(keyOwner)
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "remote storage is not configured")
		return
	}
	key, ok := owner.Owns(raw)
	if !ok || !upload.IsStoredName(key) {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "url is not served by this gateway")
		return
	}

	obj, err := h.gw.Remote().Get(c.Request.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "file not found")
		return
	}
	if err != nil {
		h.log.Error("remote fetch failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, response.CodeStorage, "failed to fetch file", err, h.production)
		return
	}
	defer obj.Body.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = h.gw.resolver.Policies().ContentTypeFor(key)
	}
	c.Header("Content-Type", ct)
	h.stream(c, obj, key)
}

func (h *Handler) fail(c *gin.Context, category, filename string, err error) {
	var serr *upload.StorageIOError

	switch {
	case errors.Is(err, upload.ErrUnknownCategory), errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "file not found")
	case errors.Is(err, upload.ErrInvalidFilename):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid file name")
	case errors.As(err, &serr):
		h.log.Error("file retrieval failed",
			zap.String("op", serr.Op),
			zap.String("category", category),
			zap.String("filename", filename),
			zap.Int64("offset", serr.Offset),
			zap.Error(serr.Err),
		)
		response.Internal(c, response.CodeStorage, "failed to read file", err, h.production)
	default:
		h.log.Error("file retrieval failed", zap.String("category", category), zap.String("filename", filename), zap.Error(err))
		response.Internal(c, response.CodeInternal, "failed to read file", err, h.production)
	}
}
