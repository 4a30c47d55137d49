package book

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/response"
)

// UploadFields maps the multipart fields of the create form to upload roles.
// pdfFile is the legacy name of bookFile.
var UploadFields = map[string]upload.Role{
	"bookFile":   upload.RoleManuscript,
	"pdfFile":    upload.RoleManuscript,
	"coverImage": upload.RoleCover,
}

type Handler struct {
	service *Service
	ingest  gin.HandlerFunc
}

func NewHandler(service *Service, ingestor *upload.Ingestor) *Handler {
	return &Handler{service: service, ingest: ingestor.Middleware(UploadFields)}
}

// Create godoc
// @Summary Publish a book
// @Tags Books
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param genre formData string false "Genre"
// @Param description formData string false "Description"
// @Param bookFile formData file true "Manuscript (pdf, epub, mobi)"
// @Param coverImage formData file false "Cover (jpg, png, gif)"
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,403,500 {object} map[string]interface{}
// @Router /books [post]
func (h *Handler) Create(c *gin.Context) {
	userID := c.GetInt64("user_id")
	files := upload.Files(c)
	form := upload.Form(c)

	manuscript := files["bookFile"]
	if manuscript == nil {
		manuscript = files["pdfFile"]
	}
	cover := files["coverImage"]

	in := CreateInput{
		Title:       form.Get("title"),
		Genre:       form.Get("genre"),
		Description: form.Get("description"),
	}

	b, err := h.service.Create(c.Request.Context(), userID, in, manuscript, cover)
	if err != nil {
		var ierr *InputError
		switch {
		case errors.As(err, &ierr):
			response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, ierr.Error(), ierr.Fields)
		case errors.Is(err, ErrManuscriptRequired):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to create book")
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"book": b,
		"files": gin.H{
			"manuscript": manuscript,
			"cover":      cover,
		},
	})
}

// Get godoc
// @Summary Get a book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400,404 {object} map[string]interface{}
// @Router /books/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	b, err := h.service.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrBookNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case err != nil:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to load book")
	default:
		response.Success(c, http.StatusOK, b)
	}
}

// List godoc
// @Summary List books
// @Tags Books
// @Produce json
// @Param author_id query int false "Only books of this author"
// @Success 200 {object} map[string]interface{}
// @Router /books [get]
func (h *Handler) List(c *gin.Context) {
	var authorID int64
	if raw := c.Query("author_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid author_id")
			return
		}
		authorID = v
	}

	books, err := h.service.List(c.Request.Context(), authorID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list books")
		return
	}
	response.Success(c, http.StatusOK, books)
}

// Delete godoc
// @Summary Delete my book and its files
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400,403,404,500 {object} map[string]interface{}
// @Router /books/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := h.service.Delete(c.Request.Context(), id, c.GetInt64("user_id"))
	switch {
	case errors.Is(err, ErrBookNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case err != nil:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to delete book")
	default:
		response.Success(c, http.StatusOK, gin.H{"deleted": id})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid book id")
		return 0, false
	}
	return id, true
}
