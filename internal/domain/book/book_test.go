package book

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"novelistan/internal/database"
	"novelistan/internal/domain/upload"
)

var (
	pdfBytes = append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("a"), 2048)...)
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 512)...)
)

type testEnv struct {
	db       *gorm.DB
	resolver *upload.Resolver
	router   *gin.Engine
}

// newTestEnv wires the book routes; the X-User header plays the role of the JWT.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(filepath.Join(t.TempDir(), "books.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Book{}, &upload.StoredFile{}))

	res := upload.NewResolver(t.TempDir(), upload.DefaultPolicies(0, 0))
	require.NoError(t, res.EnsureDirs())
	ingestor := upload.NewIngestor(res, upload.LocalSink{}, zap.NewNop(), nil, upload.Options{})

	h := NewHandler(NewService(db, ingestor, zap.NewNop()), ingestor)

	r := gin.New()
	api := r.Group("/api/v1")
	protected := api.Group("", func(c *gin.Context) {
		id, _ := strconv.ParseInt(c.GetHeader("X-User"), 10, 64)
		if id == 0 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("user_id", id)
		c.Next()
	})
	h.RegisterRoutes(api, protected)

	return &testEnv{db: db, resolver: res, router: r}
}

type part struct {
	field, name string
	data        []byte
}

func (e *testEnv) createBook(t *testing.T, user string, fields map[string]string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User", user)
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) do(method, path, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) stored(t *testing.T, category string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(e.resolver.Root(), category))
	require.NoError(t, err)
	var names []string
	for _, en := range entries {
		names = append(names, en.Name())
	}
	return names
}

type createResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Book  Book `json:"book"`
		Files struct {
			Manuscript *upload.StoredFile `json:"manuscript"`
			Cover      *upload.StoredFile `json:"cover"`
		} `json:"files"`
	} `json:"data"`
}

func TestCreateBook(t *testing.T) {
	e := newTestEnv(t)

	w := e.createBook(t, "5", map[string]string{"title": " Dune ", "genre": "sci-fi"},
		part{"bookFile", "dune.pdf", pdfBytes},
		part{"coverImage", "dune.png", pngBytes},
	)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	b := resp.Data.Book
	assert.Equal(t, "Dune", b.Title)
	assert.EqualValues(t, 5, b.AuthorID)
	assert.Equal(t, resp.Data.Files.Manuscript.StoredName, b.ManuscriptFile)
	assert.Equal(t, "/files/books/"+b.ManuscriptFile, b.ManuscriptURL)
	assert.Equal(t, resp.Data.Files.Cover.StoredName, b.CoverFile)

	assert.Equal(t, []string{b.ManuscriptFile}, e.stored(t, "books"))
	assert.Equal(t, []string{b.CoverFile}, e.stored(t, "covers"))

	var count int64
	require.NoError(t, e.db.Model(&upload.StoredFile{}).Where("owner_id = ?", 5).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreateBook_LegacyPdfField(t *testing.T) {
	e := newTestEnv(t)
	w := e.createBook(t, "5", map[string]string{"title": "Emma"}, part{"pdfFile", "emma.pdf", pdfBytes})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateBook_FailuresRemoveFiles(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		parts  []part
		code   int
		body   string
	}{
		{
			name:   "missing title",
			fields: map[string]string{},
			parts:  []part{{"bookFile", "a.pdf", pdfBytes}, {"coverImage", "a.png", pngBytes}},
			code:   http.StatusBadRequest,
			body:   "Title",
		},
		{
			name:   "missing manuscript",
			fields: map[string]string{"title": "No book"},
			parts:  []part{{"coverImage", "a.png", pngBytes}},
			code:   http.StatusBadRequest,
			body:   "manuscript",
		},
		{
			name:   "title too long",
			fields: map[string]string{"title": string(bytes.Repeat([]byte("t"), 201))},
			parts:  []part{{"bookFile", "a.pdf", pdfBytes}},
			code:   http.StatusBadRequest,
			body:   "max",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			w := e.createBook(t, "5", tt.fields, tt.parts...)

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
			assert.Empty(t, e.stored(t, "books"))
			assert.Empty(t, e.stored(t, "covers"))
		})
	}
}

func TestCreateBook_DatabaseFailureRemovesFiles(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.Migrator().DropTable(&Book{}))

	w := e.createBook(t, "5", map[string]string{"title": "Lost"}, part{"bookFile", "a.pdf", pdfBytes})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, e.stored(t, "books"))
}

func TestCreateBook_RequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	w := e.createBook(t, "", map[string]string{"title": "x"}, part{"bookFile", "a.pdf", pdfBytes})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, e.stored(t, "books"))
}

func TestGetAndListBooks(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusCreated, e.createBook(t, "1", map[string]string{"title": "A"}, part{"bookFile", "a.pdf", pdfBytes}).Code)
	require.Equal(t, http.StatusCreated, e.createBook(t, "2", map[string]string{"title": "B"}, part{"bookFile", "b.pdf", pdfBytes}).Code)

	w := e.do(http.MethodGet, "/api/v1/books?author_id=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []Book `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "B", list.Data[0].Title)

	w = e.do(http.MethodGet, "/api/v1/books", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/v1/books?author_id=abc", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/v1/books/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/v1/books/abc", "").Code)
}

func TestDeleteBook(t *testing.T) {
	e := newTestEnv(t)
	w := e.createBook(t, "1", map[string]string{"title": "A"},
		part{"bookFile", "a.pdf", pdfBytes},
		part{"coverImage", "a.png", pngBytes},
	)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	path := "/api/v1/books/" + strconv.FormatInt(resp.Data.Book.ID, 10)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodDelete, path, "2").Code)
	assert.Len(t, e.stored(t, "books"), 1)

	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, path, "1").Code)
	assert.Empty(t, e.stored(t, "books"))
	assert.Empty(t, e.stored(t, "covers"))

	var count int64
	require.NoError(t, e.db.Model(&upload.StoredFile{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, path, "1").Code)
}
