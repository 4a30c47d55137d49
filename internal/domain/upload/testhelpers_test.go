package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	pngMagic = []byte("\x89PNG\r\n\x1a\n")
	pdfMagic = []byte("%PDF-1.7\n")
	jpgMagic = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	exeMagic = []byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff\x00\x00")

	// Zip local header whose first, stored entry is "mimetype".
	epubMagic = append(append([]byte("PK\x03\x04"), make([]byte, 22)...),
		[]byte("\x08\x00\x00\x00mimetypeapplication/epub+zip")...)
	// PalmDOC database header with the MOBI type/creator at offset 60.
	mobiMagic = append(make([]byte, 60), []byte("BOOKMOBI")...)
)

// fileOf returns size bytes starting with magic.
func fileOf(magic []byte, size int) []byte {
	b := make([]byte, size)
	copy(b, magic)
	return b
}

type filePart struct {
	field string
	name  string
	data  []byte
}

type formValue struct {
	name  string
	value string
}

func multipartBody(t *testing.T, values []formValue, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, v := range values {
		require.NoError(t, w.WriteField(v.name, v.value))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r := NewResolver(t.TempDir(), DefaultPolicies(0, 0))
	require.NoError(t, r.EnsureDirs())
	return r
}

func ingestRouter(in *Ingestor, fields map[string]Role, userID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/upload",
		func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		},
		in.Middleware(fields),
		func(c *gin.Context) {
			paths := map[string]string{}
			for field, f := range Files(c) {
				paths[field] = f.Path
			}
			c.JSON(http.StatusCreated, gin.H{"files": Files(c), "form": Form(c), "paths": paths})
		},
	)
	return r
}

type ingestResponse struct {
	Files map[string]StoredFile `json:"files"`
	Form  map[string][]string   `json:"form"`
	// Paths carries StoredFile.Path, which is never serialized to clients.
	Paths map[string]string `json:"paths"`
}

func decodeIngest(t *testing.T, w *httptest.ResponseRecorder) ingestResponse {
	t.Helper()
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func postMultipart(router http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)
	return w
}

// dirEntries lists file names in the category directory of root.
func dirEntries(t *testing.T, root, category string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, category))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func nopLogger() *zap.Logger { return zap.NewNop() }
