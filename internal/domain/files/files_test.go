package files

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/blob"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 1024)...)

type recordingObserver struct {
	upload.NopObserver
	mu      sync.Mutex
	sources []string
}

func (r *recordingObserver) RecordRetrieval(_, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

type fixture struct {
	resolver *upload.Resolver
	router   *gin.Engine
	obs      *recordingObserver
}

func newFixture(t *testing.T, remote blob.Store, production bool, redirect ...string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	res := upload.NewResolver(t.TempDir(), upload.DefaultPolicies(0, 0))
	require.NoError(t, res.EnsureDirs())

	obs := &recordingObserver{}
	gw := NewGateway(res, Options{Remote: remote, RedirectCategories: redirect, Observer: obs, Logger: zap.NewNop()})
	r := gin.New()
	RegisterRoutes(r, NewHandler(gw, zap.NewNop(), production))
	return &fixture{resolver: res, router: r, obs: obs}
}

func (f *fixture) put(t *testing.T, category, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.resolver.Root(), category, name), data, 0o644))
}

func (f *fixture) get(path string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	f.router.ServeHTTP(w, req)
	return w
}

// remoteServer serves objects by key and answers 404 for anything else.
func remoteServer(t *testing.T, objects map[string][]byte, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := objects[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServe_LocalImage(t *testing.T) {
	f := newFixture(t, nil, false)
	f.put(t, "covers", "cover-1-000000001.png", pngBytes)

	for _, prefix := range []string{"/files", "/api/files"} {
		w := f.get(prefix + "/covers/cover-1-000000001.png")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
		assert.Empty(t, w.Header().Get("Content-Disposition"))
		assert.Equal(t, pngBytes, w.Body.Bytes())
	}
	assert.Equal(t, []string{upload.SourceLocal, upload.SourceLocal}, f.obs.sources)
}

func TestServe_LocalBookInlineAndRange(t *testing.T) {
	f := newFixture(t, nil, false)
	pdf := []byte("%PDF-1.7\nhello world")
	f.put(t, "books", "book-1-000000001.pdf", pdf)

	w := f.get("/files/books/book-1-000000001.pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="book-1-000000001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Empty(t, w.Header().Get("Cache-Control"))

	w = f.get("/files/books/book-1-000000001.pdf", "Range", "bytes=0-3")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
}

// Missing locally and missing remotely is a plain 404.
func TestServe_RemoteNotFound(t *testing.T) {
	srv := remoteServer(t, nil, "")
	f := newFixture(t, blob.NewHTTPStore(srv.URL+"/uploads", time.Second), false)

	w := f.get("/files/books/book-0-000000000.pdf")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
	assert.Equal(t, []string{upload.SourceNotFound}, f.obs.sources)
}

// Remote names are flat; a manuscript must not come back as a cover.
func TestServe_RemoteNameMustMatchCategory(t *testing.T) {
	var (
		mu      sync.Mutex
		fetched []string
	)
	requested := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), fetched...)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetched = append(fetched, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 manuscript"))
	}))
	t.Cleanup(srv.Close)
	f := newFixture(t, blob.NewHTTPStore(srv.URL+"/uploads", time.Second), false)

	for _, path := range []string{
		"/files/covers/book-1-000000001.pdf",
		"/files/profiles/book-1-000000001.pdf",
		"/files/books/cover-1-000000001.png",
	} {
		w := f.get(path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), "manuscript", path)
	}
	assert.Empty(t, requested())

	w := f.get("/files/books/book-1-000000001.pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"/uploads/book-1-000000001.pdf"}, requested())
}

func TestServe_NoRemoteConfigured(t *testing.T) {
	f := newFixture(t, nil, false)
	w := f.get("/files/covers/cover-1-000000001.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_ProxiesRemote(t *testing.T) {
	srv := remoteServer(t, map[string][]byte{"cover-9-000000009.png": pngBytes}, "image/png")
	f := newFixture(t, blob.NewHTTPStore(srv.URL+"/uploads", time.Second), false)

	w := f.get("/files/covers/cover-9-000000009.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, []string{upload.SourceProxied}, f.obs.sources)
}

func TestServe_ProxyFallsBackToExtensionType(t *testing.T) {
	srv := remoteServer(t, map[string][]byte{"book-9-000000009.epub": []byte("PK")}, "application/octet-stream")
	f := newFixture(t, blob.NewHTTPStore(srv.URL, time.Second), false)

	w := f.get("/files/books/book-9-000000009.epub")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/epub+zip", w.Header().Get("Content-Type"))
}

func TestServe_RemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name       string
		production bool
		leaks      bool
	}{
		{"development shows detail", false, true},
		{"production hides detail", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, blob.NewHTTPStore(srv.URL, time.Second), tt.production)
			w := f.get("/files/covers/cover-1-000000001.png")

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), "STORAGE_ERROR")
			assert.Equal(t, tt.leaks, bytes.Contains(w.Body.Bytes(), []byte("unexpected status 502")))
		})
	}
}

func TestServe_RedirectCategory(t *testing.T) {
	store := blob.NewHTTPStore("https://cdn.example.com/uploads", time.Second)
	f := newFixture(t, store, false, "books")

	w := f.get("/files/books/book-1-000000001.pdf")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://cdn.example.com/uploads/book-1-000000001.pdf", w.Header().Get("Location"))

	// Local copies still win over the redirect.
	f.put(t, "books", "book-2-000000002.pdf", []byte("%PDF-1.4"))
	w = f.get("/files/books/book-2-000000002.pdf")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServe_BadRequests(t *testing.T) {
	f := newFixture(t, nil, false)
	f.put(t, "books", "book-1-000000001.pdf.part", []byte("%PDF"))

	assert.Equal(t, http.StatusNotFound, f.get("/files/secrets/a.pdf").Code)
	// Spool files are never served.
	assert.Equal(t, http.StatusBadRequest, f.get("/files/books/book-1-000000001.pdf.part").Code)
}

func TestGateway_RejectsTraversal(t *testing.T) {
	res := upload.NewResolver(t.TempDir(), upload.DefaultPolicies(0, 0))
	gw := NewGateway(res, Options{})

	for _, name := range []string{"../../etc/passwd", `..\win.ini`, "..", "a/b.png"} {
		_, err := gw.Retrieve(context.Background(), "covers", name)
		assert.ErrorIs(t, err, upload.ErrInvalidFilename, name)
	}
}

func TestProxyURL(t *testing.T) {
	srv := remoteServer(t, map[string][]byte{"cover-9-000000009.png": pngBytes}, "image/png")
	f := newFixture(t, blob.NewHTTPStore(srv.URL+"/uploads", time.Second), false)

	w := f.get("/files/remote?url=" + srv.URL + "/uploads/cover-9-000000009.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, f.get("/files/remote?url="+srv.URL+"/uploads/cover-0-000000000.png").Code)
	assert.Equal(t, http.StatusBadRequest, f.get("/files/remote?url=https://evil.example.com/uploads/x.png").Code)
	assert.Equal(t, http.StatusBadRequest, f.get("/files/remote").Code)
}

func TestProxyURL_WithoutRemote(t *testing.T) {
	f := newFixture(t, nil, false)
	w := f.get("/files/remote?url=https://cdn.example.com/x.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// A file accepted by the ingestion middleware comes back byte-identical with
// its role's content type.
func TestRoundTrip_IngestThenServe(t *testing.T) {
	f := newFixture(t, nil, false)
	in := upload.NewIngestor(f.resolver, upload.LocalSink{}, zap.NewNop(), nil, upload.Options{})
	f.router.POST("/upload", in.Middleware(map[string]upload.Role{"coverImage": upload.RoleCover}), func(c *gin.Context) {
		c.JSON(http.StatusCreated, upload.Files(c)["coverImage"])
	})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("coverImage", "front.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var stored upload.StoredFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))

	got := f.get(stored.URL)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "image/png", got.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, got.Body.Bytes())
}
