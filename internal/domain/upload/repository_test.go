package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"novelistan/internal/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "uploads.db"), nopLogger())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&StoredFile{}))
	return db
}

func storedFile(id, name string, owner int64, created time.Time) *StoredFile {
	return &StoredFile{
		ID:           id,
		OwnerID:      owner,
		Field:        "coverImage",
		Role:         RoleCover,
		OriginalName: "c.png",
		StoredName:   name,
		Path:         "/uploads/covers/" + name,
		URL:          "/files/covers/" + name,
		SizeBytes:    10,
		ContentType:  "image/png",
		CreatedAt:    created,
	}
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDB(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx,
		storedFile("a", "cover-1-000000001.png", 1, now.Add(-time.Minute)),
		storedFile("b", "cover-2-000000002.png", 1, now),
		storedFile("c", "cover-3-000000003.png", 2, now),
	))
	require.NoError(t, repo.Create(ctx))

	got, err := repo.GetByStoredName(ctx, "cover-2-000000002.png")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = repo.GetByStoredName(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrUploadNotFound)

	mine, err := repo.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "b", mine[0].ID)

	some, err := repo.ListByStoredNames(ctx, []string{"cover-1-000000001.png", "cover-3-000000003.png"})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	require.NoError(t, repo.DeleteByStoredNames(ctx, []string{"cover-1-000000001.png"}))
	mine, err = repo.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestRepository_StoredNameIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupDB(t))

	require.NoError(t, repo.Create(ctx, storedFile("a", "cover-1-000000001.png", 1, time.Now())))
	assert.Error(t, repo.Create(ctx, storedFile("b", "cover-1-000000001.png", 1, time.Now())))
}

func TestHandler_ListAndGetMine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	repo := NewRepository(setupDB(t))
	require.NoError(t, repo.Create(ctx,
		storedFile("a", "cover-1-000000001.png", 1, time.Now()),
		storedFile("b", "cover-2-000000002.png", 2, time.Now()),
	))

	as := func(userID int64) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		}
	}
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1", as(1)), NewHandler(repo))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	// Server filesystem paths stay out of responses.
	assert.NotContains(t, w.Body.String(), "/uploads/covers/")
	assert.NotContains(t, w.Body.String(), `"path"`)

	var body struct {
		Success bool          `json:"success"`
		Data    []*StoredFile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "a", body.Data[0].ID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/cover-1-000000001.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/cover-2-000000002.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(NewRepository(setupDB(t))))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	obs.RecordUpload(RoleCover, OutcomeAccepted, 100)
	obs.RecordUpload(RoleCover, OutcomeRejected, 0)
	obs.RecordRetrieval("covers", SourceLocal)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.uploads.WithLabelValues(string(RoleCover), OutcomeAccepted)))
	assert.Equal(t, 100.0, testutil.ToFloat64(obs.bytes.WithLabelValues(string(RoleCover))))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.retrievals.WithLabelValues("covers", SourceLocal)))

	// Registering twice reuses the existing collectors.
	again, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)
	again.RecordUpload(RoleCover, OutcomeAccepted, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.uploads.WithLabelValues(string(RoleCover), OutcomeAccepted)))
}
