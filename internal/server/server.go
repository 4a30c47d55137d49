// Package server assembles the HTTP router from the domain modules.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"novelistan/internal/config"
	"novelistan/internal/domain/book"
	"novelistan/internal/domain/files"
	"novelistan/internal/domain/profile"
	"novelistan/internal/domain/upload"
	"novelistan/internal/middleware"
	"novelistan/internal/pkg/jwt"
)

type Deps struct {
	Config   *config.AppConfig
	DB       *gorm.DB
	Logger   *zap.Logger
	JWT      *jwt.Service
	Resolver *upload.Resolver
	Storage  *Storage
	Observer upload.Observer
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&upload.StoredFile{}, &book.Book{}, &profile.Profile{})
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	log := d.Logger
	production := cfg.IsProduction()

	ingestor := upload.NewIngestor(d.Resolver, d.Storage.Sink, log.Named("upload"), d.Observer, upload.Options{
		Production: production,
	})
	gateway := files.NewGateway(d.Resolver, files.Options{
		Remote:             d.Storage.Remote,
		RedirectCategories: cfg.RedirectCategories,
		Observer:           d.Observer,
		Logger:             log.Named("files"),
	})

	filesHandler := files.NewHandler(gateway, log.Named("files"), production)
	uploadHandler := upload.NewHandler(upload.NewRepository(d.DB))
	bookHandler := book.NewHandler(book.NewService(d.DB, ingestor, log.Named("book")), ingestor)
	profileHandler := profile.NewHandler(profile.NewService(d.DB, ingestor, log.Named("profile")), ingestor, filesHandler, cfg.DefaultAvatarURL)

	var uploadGuards []gin.HandlerFunc
	if cfg.UploadRatePerMinute > 0 {
		uploadGuards = append(uploadGuards, middleware.NewRateLimiter(cfg.UploadRatePerMinute).Middleware())
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(log.Named("http"), production), middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled && d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	files.RegisterRoutes(r, filesHandler)

	v1 := r.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.JWT))

		upload.RegisterRoutes(protected, uploadHandler)
		bookHandler.RegisterRoutes(v1, protected, append([]gin.HandlerFunc{middleware.AuthorOnly()}, uploadGuards...)...)
		profileHandler.RegisterRoutes(v1, protected, uploadGuards...)
	}

	return r
}
