package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mediavault/internal/apperr"
	"mediavault/internal/cache"
	"mediavault/internal/config"
	"mediavault/internal/database"
	"mediavault/internal/events"
	"mediavault/internal/middleware"
	"mediavault/internal/security"
	"mediavault/internal/service"
	"mediavault/internal/storage"
	"mediavault/internal/transform"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	db       database.Driver
	cache    *redis.Client
	nonces   security.NonceStore
	uploads  *service.UploadService
	images   *service.ImageService
	metadata *service.MetadataService
	queries  *service.QueryService
	renders  *service.RenderService
}

// NewHandlerSet builds every service over the given drivers. redisClient may
// be nil, in which case events are dropped, renditions are not cached and
// nonces are tracked in process.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, db database.Driver, blobs storage.Driver, redisClient *redis.Client) HandlerSet {
	opts := service.Options{
		DatabaseTimeout: cfg.Database.RequestTimeout,
		StorageTimeout:  cfg.Storage.RequestTimeout,
		Events:          events.Nop{},
		Logger:          log,
	}

	var (
		renditions service.RenditionCache
		nonces     security.NonceStore = security.NewMemoryNonces()
	)
	if redisClient != nil {
		opts.Events = events.NewRedisPublisher(redisClient, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
		renditions = cache.NewRenditions(redisClient, cfg.Render.CacheTTL)
		nonces = security.NewRedisNonces(redisClient)
	}

	pipeline := transform.Pipeline{MaxPixels: cfg.Render.MaxPixels}

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		db:       db,
		cache:    redisClient,
		nonces:   nonces,
		uploads:  service.NewUploadService(db, blobs, opts),
		images:   service.NewImageService(db, blobs, opts),
		metadata: service.NewMetadataService(db, blobs, opts),
		queries:  service.NewQueryService(db, blobs, opts),
		renders:  service.NewRenderService(db, blobs, pipeline, cfg.Render.DefaultQuality, renditions, opts),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	account := v1.Group("/accounts/:account")
	if h.cfg.Security.Enabled {
		account.Use(middleware.Signature(middleware.SignatureConfig{
			PrivateKeys: h.cfg.Security.PrivateKeys,
			Window:      h.cfg.Security.SignatureWindow,
			Nonces:      h.nonces,
		}))
		if h.cfg.Security.RequireAccessToken {
			account.Use(middleware.AccessToken(h.cfg.Security.PrivateKeys))
		}
	}

	account.GET("", h.Account)
	account.GET("/images", h.ListImages)

	image := account.Group("/images/:identifier")
	image.PUT("", h.StoreImage)
	image.GET("", h.GetImage)
	image.HEAD("", h.HeadImage)
	image.DELETE("", h.DeleteImage)

	image.GET("/meta", h.GetMetadata)
	image.POST("/meta", h.UpdateMetadata)
	image.PUT("/meta", h.ReplaceMetadata)
	image.DELETE("/meta", h.DeleteMetadata)
}

type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case apperr.KindDuplicate, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindTransformation:
		if e.Class == apperr.ClassClient {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case apperr.KindStorage:
		if e.Transient {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (h HandlerSet) fail(c *gin.Context, err error) {
	status := statusFor(err)

	message := "internal server error"
	var e *apperr.Error
	if errors.As(err, &e) && (e.Class == apperr.ClassClient || status == http.StatusServiceUnavailable) {
		message = e.Message
	}

	event := h.log.Warn()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.
		Err(err).
		Str("account", c.Param("account")).
		Str("image_identifier", c.Param("identifier")).
		Int("status", status).
		Str("request_id", middleware.RequestIDFrom(c)).
		Msg("request failed")

	if c.Request.Method == http.MethodHead {
		c.AbortWithStatus(status)
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Code:    status,
		Kind:    apperr.KindOf(err).String(),
		Message: message,
	}})
}

func setLastModified(c *gin.Context, t time.Time) {
	c.Header("Last-Modified", t.UTC().Format(http.TimeFormat))
}
