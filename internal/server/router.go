package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/auth"
	"github.com/MarcoPoloResearchLab/clipshare/internal/catalog"
	"github.com/MarcoPoloResearchLab/clipshare/internal/engagement"
	"github.com/MarcoPoloResearchLab/clipshare/internal/feed"
	"github.com/MarcoPoloResearchLab/clipshare/internal/media"
	"github.com/MarcoPoloResearchLab/clipshare/internal/metrics"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/MarcoPoloResearchLab/clipshare/internal/subscriptions"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingSessionIssuer  = errors.New("session issuer dependency required")
	errMissingSessionChecker = errors.New("session validator dependency required")
	errMissingServices       = errors.New("users, catalog, feed, engagement and subscriptions dependencies required")
)

// GoogleVerifier verifies Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// SessionIssuer issues session tokens for signed-in users.
type SessionIssuer interface {
	IssueSessionToken(ctx context.Context, userID string) (string, int64, error)
}

// SessionValidator validates the session cookie of a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// ReadinessCheck is a named dependency check run by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies bundles everything the HTTP layer needs.
// MediaStore, Metrics and ReadinessChecks are optional.
type Dependencies struct {
	GoogleVerifier   GoogleVerifier
	SessionIssuer    SessionIssuer
	SessionValidator SessionValidator
	Users            *users.Service
	Catalog          *catalog.Service
	Feed             *feed.Composer
	Engagement       *engagement.Store
	Subscriptions    *subscriptions.Graph
	MediaStore       media.Store
	IDProvider       model.IDProvider
	Metrics          *metrics.Recorder
	ReadinessChecks  []ReadinessCheck
	AllowedOrigins   []string
	CookieSecure     bool
	Logger           *zap.Logger
}

// NewHTTPHandler wires the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.SessionIssuer == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.SessionValidator == nil {
		return nil, errMissingSessionChecker
	}
	if deps.Users == nil || deps.Catalog == nil || deps.Feed == nil || deps.Engagement == nil || deps.Subscriptions == nil {
		return nil, errMissingServices
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idProvider := deps.IDProvider
	if idProvider == nil {
		idProvider = model.NewUUIDProvider()
	}

	handler := &httpHandler{
		verifier:      deps.GoogleVerifier,
		issuer:        deps.SessionIssuer,
		sessions:      deps.SessionValidator,
		users:         deps.Users,
		catalog:       deps.Catalog,
		feed:          deps.Feed,
		engagement:    deps.Engagement,
		subscriptions: deps.Subscriptions,
		mediaStore:    deps.MediaStore,
		idProvider:    idProvider,
		metrics:       deps.Metrics,
		checks:        deps.ReadinessChecks,
		cookieSecure:  deps.CookieSecure,
		logger:        logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(deps.Metrics.Middleware())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/health/live", handler.handleLive)
	router.GET("/health/ready", handler.handleReady)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	optional := handler.resolveIdentity(false)
	required := handler.resolveIdentity(true)

	api := router.Group(apiPrefix)

	authRoutes := api.Group("/auth")
	authRoutes.POST("/google-login", handler.handleGoogleLogin)
	authRoutes.GET("/me", required, handler.handleMe)
	authRoutes.GET("/signout", handler.handleSignout)

	videoRoutes := api.Group("/videos")
	videoRoutes.GET("", handler.handleRecommendedVideos)
	videoRoutes.POST("", required, handler.handleCreateVideo)
	videoRoutes.GET("/trending", handler.handleTrendingVideos)
	videoRoutes.GET("/search", handler.handleSearchVideos)
	videoRoutes.GET("/:videoId", optional, handler.handleGetVideo)
	videoRoutes.DELETE("/:videoId", required, handler.handleDeleteVideo)
	videoRoutes.GET("/:videoId/view", optional, handler.handleRecordView)
	videoRoutes.GET("/:videoId/like", required, handler.handleToggleLike(engagement.DirectionLike))
	videoRoutes.GET("/:videoId/dislike", required, handler.handleToggleLike(engagement.DirectionDislike))
	videoRoutes.POST("/:videoId/comments", required, handler.handleAddComment)
	videoRoutes.DELETE("/:videoId/comments/:commentId", required, handler.handleDeleteComment)

	userRoutes := api.Group("/users")
	userRoutes.GET("", optional, handler.handleRecommendedChannels)
	userRoutes.PUT("", required, handler.handleEditProfile)
	userRoutes.GET("/liked-videos", required, handler.handleLikedVideos)
	userRoutes.GET("/history", required, handler.handleHistory)
	userRoutes.GET("/feed", required, handler.handleFeed)
	userRoutes.GET("/search", optional, handler.handleSearchUsers)
	userRoutes.GET("/:userId", optional, handler.handleGetProfile)
	userRoutes.GET("/:userId/subscribe", required, handler.handleToggleSubscription)

	api.POST("/media", required, handler.handleUploadMedia)

	return router, nil
}

type httpHandler struct {
	verifier      GoogleVerifier
	issuer        SessionIssuer
	sessions      SessionValidator
	users         *users.Service
	catalog       *catalog.Service
	feed          *feed.Composer
	engagement    *engagement.Store
	subscriptions *subscriptions.Graph
	mediaStore    media.Store
	idProvider    model.IDProvider
	metrics       *metrics.Recorder
	checks        []ReadinessCheck
	cookieSecure  bool
	logger        *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(corsConfig(allowedOrigins))
}

// corsConfig allows credentialed requests from the configured origins.
// An empty list or "*" reflects any origin.
func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "*" {
			origins = nil
			break
		}
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
