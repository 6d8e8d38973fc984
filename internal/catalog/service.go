// Package catalog owns videos and comments and composes the enriched
// video, channel and profile views served to clients.
package catalog

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/engagement"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/MarcoPoloResearchLab/clipshare/internal/subscriptions"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase      = errors.New("catalog: database connection required")
	errMissingIDProvider    = errors.New("catalog: id provider required")
	errMissingCollaborators = errors.New("catalog: users, engagement and subscriptions are required")
)

const (
	opCreateVideo   = "catalog.create_video"
	opGetVideo      = "catalog.get_video"
	opDeleteVideo   = "catalog.delete_video"
	opAddComment    = "catalog.add_comment"
	opDeleteComment = "catalog.delete_comment"
	opSearchVideos  = "catalog.search_videos"
	opListVideos    = "catalog.list_videos"
	opChannels      = "catalog.channels"
)

// ServiceConfig describes the dependencies of the catalog.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	IDProvider    model.IDProvider
	Logger        *zap.Logger
	Users         *users.Service
	Engagement    *engagement.Store
	Subscriptions *subscriptions.Graph
}

// Service implements the video catalog.
type Service struct {
	db            *gorm.DB
	clock         func() time.Time
	idProvider    model.IDProvider
	logger        *zap.Logger
	users         *users.Service
	engagement    *engagement.Store
	subscriptions *subscriptions.Graph
}

// NewService constructs the catalog.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Users == nil || cfg.Engagement == nil || cfg.Subscriptions == nil {
		return nil, errMissingCollaborators
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		clock:         clock,
		idProvider:    cfg.IDProvider,
		logger:        logger,
		users:         cfg.Users,
		engagement:    cfg.Engagement,
		subscriptions: cfg.Subscriptions,
	}, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog service error", attrs...)
}
