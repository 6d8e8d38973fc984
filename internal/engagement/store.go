// Package engagement owns the like/dislike and view relations between users and videos.
package engagement

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("engagement: database connection required")
	errMissingIDProvider = errors.New("engagement: id provider required")
)

const (
	opToggleLike     = "engagement.toggle_like"
	opRecordView     = "engagement.record_view"
	opCount          = "engagement.count"
	opLikeState      = "engagement.like_state"
	opViewCounts     = "engagement.view_counts"
	opLikedVideoIDs  = "engagement.liked_video_ids"
	opViewedVideoIDs = "engagement.viewed_video_ids"
)

// Direction is the signed value of a like record.
type Direction int

const (
	DirectionLike    Direction = 1
	DirectionDislike Direction = -1
)

// Valid reports whether d is a like or a dislike.
func (d Direction) Valid() bool {
	return d == DirectionLike || d == DirectionDislike
}

// LikeState is the caller's current relation to a video.
type LikeState struct {
	Liked    bool `json:"isLiked"`
	Disliked bool `json:"isDisliked"`
}

func stateFor(direction Direction) LikeState {
	return LikeState{Liked: direction == DirectionLike, Disliked: direction == DirectionDislike}
}

// StoreConfig describes the dependencies of the engagement store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider model.IDProvider
	Logger     *zap.Logger
}

// Store persists likes and views.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider model.IDProvider
	logger     *zap.Logger
}

// NewStore constructs an engagement store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ToggleLike applies direction for the user on the video.
// An opposite record is flipped, a matching record is removed, otherwise one is created.
func (s *Store) ToggleLike(ctx context.Context, userID, videoID string, direction Direction) (LikeState, error) {
	if !direction.Valid() {
		return LikeState{}, apperr.New(apperr.KindValidation, opToggleLike, "invalid_direction", "direction must be 1 or -1", nil)
	}

	var state LikeState
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireVideo(tx, opToggleLike, videoID); err != nil {
			return err
		}

		var existing model.Like
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND video_id = ?", userID, videoID).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			likeID, err := s.idProvider.NewID()
			if err != nil {
				s.logError(opToggleLike, "id_generation_failed", err)
				return apperr.Internal(opToggleLike, "id_generation_failed", err)
			}
			like := model.Like{
				ID:        likeID,
				UserID:    userID,
				VideoID:   videoID,
				Direction: int(direction),
				CreatedAt: s.clock().UTC(),
			}
			if err := tx.Create(&like).Error; err != nil {
				s.logError(opToggleLike, "like_insert_failed", err, zap.String("user_id", userID), zap.String("video_id", videoID))
				return apperr.Internal(opToggleLike, "like_insert_failed", err)
			}
			state = stateFor(direction)
		case err != nil:
			s.logError(opToggleLike, "like_select_failed", err, zap.String("user_id", userID), zap.String("video_id", videoID))
			return apperr.Internal(opToggleLike, "like_select_failed", err)
		case Direction(existing.Direction) == direction:
			if err := tx.Delete(&model.Like{}, "id = ?", existing.ID).Error; err != nil {
				s.logError(opToggleLike, "like_delete_failed", err, zap.String("like_id", existing.ID))
				return apperr.Internal(opToggleLike, "like_delete_failed", err)
			}
			state = LikeState{}
		default:
			err := tx.Model(&model.Like{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{"direction": int(direction), "created_at": s.clock().UTC()}).Error
			if err != nil {
				s.logError(opToggleLike, "like_update_failed", err, zap.String("like_id", existing.ID))
				return apperr.Internal(opToggleLike, "like_update_failed", err)
			}
			state = stateFor(direction)
		}
		return nil
	})
	if txErr != nil {
		return LikeState{}, txErr
	}
	return state, nil
}

// RecordView appends a view. An empty userID records an anonymous view.
func (s *Store) RecordView(ctx context.Context, userID, videoID string) error {
	db := s.db.WithContext(ctx)
	if err := requireVideo(db, opRecordView, videoID); err != nil {
		return err
	}
	viewID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRecordView, "id_generation_failed", err)
		return apperr.Internal(opRecordView, "id_generation_failed", err)
	}
	view := model.View{
		ID:        viewID,
		VideoID:   videoID,
		CreatedAt: s.clock().UTC(),
	}
	if userID != "" {
		view.UserID = &userID
	}
	if err := db.Create(&view).Error; err != nil {
		s.logError(opRecordView, "view_insert_failed", err, zap.String("video_id", videoID))
		return apperr.Internal(opRecordView, "view_insert_failed", err)
	}
	return nil
}

// CountLikes counts +1 records on the video.
func (s *Store) CountLikes(ctx context.Context, videoID string) (int64, error) {
	return s.countDirection(ctx, videoID, DirectionLike)
}

// CountDislikes counts -1 records on the video.
func (s *Store) CountDislikes(ctx context.Context, videoID string) (int64, error) {
	return s.countDirection(ctx, videoID, DirectionDislike)
}

// CountViews counts every recorded view of the video.
func (s *Store) CountViews(ctx context.Context, videoID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.View{}).Where("video_id = ?", videoID).Count(&count).Error; err != nil {
		s.logError(opCount, "view_count_failed", err, zap.String("video_id", videoID))
		return 0, apperr.Internal(opCount, "view_count_failed", err)
	}
	return count, nil
}

// LikeState reports whether the user liked or disliked the video. Anonymous callers get zero state.
func (s *Store) LikeState(ctx context.Context, userID, videoID string) (LikeState, error) {
	if userID == "" {
		return LikeState{}, nil
	}
	var like model.Like
	err := s.db.WithContext(ctx).Where("user_id = ? AND video_id = ?", userID, videoID).Take(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LikeState{}, nil
	}
	if err != nil {
		s.logError(opLikeState, "like_select_failed", err, zap.String("user_id", userID), zap.String("video_id", videoID))
		return LikeState{}, apperr.Internal(opLikeState, "like_select_failed", err)
	}
	return stateFor(Direction(like.Direction)), nil
}

// HasViewed reports whether the user has at least one view of the video.
func (s *Store) HasViewed(ctx context.Context, userID, videoID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&model.View{}).
		Where("user_id = ? AND video_id = ?", userID, videoID).
		Count(&count).Error
	if err != nil {
		s.logError(opCount, "view_lookup_failed", err, zap.String("user_id", userID), zap.String("video_id", videoID))
		return false, apperr.Internal(opCount, "view_lookup_failed", err)
	}
	return count > 0, nil
}

// ViewCounts returns view counts for the videos in one grouped query.
// Videos without views are absent from the map.
func (s *Store) ViewCounts(ctx context.Context, videoIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(videoIDs))
	if len(videoIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		VideoID string
		Total   int64
	}
	err := s.db.WithContext(ctx).Model(&model.View{}).
		Select("video_id, COUNT(*) AS total").
		Where("video_id IN ?", videoIDs).
		Group("video_id").
		Scan(&rows).Error
	if err != nil {
		s.logError(opViewCounts, "view_count_failed", err)
		return nil, apperr.Internal(opViewCounts, "view_count_failed", err)
	}
	for _, row := range rows {
		counts[row.VideoID] = row.Total
	}
	return counts, nil
}

// LikedVideoIDs lists videos the user liked, most recent like first.
func (s *Store) LikedVideoIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND direction = ?", userID, int(DirectionLike)).
		Order("created_at DESC").
		Order("id DESC").
		Pluck("video_id", &ids).Error
	if err != nil {
		s.logError(opLikedVideoIDs, "like_select_failed", err, zap.String("user_id", userID))
		return nil, apperr.Internal(opLikedVideoIDs, "like_select_failed", err)
	}
	return ids, nil
}

// ViewedVideoIDs lists videos the user watched, most recent view first, each once.
func (s *Store) ViewedVideoIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.View{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Pluck("video_id", &ids).Error
	if err != nil {
		s.logError(opViewedVideoIDs, "view_select_failed", err, zap.String("user_id", userID))
		return nil, apperr.Internal(opViewedVideoIDs, "view_select_failed", err)
	}
	return dedupe(ids), nil
}

func (s *Store) countDirection(ctx context.Context, videoID string, direction Direction) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Like{}).
		Where("video_id = ? AND direction = ?", videoID, int(direction)).
		Count(&count).Error
	if err != nil {
		s.logError(opCount, "like_count_failed", err, zap.String("video_id", videoID))
		return 0, apperr.Internal(opCount, "like_count_failed", err)
	}
	return count, nil
}

func requireVideo(db *gorm.DB, operation, videoID string) error {
	var count int64
	if err := db.Model(&model.Video{}).Where("id = ?", videoID).Count(&count).Error; err != nil {
		return apperr.Internal(operation, "video_select_failed", err)
	}
	if count == 0 {
		return apperr.New(apperr.KindNotFound, operation, "video_not_found", "video not found", nil)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("engagement store error", attrs...)
}
