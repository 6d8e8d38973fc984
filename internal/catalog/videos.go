package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/media"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const newestFirst = "created_at DESC, id DESC"

// CreateVideo stores a new video owned by ownerID.
// An empty thumbnail is derived from the media URL.
func (s *Service) CreateVideo(ctx context.Context, ownerID string, input NewVideo) (model.Video, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Video{}, apperr.New(apperr.KindValidation, opCreateVideo, "missing_title", "title is required", nil)
	}
	mediaURL := strings.TrimSpace(input.URL)
	if mediaURL == "" {
		return model.Video{}, apperr.New(apperr.KindValidation, opCreateVideo, "missing_url", "video url is required", nil)
	}
	thumbnail := strings.TrimSpace(input.Thumbnail)
	if thumbnail == "" {
		thumbnail = media.ThumbnailURL(mediaURL)
	}

	videoID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateVideo, "id_generation_failed", err)
		return model.Video{}, apperr.Internal(opCreateVideo, "id_generation_failed", err)
	}
	description := strings.TrimSpace(input.Description)
	video := model.Video{
		ID:                videoID,
		Title:             title,
		TitleFolded:       model.Fold(title),
		Description:       description,
		DescriptionFolded: model.Fold(description),
		URL:               mediaURL,
		Thumbnail:         thumbnail,
		UserID:            ownerID,
		CreatedAt:         s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&video).Error; err != nil {
		s.logError(opCreateVideo, "video_insert_failed", err, zap.String("user_id", ownerID))
		return model.Video{}, apperr.Internal(opCreateVideo, "video_insert_failed", err)
	}
	s.logger.Info("video created", zap.String("video_id", video.ID), zap.String("user_id", ownerID))
	return video, nil
}

// GetVideo returns the video enriched for viewerID. An empty viewerID is an anonymous viewer.
func (s *Service) GetVideo(ctx context.Context, videoID, viewerID string) (VideoDetail, error) {
	video, err := s.findVideo(s.db.WithContext(ctx), opGetVideo, videoID)
	if err != nil {
		return VideoDetail{}, err
	}

	detail := VideoDetail{
		Video:       video,
		IsVideoMine: viewerID != "" && viewerID == video.UserID,
	}
	owners, err := s.users.ListByIDs(ctx, []string{video.UserID})
	if err != nil {
		return VideoDetail{}, err
	}
	detail.User = ownerOrStub(owners, video.UserID)

	state, err := s.engagement.LikeState(ctx, viewerID, videoID)
	if err != nil {
		return VideoDetail{}, err
	}
	detail.IsLiked, detail.IsDisliked = state.Liked, state.Disliked

	if detail.IsViewed, err = s.engagement.HasViewed(ctx, viewerID, videoID); err != nil {
		return VideoDetail{}, err
	}
	if detail.LikesCount, err = s.engagement.CountLikes(ctx, videoID); err != nil {
		return VideoDetail{}, err
	}
	if detail.DislikesCount, err = s.engagement.CountDislikes(ctx, videoID); err != nil {
		return VideoDetail{}, err
	}
	if detail.Views, err = s.engagement.CountViews(ctx, videoID); err != nil {
		return VideoDetail{}, err
	}
	if detail.SubscribersCount, err = s.subscriptions.CountSubscribers(ctx, video.UserID); err != nil {
		return VideoDetail{}, err
	}
	if detail.IsSubscribed, err = s.subscriptions.IsSubscribed(ctx, viewerID, video.UserID); err != nil {
		return VideoDetail{}, err
	}

	comments, err := s.commentsFor(ctx, videoID)
	if err != nil {
		return VideoDetail{}, err
	}
	detail.Comments = comments
	detail.CommentsCount = int64(len(comments))
	return detail, nil
}

// DeleteVideo removes the video and every view, like and comment of it in one transaction.
func (s *Service) DeleteVideo(ctx context.Context, videoID, requesterID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		video, err := s.findVideo(tx.Clauses(clause.Locking{Strength: "UPDATE"}), opDeleteVideo, videoID)
		if err != nil {
			return err
		}
		if video.UserID != requesterID {
			return apperr.New(apperr.KindUnauthorized, opDeleteVideo, "not_owner", "you can only delete your own videos", nil)
		}

		cascade := []struct {
			reason string
			entity any
			column string
		}{
			{reason: "view_delete_failed", entity: &model.View{}, column: "video_id"},
			{reason: "like_delete_failed", entity: &model.Like{}, column: "video_id"},
			{reason: "comment_delete_failed", entity: &model.Comment{}, column: "video_id"},
			{reason: "video_delete_failed", entity: &model.Video{}, column: "id"},
		}
		for _, step := range cascade {
			if err := tx.Where(step.column+" = ?", videoID).Delete(step.entity).Error; err != nil {
				s.logError(opDeleteVideo, step.reason, err, zap.String("video_id", videoID))
				return apperr.Internal(opDeleteVideo, step.reason, err)
			}
		}
		s.logger.Info("video deleted", zap.String("video_id", videoID), zap.String("user_id", requesterID))
		return nil
	})
}

// SearchVideos returns videos whose title or description contains query, ignoring case.
func (s *Service) SearchVideos(ctx context.Context, query string) ([]VideoSummary, error) {
	needle := model.Fold(strings.TrimSpace(query))
	if needle == "" {
		return nil, apperr.New(apperr.KindValidation, opSearchVideos, "empty_query", "search query is required", nil)
	}
	var videos []model.Video
	err := s.db.WithContext(ctx).
		Where("INSTR(title_folded, ?) > 0 OR INSTR(description_folded, ?) > 0", needle, needle).
		Order(newestFirst).
		Find(&videos).Error
	if err != nil {
		s.logError(opSearchVideos, "video_select_failed", err)
		return nil, apperr.Internal(opSearchVideos, "video_select_failed", err)
	}
	return s.Summaries(ctx, videos)
}

// RecentVideos lists every video, newest first.
func (s *Service) RecentVideos(ctx context.Context) ([]model.Video, error) {
	var videos []model.Video
	if err := s.db.WithContext(ctx).Order(newestFirst).Find(&videos).Error; err != nil {
		s.logError(opListVideos, "video_select_failed", err)
		return nil, apperr.Internal(opListVideos, "video_select_failed", err)
	}
	return videos, nil
}

// VideosByOwners lists the videos of the given owners, newest first.
func (s *Service) VideosByOwners(ctx context.Context, ownerIDs []string) ([]model.Video, error) {
	if len(ownerIDs) == 0 {
		return []model.Video{}, nil
	}
	var videos []model.Video
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ownerIDs).Order(newestFirst).Find(&videos).Error; err != nil {
		s.logError(opListVideos, "video_select_failed", err)
		return nil, apperr.Internal(opListVideos, "video_select_failed", err)
	}
	return videos, nil
}

// VideosByIDs loads the videos in the order of videoIDs, skipping ids that no longer exist.
func (s *Service) VideosByIDs(ctx context.Context, videoIDs []string) ([]model.Video, error) {
	if len(videoIDs) == 0 {
		return []model.Video{}, nil
	}
	var found []model.Video
	if err := s.db.WithContext(ctx).Where("id IN ?", videoIDs).Find(&found).Error; err != nil {
		s.logError(opListVideos, "video_select_failed", err)
		return nil, apperr.Internal(opListVideos, "video_select_failed", err)
	}
	byID := make(map[string]model.Video, len(found))
	for _, video := range found {
		byID[video.ID] = video
	}
	ordered := make([]model.Video, 0, len(found))
	for _, id := range videoIDs {
		if video, ok := byID[id]; ok {
			ordered = append(ordered, video)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// Summaries attaches owners and view counts to videos, keeping their order.
func (s *Service) Summaries(ctx context.Context, videos []model.Video) ([]VideoSummary, error) {
	summaries := make([]VideoSummary, 0, len(videos))
	if len(videos) == 0 {
		return summaries, nil
	}

	videoIDs := make([]string, 0, len(videos))
	ownerIDs := make([]string, 0, len(videos))
	seenOwners := make(map[string]struct{}, len(videos))
	for _, video := range videos {
		videoIDs = append(videoIDs, video.ID)
		if _, ok := seenOwners[video.UserID]; !ok {
			seenOwners[video.UserID] = struct{}{}
			ownerIDs = append(ownerIDs, video.UserID)
		}
	}

	owners, err := s.users.ListByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}
	views, err := s.engagement.ViewCounts(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	for _, video := range videos {
		summaries = append(summaries, VideoSummary{
			Video: video,
			User:  ownerOrStub(owners, video.UserID),
			Views: views[video.ID],
		})
	}
	return summaries, nil
}

func (s *Service) findVideo(db *gorm.DB, operation, videoID string) (model.Video, error) {
	var video model.Video
	err := db.Where("id = ?", videoID).Take(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Video{}, apperr.New(apperr.KindNotFound, operation, "video_not_found", "video not found", nil)
	}
	if err != nil {
		s.logError(operation, "video_select_failed", err, zap.String("video_id", videoID))
		return model.Video{}, apperr.Internal(operation, "video_select_failed", err)
	}
	return video, nil
}

func ownerOrStub(owners map[string]model.User, userID string) model.User {
	if owner, ok := owners[userID]; ok {
		return owner
	}
	return model.User{ID: userID}
}
