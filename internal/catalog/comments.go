package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddComment stores a comment by authorID on the video and returns it with its author.
func (s *Service) AddComment(ctx context.Context, videoID, authorID, text string) (CommentDetail, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return CommentDetail{}, apperr.New(apperr.KindValidation, opAddComment, "empty_text", "comment text is required", nil)
	}
	if _, err := s.findVideo(s.db.WithContext(ctx), opAddComment, videoID); err != nil {
		return CommentDetail{}, err
	}
	author, err := s.users.Get(ctx, authorID)
	if err != nil {
		return CommentDetail{}, err
	}

	commentID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddComment, "id_generation_failed", err)
		return CommentDetail{}, apperr.Internal(opAddComment, "id_generation_failed", err)
	}
	comment := model.Comment{
		ID:        commentID,
		Text:      body,
		UserID:    authorID,
		VideoID:   videoID,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		s.logError(opAddComment, "comment_insert_failed", err, zap.String("video_id", videoID), zap.String("user_id", authorID))
		return CommentDetail{}, apperr.Internal(opAddComment, "comment_insert_failed", err)
	}
	return CommentDetail{Comment: comment, User: author}, nil
}

// DeleteComment removes a comment on videoID. Only its author may delete it.
func (s *Service) DeleteComment(ctx context.Context, videoID, commentID, requesterID string) error {
	db := s.db.WithContext(ctx)
	var comment model.Comment
	err := db.Where("id = ?", commentID).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && videoID != "" && comment.VideoID != videoID) {
		return apperr.New(apperr.KindNotFound, opDeleteComment, "comment_not_found", "comment not found", nil)
	}
	if err != nil {
		s.logError(opDeleteComment, "comment_select_failed", err, zap.String("comment_id", commentID))
		return apperr.Internal(opDeleteComment, "comment_select_failed", err)
	}
	if comment.UserID != requesterID {
		return apperr.New(apperr.KindUnauthorized, opDeleteComment, "not_author", "you can only delete your own comments", nil)
	}
	if err := db.Where("id = ?", commentID).Delete(&model.Comment{}).Error; err != nil {
		s.logError(opDeleteComment, "comment_delete_failed", err, zap.String("comment_id", commentID))
		return apperr.Internal(opDeleteComment, "comment_delete_failed", err)
	}
	return nil
}

func (s *Service) commentsFor(ctx context.Context, videoID string) ([]CommentDetail, error) {
	var comments []model.Comment
	err := s.db.WithContext(ctx).Where("video_id = ?", videoID).Order(newestFirst).Find(&comments).Error
	if err != nil {
		s.logError(opGetVideo, "comment_select_failed", err, zap.String("video_id", videoID))
		return nil, apperr.Internal(opGetVideo, "comment_select_failed", err)
	}

	authorIDs := make([]string, 0, len(comments))
	for _, comment := range comments {
		authorIDs = append(authorIDs, comment.UserID)
	}
	authors, err := s.users.ListByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	details := make([]CommentDetail, 0, len(comments))
	for _, comment := range comments {
		details = append(details, CommentDetail{Comment: comment, User: ownerOrStub(authors, comment.UserID)})
	}
	return details, nil
}
