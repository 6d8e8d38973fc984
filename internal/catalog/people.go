package catalog

import (
	"context"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
)

// SearchUsers returns channels whose name contains query, enriched relative to viewerID.
func (s *Service) SearchUsers(ctx context.Context, query, viewerID string) ([]ChannelSummary, error) {
	found, err := s.users.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Channels(ctx, found, viewerID)
}

// GetProfile returns the channel page of userID as seen by viewerID.
func (s *Service) GetProfile(ctx context.Context, userID, viewerID string) (Profile, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{
		User: user,
		IsMe: viewerID != "" && viewerID == userID,
	}
	if profile.SubscribersCount, err = s.subscriptions.CountSubscribers(ctx, userID); err != nil {
		return Profile{}, err
	}
	if profile.IsSubscribed, err = s.subscriptions.IsSubscribed(ctx, viewerID, userID); err != nil {
		return Profile{}, err
	}

	followedIDs, err := s.subscriptions.SubscriptionsOf(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	followed, err := s.users.ListByIDs(ctx, followedIDs)
	if err != nil {
		return Profile{}, err
	}
	channels := make([]model.User, 0, len(followedIDs))
	for _, id := range followedIDs {
		if channel, ok := followed[id]; ok {
			channels = append(channels, channel)
		}
	}
	if profile.Channels, err = s.Channels(ctx, channels, viewerID); err != nil {
		return Profile{}, err
	}

	videos, err := s.VideosByOwners(ctx, []string{userID})
	if err != nil {
		return Profile{}, err
	}
	if profile.Videos, err = s.Summaries(ctx, videos); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// EditProfile updates the caller's own profile fields.
func (s *Service) EditProfile(ctx context.Context, userID string, update users.ProfileUpdate) (model.User, error) {
	return s.users.UpdateProfile(ctx, userID, update)
}

// Channels enriches users with subscriber and video counts relative to viewerID, keeping their order.
func (s *Service) Channels(ctx context.Context, people []model.User, viewerID string) ([]ChannelSummary, error) {
	summaries := make([]ChannelSummary, 0, len(people))
	if len(people) == 0 {
		return summaries, nil
	}
	ids := make([]string, 0, len(people))
	for _, person := range people {
		ids = append(ids, person.ID)
	}

	subscribers, err := s.subscriptions.SubscriberCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	subscribed, err := s.subscriptions.SubscribedSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	videoCounts, err := s.videoCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, person := range people {
		summaries = append(summaries, ChannelSummary{
			User:             person,
			SubscribersCount: subscribers[person.ID],
			VideosCount:      videoCounts[person.ID],
			IsSubscribed:     subscribed[person.ID],
			IsMe:             viewerID != "" && viewerID == person.ID,
		})
	}
	return summaries, nil
}

func (s *Service) videoCounts(ctx context.Context, ownerIDs []string) (map[string]int64, error) {
	var rows []struct {
		UserID string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&model.Video{}).
		Select("user_id, COUNT(*) AS total").
		Where("user_id IN ?", ownerIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		s.logError(opChannels, "video_count_failed", err)
		return nil, apperr.Internal(opChannels, "video_count_failed", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Total
	}
	return counts, nil
}
