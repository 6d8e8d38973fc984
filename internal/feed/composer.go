// Package feed derives the list-shaped video and channel views.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/catalog"
	"github.com/MarcoPoloResearchLab/clipshare/internal/engagement"
	"github.com/MarcoPoloResearchLab/clipshare/internal/subscriptions"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
	"go.uber.org/zap"
)

const (
	trendingCacheKey        = "feed:trending"
	recommendedChannelLimit = 10
)

var errMissingCollaborators = errors.New("feed: catalog, users, engagement and subscriptions are required")

// ListCache stores serialized lists for a bounded time.
type ListCache interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// ComposerConfig describes the dependencies of the feed composer.
// Cache is optional; without it trending is computed on every call.
type ComposerConfig struct {
	Catalog       *catalog.Service
	Users         *users.Service
	Engagement    *engagement.Store
	Subscriptions *subscriptions.Graph
	Cache         ListCache
	TrendingTTL   time.Duration
	Logger        *zap.Logger
}

// Composer builds feeds from the catalog, the engagement store and the subscription graph.
type Composer struct {
	catalog       *catalog.Service
	users         *users.Service
	engagement    *engagement.Store
	subscriptions *subscriptions.Graph
	cache         ListCache
	trendingTTL   time.Duration
	logger        *zap.Logger
}

// NewComposer constructs a feed composer.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.Catalog == nil || cfg.Users == nil || cfg.Engagement == nil || cfg.Subscriptions == nil {
		return nil, errMissingCollaborators
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		catalog:       cfg.Catalog,
		users:         cfg.Users,
		engagement:    cfg.Engagement,
		subscriptions: cfg.Subscriptions,
		cache:         cfg.Cache,
		trendingTTL:   cfg.TrendingTTL,
		logger:        logger,
	}, nil
}

// Recommended lists every video, newest first.
func (c *Composer) Recommended(ctx context.Context) ([]catalog.VideoSummary, error) {
	videos, err := c.catalog.RecentVideos(ctx)
	if err != nil {
		return nil, err
	}
	return c.catalog.Summaries(ctx, videos)
}

// Trending lists every video by view count, most viewed first. Equal counts keep recency order.
// With a cache configured, counts may lag recorded views by up to the trending TTL.
func (c *Composer) Trending(ctx context.Context) ([]catalog.VideoSummary, error) {
	if cached, ok := c.cachedTrending(ctx); ok {
		return cached, nil
	}

	summaries, err := c.Recommended(ctx)
	if err != nil {
		return nil, err
	}
	sortByViews(summaries)

	c.storeTrending(ctx, summaries)
	return summaries, nil
}

// InvalidateTrending drops the cached trending list.
func (c *Composer) InvalidateTrending(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, trendingCacheKey); err != nil {
		c.logger.Warn("trending cache invalidation failed", zap.Error(err))
	}
}

// FeedFor lists videos from the channels subscriberID follows, newest first.
func (c *Composer) FeedFor(ctx context.Context, subscriberID string) ([]catalog.VideoSummary, error) {
	channelIDs, err := c.subscriptions.SubscriptionsOf(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if len(channelIDs) == 0 {
		return []catalog.VideoSummary{}, nil
	}
	videos, err := c.catalog.VideosByOwners(ctx, channelIDs)
	if err != nil {
		return nil, err
	}
	return c.catalog.Summaries(ctx, videos)
}

// LikedVideosOf lists the videos userID liked, most recent like first.
func (c *Composer) LikedVideosOf(ctx context.Context, userID string) ([]catalog.VideoSummary, error) {
	videoIDs, err := c.engagement.LikedVideoIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.summariesInOrder(ctx, videoIDs)
}

// HistoryOf lists the videos userID watched, most recent view first, each once.
func (c *Composer) HistoryOf(ctx context.Context, userID string) ([]catalog.VideoSummary, error) {
	videoIDs, err := c.engagement.ViewedVideoIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.summariesInOrder(ctx, videoIDs)
}

// RecommendedChannels lists up to ten channels other than viewerID.
func (c *Composer) RecommendedChannels(ctx context.Context, viewerID string) ([]catalog.ChannelSummary, error) {
	people, err := c.users.ListExcluding(ctx, viewerID, recommendedChannelLimit)
	if err != nil {
		return nil, err
	}
	return c.catalog.Channels(ctx, people, viewerID)
}

func (c *Composer) summariesInOrder(ctx context.Context, videoIDs []string) ([]catalog.VideoSummary, error) {
	videos, err := c.catalog.VideosByIDs(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	return c.catalog.Summaries(ctx, videos)
}

func (c *Composer) cachedTrending(ctx context.Context) ([]catalog.VideoSummary, bool) {
	if c.cache == nil {
		return nil, false
	}
	payload, found, err := c.cache.Load(ctx, trendingCacheKey)
	if err != nil {
		c.logger.Warn("trending cache read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var summaries []catalog.VideoSummary
	if err := json.Unmarshal(payload, &summaries); err != nil {
		c.logger.Warn("trending cache entry unreadable", zap.Error(err))
		return nil, false
	}
	return summaries, true
}

func (c *Composer) storeTrending(ctx context.Context, summaries []catalog.VideoSummary) {
	if c.cache == nil || c.trendingTTL <= 0 {
		return
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		c.logger.Warn("trending cache encode failed", zap.Error(err))
		return
	}
	if err := c.cache.Store(ctx, trendingCacheKey, payload, c.trendingTTL); err != nil {
		c.logger.Warn("trending cache write failed", zap.Error(err))
	}
}

// sortByViews orders by view count descending. The sort is stable so the
// incoming newest-first order breaks ties.
func sortByViews(summaries []catalog.VideoSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Views > summaries[j].Views
	})
}
