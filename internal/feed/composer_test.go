package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/catalog"
	"github.com/MarcoPoloResearchLab/clipshare/internal/engagement"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/MarcoPoloResearchLab/clipshare/internal/storetest"
	"github.com/MarcoPoloResearchLab/clipshare/internal/subscriptions"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *memoryCache) Store(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.stores++
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

type feedFixture struct {
	composer      *Composer
	catalog       *catalog.Service
	engagement    *engagement.Store
	subscriptions *subscriptions.Graph
}

func newFeedFixture(t *testing.T, cache ListCache) feedFixture {
	t.Helper()
	db := storetest.OpenDatabase(t)
	clock := storetest.NewClock(time.Unix(1700000000, 0))
	ids := storetest.NewSequentialIDs("id")

	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock.Now, IDProvider: ids})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	engagementStore, err := engagement.NewStore(engagement.StoreConfig{Database: db, Clock: clock.Now, IDProvider: ids})
	if err != nil {
		t.Fatalf("engagement: %v", err)
	}
	graph, err := subscriptions.NewGraph(subscriptions.GraphConfig{Database: db, Clock: clock.Now, IDProvider: ids})
	if err != nil {
		t.Fatalf("subscriptions: %v", err)
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:      db,
		Clock:         clock.Now,
		IDProvider:    ids,
		Users:         userService,
		Engagement:    engagementStore,
		Subscriptions: graph,
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	composer, err := NewComposer(ComposerConfig{
		Catalog:       catalogService,
		Users:         userService,
		Engagement:    engagementStore,
		Subscriptions: graph,
		Cache:         cache,
		TrendingTTL:   time.Minute,
	})
	if err != nil {
		t.Fatalf("composer: %v", err)
	}

	epoch := time.Unix(1600000000, 0)
	for index, id := range []string{"alice", "bob", "carol"} {
		storetest.CreateUser(t, db, id, id, epoch.Add(time.Duration(index)*time.Hour))
	}
	return feedFixture{composer: composer, catalog: catalogService, engagement: engagementStore, subscriptions: graph}
}

func (f feedFixture) upload(t *testing.T, ownerID, title string) model.Video {
	t.Helper()
	video, err := f.catalog.CreateVideo(context.Background(), ownerID, catalog.NewVideo{
		Title: title,
		URL:   "https://media.example.com/" + title + ".mp4",
	})
	if err != nil {
		t.Fatalf("create video failed: %v", err)
	}
	return video
}

func (f feedFixture) view(t *testing.T, viewerID, videoID string, times int) {
	t.Helper()
	for index := 0; index < times; index++ {
		if err := f.engagement.RecordView(context.Background(), viewerID, videoID); err != nil {
			t.Fatalf("record view failed: %v", err)
		}
	}
}

func titles(summaries []catalog.VideoSummary) []string {
	result := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, summary.Title)
	}
	return result
}

func assertTitles(t *testing.T, label string, summaries []catalog.VideoSummary, want ...string) {
	t.Helper()
	got := titles(summaries)
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("%s: expected %v, got %v", label, want, got)
		}
	}
}

func TestRecommendedIsNewestFirstWithViews(t *testing.T) {
	fixture := newFeedFixture(t, nil)
	fixture.upload(t, "alice", "old")
	recent := fixture.upload(t, "bob", "new")
	fixture.view(t, "carol", recent.ID, 2)

	recommended, err := fixture.composer.Recommended(context.Background())
	if err != nil {
		t.Fatalf("recommended failed: %v", err)
	}
	assertTitles(t, "recommended", recommended, "new", "old")
	if recommended[0].Views != 2 || recommended[1].Views != 0 {
		t.Fatalf("unexpected view counts %+v", recommended)
	}
	if recommended[0].User.ID != "bob" {
		t.Fatalf("expected owner attached, got %+v", recommended[0].User)
	}
}

func TestTrendingSortsByViewsAndBreaksTiesByRecency(t *testing.T) {
	fixture := newFeedFixture(t, nil)
	first := fixture.upload(t, "alice", "first")
	second := fixture.upload(t, "alice", "second")
	third := fixture.upload(t, "bob", "third")
	fixture.upload(t, "bob", "fourth")

	fixture.view(t, "carol", first.ID, 3)
	fixture.view(t, "carol", second.ID, 1)
	fixture.view(t, "", third.ID, 1)

	trending, err := fixture.composer.Trending(context.Background())
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	assertTitles(t, "trending", trending, "first", "third", "second", "fourth")
}

func TestTrendingUsesCacheUntilInvalidated(t *testing.T) {
	cache := newMemoryCache()
	fixture := newFeedFixture(t, cache)
	ctx := context.Background()

	fixture.upload(t, "alice", "cached")
	initial, err := fixture.composer.Trending(ctx)
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	assertTitles(t, "initial", initial, "cached")

	fixture.upload(t, "bob", "fresh")
	stale, err := fixture.composer.Trending(ctx)
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	assertTitles(t, "stale", stale, "cached")
	if cache.stores != 1 {
		t.Fatalf("expected a single cache write, got %d", cache.stores)
	}

	fixture.composer.InvalidateTrending(ctx)
	refreshed, err := fixture.composer.Trending(ctx)
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	assertTitles(t, "refreshed", refreshed, "fresh", "cached")
}

func TestCachedTrendingViewCountsLagUntilInvalidated(t *testing.T) {
	fixture := newFeedFixture(t, newMemoryCache())
	ctx := context.Background()

	video := fixture.upload(t, "alice", "watched")
	if _, err := fixture.composer.Trending(ctx); err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if err := fixture.engagement.RecordView(ctx, "bob", video.ID); err != nil {
		t.Fatalf("record view failed: %v", err)
	}

	cached, err := fixture.composer.Trending(ctx)
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if len(cached) != 1 || cached[0].Views != 0 {
		t.Fatalf("expected the cached count to lag, got %+v", cached)
	}

	fixture.composer.InvalidateTrending(ctx)
	fresh, err := fixture.composer.Trending(ctx)
	if err != nil {
		t.Fatalf("trending failed: %v", err)
	}
	if len(fresh) != 1 || fresh[0].Views != 1 {
		t.Fatalf("expected the recorded view after invalidation, got %+v", fresh)
	}
}

func TestFeedForContainsOnlySubscribedChannels(t *testing.T) {
	fixture := newFeedFixture(t, nil)
	ctx := context.Background()

	if _, err := fixture.subscriptions.Toggle(ctx, "alice", "bob"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	fixture.upload(t, "bob", "after-subscribe")
	fixture.upload(t, "carol", "unrelated")

	aliceFeed, err := fixture.composer.FeedFor(ctx, "alice")
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	assertTitles(t, "alice feed", aliceFeed, "after-subscribe")

	carolFeed, err := fixture.composer.FeedFor(ctx, "carol")
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if carolFeed == nil || len(carolFeed) != 0 {
		t.Fatalf("expected an empty, non-nil feed, got %#v", carolFeed)
	}
}

func TestLikedVideosAndHistory(t *testing.T) {
	fixture := newFeedFixture(t, nil)
	ctx := context.Background()

	first := fixture.upload(t, "alice", "first")
	second := fixture.upload(t, "alice", "second")

	fixture.view(t, "bob", first.ID, 1)
	fixture.view(t, "bob", second.ID, 1)
	fixture.view(t, "bob", first.ID, 1)

	history, err := fixture.composer.HistoryOf(ctx, "bob")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	assertTitles(t, "history", history, "first", "second")
	if history[0].Views != 2 {
		t.Fatalf("expected total views on history entries, got %d", history[0].Views)
	}

	if _, err := fixture.engagement.ToggleLike(ctx, "bob", second.ID, engagement.DirectionLike); err != nil {
		t.Fatalf("like failed: %v", err)
	}
	if _, err := fixture.engagement.ToggleLike(ctx, "bob", first.ID, engagement.DirectionLike); err != nil {
		t.Fatalf("like failed: %v", err)
	}
	liked, err := fixture.composer.LikedVideosOf(ctx, "bob")
	if err != nil {
		t.Fatalf("liked videos failed: %v", err)
	}
	assertTitles(t, "liked", liked, "first", "second")

	if err := fixture.catalog.DeleteVideo(ctx, first.ID, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	history, err = fixture.composer.HistoryOf(ctx, "bob")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	assertTitles(t, "history after delete", history, "second")
}

func TestRecommendedChannelsExcludeCaller(t *testing.T) {
	fixture := newFeedFixture(t, nil)
	ctx := context.Background()

	fixture.upload(t, "bob", "b")
	if _, err := fixture.subscriptions.Toggle(ctx, "alice", "bob"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	channels, err := fixture.composer.RecommendedChannels(ctx, "alice")
	if err != nil {
		t.Fatalf("recommended channels failed: %v", err)
	}
	if len(channels) != 2 || channels[0].ID != "bob" || channels[1].ID != "carol" {
		t.Fatalf("unexpected channels %+v", channels)
	}
	if !channels[0].IsSubscribed || channels[0].SubscribersCount != 1 || channels[0].VideosCount != 1 {
		t.Fatalf("unexpected enrichment %+v", channels[0])
	}
	if channels[1].IsSubscribed || channels[1].IsMe {
		t.Fatalf("unexpected flags %+v", channels[1])
	}
}
