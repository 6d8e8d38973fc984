// Package storetest provides SQLite-backed fixtures for store tests.
package storetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/database"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenDatabase opens a migrated SQLite database in a temporary directory.
func OpenDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "clipshare.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Clock returns a deterministic clock that advances one second per call.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts the clock at start.
func NewClock(start time.Time) *Clock {
	return &Clock{current: start.UTC()}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(time.Second)
	return now
}

// SequentialIDs issues zero-padded ids with a prefix, sortable in issue order.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialIDs constructs an id provider using prefix.
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

func (s *SequentialIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s-%06d", s.prefix, s.next), nil
}

// CreateUser inserts a user row directly.
func CreateUser(t *testing.T, db *gorm.DB, id, username string, createdAt time.Time) model.User {
	t.Helper()
	user := model.User{
		ID:             id,
		Username:       username,
		UsernameFolded: model.Fold(username),
		Email:          id + "@example.com",
		CreatedAt:      createdAt.UTC(),
	}
	if err := db.WithContext(context.Background()).Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", id, err)
	}
	return user
}

// CreateVideo inserts a video row directly.
func CreateVideo(t *testing.T, db *gorm.DB, id, ownerID, title string, createdAt time.Time) model.Video {
	t.Helper()
	video := model.Video{
		ID:          id,
		Title:       title,
		TitleFolded: model.Fold(title),
		URL:         "https://media.example.com/" + id + ".mp4",
		Thumbnail:   "https://media.example.com/" + id + ".jpg",
		UserID:      ownerID,
		CreatedAt:   createdAt.UTC(),
	}
	if err := db.WithContext(context.Background()).Create(&video).Error; err != nil {
		t.Fatalf("failed to create video %s: %v", id, err)
	}
	return video
}
