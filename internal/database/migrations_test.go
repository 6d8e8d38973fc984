package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsRepairsEngagementRows(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(append(model.All(), &migrationRecord{})...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	createdAt := time.Unix(1700000000, 0).UTC()
	rows := []any{
		&model.Subscription{ID: "sub-self", SubscriberID: "user-1", SubscribedToID: "user-1", CreatedAt: createdAt},
		&model.Subscription{ID: "sub-ok", SubscriberID: "user-1", SubscribedToID: "user-2", CreatedAt: createdAt},
		&model.Like{ID: "like-bad", UserID: "user-1", VideoID: "video-1", Direction: 0, CreatedAt: createdAt},
		&model.Like{ID: "like-ok", UserID: "user-1", VideoID: "video-2", Direction: -1, CreatedAt: createdAt},
	}
	for _, row := range rows {
		if err := database.Create(row).Error; err != nil {
			testContext.Fatalf("failed to insert fixture: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var subscriptionIDs []string
	if err := database.Model(&model.Subscription{}).Order("id").Pluck("id", &subscriptionIDs).Error; err != nil {
		testContext.Fatalf("failed to list subscriptions: %v", err)
	}
	if len(subscriptionIDs) != 1 || subscriptionIDs[0] != "sub-ok" {
		testContext.Fatalf("expected only the valid subscription to remain, got %v", subscriptionIDs)
	}

	var likeIDs []string
	if err := database.Model(&model.Like{}).Order("id").Pluck("id", &likeIDs).Error; err != nil {
		testContext.Fatalf("failed to list likes: %v", err)
	}
	if len(likeIDs) != 1 || likeIDs[0] != "like-ok" {
		testContext.Fatalf("expected only the valid like to remain, got %v", likeIDs)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationRemoveSelfSubscriptions).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "whatever"}, zap.NewNop())
	if err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestOpenMigratesSQLiteSchema(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "open.db")
	db, err := Open(Config{Driver: DriverSQLite, DSN: databasePath}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to unwrap sql db: %v", err)
	}
	defer sqlDB.Close()

	for _, entity := range model.All() {
		if !db.Migrator().HasTable(entity) {
			t.Fatalf("expected table for %T", entity)
		}
	}
	if !db.Migrator().HasIndex(&model.Like{}, "idx_likes_user_video") {
		t.Fatalf("expected unique like index")
	}
}

func TestApplyMigrationsFoldsSearchColumns(t *testing.T) {
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "fold.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(append(model.All(), &migrationRecord{})...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	createdAt := time.Unix(1700000000, 0).UTC()
	if err := database.Create(&model.User{ID: "user-1", Username: "ÜBER Fan", Email: "u@example.com", CreatedAt: createdAt}).Error; err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	if err := database.Create(&model.Video{ID: "video-1", Title: "Éclair Recipe", Description: "CRÈME pâtissière", URL: "https://m/1.mp4", UserID: "user-1", CreatedAt: createdAt}).Error; err != nil {
		t.Fatalf("failed to insert video: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	var user model.User
	if err := database.Where("id = ?", "user-1").Take(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if user.UsernameFolded != "über fan" {
		t.Fatalf("unexpected folded username %q", user.UsernameFolded)
	}
	var video model.Video
	if err := database.Where("id = ?", "video-1").Take(&video).Error; err != nil {
		t.Fatalf("failed to load video: %v", err)
	}
	if video.TitleFolded != "éclair recipe" || video.DescriptionFolded != "crème pâtissière" {
		t.Fatalf("unexpected folded video columns %q %q", video.TitleFolded, video.DescriptionFolded)
	}
}
