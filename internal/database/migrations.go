package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationRemoveSelfSubscriptions = "2026-10-01_remove_self_subscriptions"
	migrationRemoveInvalidLikes      = "2026-10-01_remove_invalid_like_directions"
	migrationFoldSearchColumns       = "2026-10-18_fold_search_columns"

	foldBatchSize = 200
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRemoveSelfSubscriptions, apply: removeSelfSubscriptions},
		{name: migrationRemoveInvalidLikes, apply: removeInvalidLikeDirections},
		{name: migrationFoldSearchColumns, apply: foldSearchColumns},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Subscribing to yourself is rejected at the service layer; rows imported from
// older data sets are purged here.
func removeSelfSubscriptions(db *gorm.DB) error {
	return db.Where("subscriber_id = subscribed_to_id").Delete(&model.Subscription{}).Error
}

func removeInvalidLikeDirections(db *gorm.DB) error {
	return db.Where("direction NOT IN ?", []int{-1, 1}).Delete(&model.Like{}).Error
}

// foldSearchColumns fills the folded search columns of rows written before they existed.
func foldSearchColumns(db *gorm.DB) error {
	var users []model.User
	err := db.Select("id", "username").FindInBatches(&users, foldBatchSize, func(_ *gorm.DB, _ int) error {
		for _, user := range users {
			if err := db.Model(&model.User{}).Where("id = ?", user.ID).
				UpdateColumn("username_folded", model.Fold(user.Username)).Error; err != nil {
				return err
			}
		}
		return nil
	}).Error
	if err != nil {
		return err
	}

	var videos []model.Video
	return db.Select("id", "title", "description").FindInBatches(&videos, foldBatchSize, func(_ *gorm.DB, _ int) error {
		for _, video := range videos {
			if err := db.Model(&model.Video{}).Where("id = ?", video.ID).UpdateColumns(map[string]any{
				"title_folded":       model.Fold(video.Title),
				"description_folded": model.Fold(video.Description),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	}).Error
}
