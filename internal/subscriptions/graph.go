// Package subscriptions owns the directed subscriber -> channel relation.
package subscriptions

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
	errMissingDatabase   = errors.New("subscriptions: database connection required")
	errMissingIDProvider = errors.New("subscriptions: id provider required")
)

const (
	opToggle           = "subscriptions.toggle"
	opIsSubscribed     = "subscriptions.is_subscribed"
	opCountSubscribers = "subscriptions.count_subscribers"
	opSubscriptionsOf  = "subscriptions.subscriptions_of"
)

// GraphConfig describes the dependencies of the subscription graph.
type GraphConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider model.IDProvider
	Logger     *zap.Logger
}

// Graph persists subscription edges.
type Graph struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider model.IDProvider
	logger     *zap.Logger
}

// NewGraph constructs a subscription graph.
func NewGraph(cfg GraphConfig) (*Graph, error) {
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
	return &Graph{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Toggle subscribes subscriberID to targetID, or unsubscribes when the edge exists.
// It returns whether the edge exists afterwards.
func (g *Graph) Toggle(ctx context.Context, subscriberID, targetID string) (bool, error) {
	if subscriberID == targetID {
		return false, apperr.New(apperr.KindInvalidOperation, opToggle, "self_subscription", "you cannot subscribe to yourself", nil)
	}

	var subscribed bool
	txErr := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var targets int64
		if err := tx.Model(&model.User{}).Where("id = ?", targetID).Count(&targets).Error; err != nil {
			g.logError(opToggle, "user_select_failed", err, zap.String("target_id", targetID))
			return apperr.Internal(opToggle, "user_select_failed", err)
		}
		if targets == 0 {
			return apperr.New(apperr.KindNotFound, opToggle, "user_not_found", "user not found", nil)
		}

		var existing model.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subscriber_id = ? AND subscribed_to_id = ?", subscriberID, targetID).
			Take(&existing).Error
		if err == nil {
			if err := tx.Delete(&model.Subscription{}, "id = ?", existing.ID).Error; err != nil {
				g.logError(opToggle, "subscription_delete_failed", err, zap.String("subscription_id", existing.ID))
				return apperr.Internal(opToggle, "subscription_delete_failed", err)
			}
			subscribed = false
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			g.logError(opToggle, "subscription_select_failed", err,
				zap.String("subscriber_id", subscriberID),
				zap.String("target_id", targetID))
			return apperr.Internal(opToggle, "subscription_select_failed", err)
		}

		edgeID, err := g.idProvider.NewID()
		if err != nil {
			g.logError(opToggle, "id_generation_failed", err)
			return apperr.Internal(opToggle, "id_generation_failed", err)
		}
		edge := model.Subscription{
			ID:             edgeID,
			SubscriberID:   subscriberID,
			SubscribedToID: targetID,
			CreatedAt:      g.clock().UTC(),
		}
		if err := tx.Create(&edge).Error; err != nil {
			g.logError(opToggle, "subscription_insert_failed", err,
				zap.String("subscriber_id", subscriberID),
				zap.String("target_id", targetID))
			return apperr.Internal(opToggle, "subscription_insert_failed", err)
		}
		subscribed = true
		return nil
	})
	if txErr != nil {
		return false, txErr
	}
	return subscribed, nil
}

// IsSubscribed reports whether the edge exists. Anonymous subscribers are never subscribed.
func (g *Graph) IsSubscribed(ctx context.Context, subscriberID, targetID string) (bool, error) {
	if subscriberID == "" {
		return false, nil
	}
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscriber_id = ? AND subscribed_to_id = ?", subscriberID, targetID).
		Count(&count).Error
	if err != nil {
		g.logError(opIsSubscribed, "subscription_count_failed", err)
		return false, apperr.Internal(opIsSubscribed, "subscription_count_failed", err)
	}
	return count > 0, nil
}

// CountSubscribers counts inbound edges of targetID.
func (g *Graph) CountSubscribers(ctx context.Context, targetID string) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscribed_to_id = ?", targetID).
		Count(&count).Error
	if err != nil {
		g.logError(opCountSubscribers, "subscription_count_failed", err, zap.String("target_id", targetID))
		return 0, apperr.Internal(opCountSubscribers, "subscription_count_failed", err)
	}
	return count, nil
}

// SubscriberCounts counts inbound edges for each target in one grouped query.
func (g *Graph) SubscriberCounts(ctx context.Context, targetIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(targetIDs))
	if len(targetIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		SubscribedToID string
		Total          int64
	}
	err := g.db.WithContext(ctx).Model(&model.Subscription{}).
		Select("subscribed_to_id, COUNT(*) AS total").
		Where("subscribed_to_id IN ?", targetIDs).
		Group("subscribed_to_id").
		Scan(&rows).Error
	if err != nil {
		g.logError(opCountSubscribers, "subscription_count_failed", err)
		return nil, apperr.Internal(opCountSubscribers, "subscription_count_failed", err)
	}
	for _, row := range rows {
		counts[row.SubscribedToID] = row.Total
	}
	return counts, nil
}

// SubscriptionsOf lists the channels subscriberID follows, oldest subscription first.
func (g *Graph) SubscriptionsOf(ctx context.Context, subscriberID string) ([]string, error) {
	if subscriberID == "" {
		return nil, nil
	}
	var ids []string
	err := g.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscriber_id = ?", subscriberID).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("subscribed_to_id", &ids).Error
	if err != nil {
		g.logError(opSubscriptionsOf, "subscription_select_failed", err, zap.String("subscriber_id", subscriberID))
		return nil, apperr.Internal(opSubscriptionsOf, "subscription_select_failed", err)
	}
	return ids, nil
}

// SubscribedSet returns the subset of targetIDs that subscriberID follows.
func (g *Graph) SubscribedSet(ctx context.Context, subscriberID string, targetIDs []string) (map[string]bool, error) {
	set := make(map[string]bool, len(targetIDs))
	if subscriberID == "" || len(targetIDs) == 0 {
		return set, nil
	}
	var ids []string
	err := g.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscriber_id = ? AND subscribed_to_id IN ?", subscriberID, targetIDs).
		Pluck("subscribed_to_id", &ids).Error
	if err != nil {
		g.logError(opIsSubscribed, "subscription_select_failed", err, zap.String("subscriber_id", subscriberID))
		return nil, apperr.Internal(opIsSubscribed, "subscription_select_failed", err)
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (g *Graph) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	g.logger.Error("subscription graph error", attrs...)
}
