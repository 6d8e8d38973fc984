// Package model holds the persisted clipshare entities.
package model

import (
	"strings"
	"time"
)

// User is a channel owner and viewer account.
// UsernameFolded holds Fold(Username) for case-insensitive search.
type User struct {
	ID             string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Username       string    `gorm:"column:username;size:190;not null;index" json:"username"`
	UsernameFolded string    `gorm:"column:username_folded;size:190;not null;default:''" json:"-"`
	Email          string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	Avatar         string    `gorm:"column:avatar;size:512" json:"avatar"`
	Cover          string    `gorm:"column:cover;size:512" json:"cover"`
	About          string    `gorm:"column:about;type:text" json:"about"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Video is an uploaded clip owned by a single user.
// TitleFolded and DescriptionFolded hold the Fold forms used by search.
type Video struct {
	ID                string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Title             string    `gorm:"column:title;size:512;not null" json:"title"`
	TitleFolded       string    `gorm:"column:title_folded;size:512;not null;default:''" json:"-"`
	Description       string    `gorm:"column:description;type:text" json:"description"`
	DescriptionFolded string    `gorm:"column:description_folded;type:text" json:"-"`
	URL               string    `gorm:"column:url;size:1024;not null" json:"url"`
	Thumbnail         string    `gorm:"column:thumbnail;size:1024" json:"thumbnail"`
	UserID            string    `gorm:"column:user_id;size:36;not null;index:idx_videos_user_created,priority:1" json:"userId"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;index;index:idx_videos_user_created,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Video) TableName() string {
	return "videos"
}

// Comment is a text reply on a video.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Text      string    `gorm:"column:text;type:text;not null" json:"text"`
	UserID    string    `gorm:"column:user_id;size:36;not null;index" json:"userId"`
	VideoID   string    `gorm:"column:video_id;size:36;not null;index:idx_comments_video_created,priority:1" json:"videoId"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_comments_video_created,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// View records a single playback. Anonymous views carry no user.
type View struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	UserID    *string   `gorm:"column:user_id;size:36;index:idx_views_user_created,priority:1" json:"userId"`
	VideoID   string    `gorm:"column:video_id;size:36;not null;index" json:"videoId"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_views_user_created,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (View) TableName() string {
	return "views"
}

// Like stores a user's like (+1) or dislike (-1) on a video. One row per pair.
type Like struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_likes_user_video,priority:1" json:"userId"`
	VideoID   string    `gorm:"column:video_id;size:36;not null;uniqueIndex:idx_likes_user_video,priority:2;index" json:"videoId"`
	Direction int       `gorm:"column:direction;not null" json:"like"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Like) TableName() string {
	return "video_likes"
}

// Subscription is a directed subscriber -> channel edge. One row per ordered pair.
type Subscription struct {
	ID             string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	SubscriberID   string    `gorm:"column:subscriber_id;size:36;not null;uniqueIndex:idx_subscriptions_pair,priority:1" json:"subscriberId"`
	SubscribedToID string    `gorm:"column:subscribed_to_id;size:36;not null;uniqueIndex:idx_subscriptions_pair,priority:2;index" json:"subscribedToId"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Subscription) TableName() string {
	return "subscriptions"
}

// Fold lowercases s across all of Unicode. Search compares folded columns
// against a folded needle.
func Fold(s string) string {
	return strings.ToLower(s)
}

// All lists every entity for schema migration.
func All() []any {
	return []any{&User{}, &Video{}, &Comment{}, &View{}, &Like{}, &Subscription{}}
}
