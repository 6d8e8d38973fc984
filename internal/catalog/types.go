package catalog

import "github.com/MarcoPoloResearchLab/clipshare/internal/model"

// NewVideo is the caller-supplied part of an upload.
type NewVideo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
}

// VideoSummary is a list entry: the video, its owner and its view count.
type VideoSummary struct {
	model.Video
	User  model.User `json:"user"`
	Views int64      `json:"views"`
}

// CommentDetail is a comment together with its author.
type CommentDetail struct {
	model.Comment
	User model.User `json:"user"`
}

// VideoDetail is a single video enriched for the viewer.
type VideoDetail struct {
	model.Video
	User             model.User      `json:"user"`
	IsVideoMine      bool            `json:"isVideoMine"`
	IsLiked          bool            `json:"isLiked"`
	IsDisliked       bool            `json:"isDisliked"`
	IsViewed         bool            `json:"isViewed"`
	IsSubscribed     bool            `json:"isSubscribed"`
	LikesCount       int64           `json:"likesCount"`
	DislikesCount    int64           `json:"dislikesCount"`
	Views            int64           `json:"views"`
	SubscribersCount int64           `json:"subscribersCount"`
	CommentsCount    int64           `json:"commentsCount"`
	Comments         []CommentDetail `json:"comments"`
}

// ChannelSummary is a user enriched with channel statistics relative to a viewer.
type ChannelSummary struct {
	model.User
	SubscribersCount int64 `json:"subscribersCount"`
	VideosCount      int64 `json:"videosCount"`
	IsSubscribed     bool  `json:"isSubscribed"`
	IsMe             bool  `json:"isMe"`
}

// Profile is a channel page.
type Profile struct {
	model.User
	SubscribersCount int64            `json:"subscribersCount"`
	IsSubscribed     bool             `json:"isSubscribed"`
	IsMe             bool             `json:"isMe"`
	Channels         []ChannelSummary `json:"channels"`
	Videos           []VideoSummary   `json:"videos"`
}
