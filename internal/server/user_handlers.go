package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/clipshare/internal/metrics"
	"github.com/MarcoPoloResearchLab/clipshare/internal/users"
	"github.com/gin-gonic/gin"
)

const opEditProfileRequest = "server.edit_profile"

type subscriptionResponse struct {
	IsSubscribed bool `json:"isSubscribed"`
}

func (h *httpHandler) handleRecommendedChannels(c *gin.Context) {
	channels, err := h.feed.RecommendedChannels(c.Request.Context(), viewerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *httpHandler) handleEditProfile(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var update users.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.badRequest(c, opEditProfileRequest, "invalid_body", "request body must be a JSON profile")
		return
	}
	updated, err := h.catalog.EditProfile(c.Request.Context(), user.ID, update)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleLikedVideos(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	videos, err := h.feed.LikedVideosOf(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	videos, err := h.feed.HistoryOf(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *httpHandler) handleFeed(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	videos, err := h.feed.FeedFor(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *httpHandler) handleSearchUsers(c *gin.Context) {
	channels, err := h.catalog.SearchUsers(c.Request.Context(), c.Query("query"), viewerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	profile, err := h.catalog.GetProfile(c.Request.Context(), c.Param("userId"), viewerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleToggleSubscription(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	subscribed, err := h.subscriptions.Toggle(c.Request.Context(), user.ID, c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if subscribed {
		h.metrics.RecordEvent(metrics.EventSubscribe)
	} else {
		h.metrics.RecordEvent(metrics.EventUnsubscribe)
	}
	c.JSON(http.StatusOK, subscriptionResponse{IsSubscribed: subscribed})
}
