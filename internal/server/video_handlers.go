package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/clipshare/internal/catalog"
	"github.com/MarcoPoloResearchLab/clipshare/internal/engagement"
	"github.com/MarcoPoloResearchLab/clipshare/internal/metrics"
	"github.com/gin-gonic/gin"
)

const (
	opCreateVideoRequest = "server.create_video"
	opAddCommentRequest  = "server.add_comment"
)

type commentRequest struct {
	Text string `json:"text"`
}

func (h *httpHandler) handleRecommendedVideos(c *gin.Context) {
	videos, err := h.feed.Recommended(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *httpHandler) handleTrendingVideos(c *gin.Context) {
	videos, err := h.feed.Trending(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *httpHandler) handleSearchVideos(c *gin.Context) {
	videos, err := h.catalog.SearchVideos(c.Request.Context(), c.Query("query"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *httpHandler) handleCreateVideo(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var request catalog.NewVideo
	if err := c.ShouldBindJSON(&request); err != nil {
		h.badRequest(c, opCreateVideoRequest, "invalid_body", "request body must be a JSON video")
		return
	}
	video, err := h.catalog.CreateVideo(c.Request.Context(), user.ID, request)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.feed.InvalidateTrending(c.Request.Context())
	h.metrics.RecordEvent(metrics.EventUpload)
	c.JSON(http.StatusCreated, video)
}

func (h *httpHandler) handleGetVideo(c *gin.Context) {
	detail, err := h.catalog.GetVideo(c.Request.Context(), c.Param("videoId"), viewerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) handleDeleteVideo(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteVideo(c.Request.Context(), c.Param("videoId"), user.ID); err != nil {
		h.writeError(c, err)
		return
	}
	h.feed.InvalidateTrending(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{})
}

func (h *httpHandler) handleRecordView(c *gin.Context) {
	if err := h.engagement.RecordView(c.Request.Context(), viewerID(c), c.Param("videoId")); err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.RecordEvent(metrics.EventView)
	c.JSON(http.StatusOK, gin.H{})
}

func (h *httpHandler) handleToggleLike(direction engagement.Direction) gin.HandlerFunc {
	event := metrics.EventLike
	if direction == engagement.DirectionDislike {
		event = metrics.EventDislike
	}
	return func(c *gin.Context) {
		user, ok := h.requireUser(c)
		if !ok {
			return
		}
		state, err := h.engagement.ToggleLike(c.Request.Context(), user.ID, c.Param("videoId"), direction)
		if err != nil {
			h.writeError(c, err)
			return
		}
		h.metrics.RecordEvent(event)
		c.JSON(http.StatusOK, state)
	}
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var request commentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.badRequest(c, opAddCommentRequest, "invalid_body", "request body must be a JSON comment")
		return
	}
	comment, err := h.catalog.AddComment(c.Request.Context(), c.Param("videoId"), user.ID, strings.TrimSpace(request.Text))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.RecordEvent(metrics.EventComment)
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteComment(c.Request.Context(), c.Param("videoId"), c.Param("commentId"), user.ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
