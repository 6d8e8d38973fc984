package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/media"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const opUploadMedia = "server.upload_media"

type uploadResponse struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

func (h *httpHandler) handleUploadMedia(c *gin.Context) {
	if _, ok := h.requireUser(c); !ok {
		return
	}
	if h.mediaStore == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{
			Error:   apperr.KindInternal,
			Code:    opUploadMedia + ".storage_disabled",
			Message: "media storage is not configured",
		})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, opUploadMedia, "missing_file", "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.badRequest(c, opUploadMedia, "unreadable_file", "uploaded file could not be read")
		return
	}
	defer file.Close()

	objectID, err := h.idProvider.NewID()
	if err != nil {
		h.writeError(c, apperr.Internal(opUploadMedia, "id_generation_failed", err))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := h.mediaStore.Put(c.Request.Context(), media.ObjectName(objectID, header.Filename), file, header.Size, contentType)
	if err != nil {
		h.logger.Error("media upload failed", zap.String("filename", header.Filename), zap.Error(err))
		h.writeError(c, apperr.Internal(opUploadMedia, "store_failed", err))
		return
	}
	c.JSON(http.StatusCreated, uploadResponse{URL: url, Thumbnail: media.ThumbnailURL(url)})
}
