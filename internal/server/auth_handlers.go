package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const opGoogleLogin = "server.google_login"

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type googleLoginResponse struct {
	User      model.User `json:"user"`
	ExpiresIn int64      `json:"expiresIn"`
}

func (h *httpHandler) handleGoogleLogin(c *gin.Context) {
	var request googleLoginRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		h.badRequest(c, opGoogleLogin, "missing_id_token", "idToken is required")
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		h.writeError(c, apperr.New(apperr.KindUnauthenticated, opGoogleLogin, "invalid_id_token", "google credential rejected", err))
		return
	}

	user, err := h.users.ResolveGoogleUser(c.Request.Context(), claims)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, expiresIn, err := h.issuer.IssueSessionToken(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, apperr.Internal(opGoogleLogin, "token_issue_failed", err))
		return
	}

	h.setSessionCookie(c, token, int(expiresIn))
	c.JSON(http.StatusOK, googleLoginResponse{User: user, ExpiresIn: expiresIn})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleSignout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{})
}
