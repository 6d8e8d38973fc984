package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/MarcoPoloResearchLab/clipshare/internal/auth"
	"github.com/MarcoPoloResearchLab/clipshare/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userContextKey = "clipshare_user"

const opResolveIdentity = "server.resolve_identity"

// resolveIdentity attaches the session's user to the context.
// When required is false a missing or invalid session leaves the request anonymous.
func (h *httpHandler) resolveIdentity(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.sessions.ValidateRequest(c.Request)
		if err != nil {
			if !errors.Is(err, auth.ErrMissingSessionToken) {
				h.logSessionFailure(err)
			}
			h.continueAnonymous(c, required, "missing_session")
			return
		}

		user, err := h.users.Get(c.Request.Context(), claims.UserID)
		if apperr.Is(err, apperr.KindNotFound) {
			h.logger.Warn("session user no longer exists", zap.String("user_id", claims.UserID))
			h.continueAnonymous(c, required, "unknown_user")
			return
		}
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func (h *httpHandler) continueAnonymous(c *gin.Context, required bool, reason string) {
	if required {
		h.writeError(c, apperr.New(apperr.KindUnauthenticated, opResolveIdentity, reason, "sign in required", nil))
		return
	}
	c.Next()
}

func (h *httpHandler) logSessionFailure(err error) {
	if errors.Is(err, auth.ErrExpiredSessionToken) {
		h.logger.Info("session validation failed", zap.Error(err))
		return
	}
	h.logger.Warn("session validation failed", zap.Error(err))
}

// currentUser returns the signed-in user, if any.
func currentUser(c *gin.Context) (model.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return model.User{}, false
	}
	user, ok := value.(model.User)
	return user, ok
}

// viewerID returns the signed-in user's id or "" for anonymous requests.
func viewerID(c *gin.Context) string {
	user, _ := currentUser(c)
	return user.ID
}

// requireUser returns the signed-in user or writes a 401.
func (h *httpHandler) requireUser(c *gin.Context) (model.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		h.writeError(c, apperr.New(apperr.KindUnauthenticated, opResolveIdentity, "missing_session", "sign in required", nil))
		return model.User{}, false
	}
	return user, true
}

func (h *httpHandler) setSessionCookie(c *gin.Context, token string, maxAgeSeconds int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, maxAgeSeconds, "/", "", h.cookieSecure, true)
}
