package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PendingSource exposes a device code waiting for approval.
type PendingSource interface {
	Pending() *DeviceCode
}

// Handler serves the session endpoints.
type Handler struct {
	Manager *Manager
	Pending PendingSource
	Log     *zap.Logger
}

type sessionResponse struct {
	Status
	DeviceCode *DeviceCode `json:"deviceCode,omitempty"`
}

func (h *Handler) response() sessionResponse {
	resp := sessionResponse{Status: h.Manager.Status()}
	if h.Pending != nil {
		resp.DeviceCode = h.Pending.Pending()
	}
	return resp
}

// SignIn starts the token flow in the background. The client polls GetSession
// for the device code and the final state.
func (h *Handler) SignIn(c *gin.Context) {
	if h.Manager.State() == StateAuthenticating {
		c.JSON(http.StatusConflict, gin.H{"error": ErrSignInInProgress.Error()})
		return
	}

	go func() {
		if _, err := h.Manager.SignIn(context.Background()); err != nil && !errors.Is(err, ErrSignInInProgress) && !errors.Is(err, ErrSignInCancelled) {
			h.Log.Warn("background sign-in ended without a session", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, h.response())
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.Manager.SignOut(c.Request.Context()); err != nil {
		h.Log.Error("sign-out could not clear saved session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signed out, but the saved session could not be cleared"})
		return
	}
	c.JSON(http.StatusOK, h.response())
}
