package handlers

import (
	"net/http"

	"fieldcam/backend/internal/models"
	"fieldcam/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type StatusView interface {
	Current() services.Status
}

type LayoutView interface {
	Layout() models.RemoteLayout
}

// SyncHandler reports the upload status and the cached remote layout.
type SyncHandler struct {
	Status StatusView
	Layout LayoutView
}

func (h *SyncHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": h.Status.Current(),
		"layout": h.Layout.Layout(),
	})
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
