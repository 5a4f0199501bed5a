package handlers

import (
	"errors"
	"net/http"
	"time"

	"fieldcam/backend/internal/geofence"
	"fieldcam/backend/internal/location"
	"fieldcam/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FixSink accepts device reports.
type FixSink interface {
	Push(fix models.LocationFix) error
	PushError(err error)
}

type LocationHandler struct {
	Feed     FixSink
	Watcher  LocationView
	Resolver *geofence.Resolver
	Log      *zap.Logger
}

type FixPayload struct {
	Lat        *float64   `json:"lat" binding:"required"`
	Lng        *float64   `json:"lng" binding:"required"`
	Accuracy   float64    `json:"accuracy"`
	ObservedAt *time.Time `json:"observedAt"`
}

type LocationErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message" binding:"required"`
}

type nearestProperty struct {
	Name           string  `json:"name"`
	DistanceMeters float64 `json:"distanceMeters"`
}

type locationResponse struct {
	location.Snapshot
	PropertyName string           `json:"propertyName"`
	Nearest      *nearestProperty `json:"nearest,omitempty"`
}

func (h *LocationHandler) PostFix(c *gin.Context) {
	var payload FixPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}

	fix := models.LocationFix{
		Coordinate:     models.Coordinate{Lat: *payload.Lat, Lng: *payload.Lng},
		AccuracyMeters: payload.Accuracy,
	}
	if payload.ObservedAt != nil {
		fix.ObservedAt = *payload.ObservedAt
	}
	if err := h.Feed.Push(fix); err != nil {
		if errors.Is(err, location.ErrInvalidFix) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record fix"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Fix accepted"})
}

// PostError records a device geolocation failure. The current property is
// kept.
func (h *LocationHandler) PostError(c *gin.Context) {
	var payload LocationErrorPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	h.Log.Warn("device reported location error", zap.Int("code", payload.Code), zap.String("message", payload.Message))
	h.Feed.PushError(errors.New(payload.Message))
	c.JSON(http.StatusAccepted, gin.H{"message": "Error recorded"})
}

func (h *LocationHandler) GetLocation(c *gin.Context) {
	snap := h.Watcher.Current()
	resp := locationResponse{Snapshot: snap, PropertyName: models.UnknownLocation}
	if snap.Property != nil {
		resp.PropertyName = snap.Property.Name
	}
	if snap.Fix != nil {
		if p, d, ok := h.Resolver.Nearest(snap.Fix.Coordinate); ok {
			resp.Nearest = &nearestProperty{Name: p.Name, DistanceMeters: d}
		}
	}
	c.JSON(http.StatusOK, resp)
}
