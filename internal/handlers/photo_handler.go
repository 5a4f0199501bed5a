// ./fieldcam-backend/internal/handlers/photo_handler.go
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/capture"
	"fieldcam/backend/internal/database"
	"fieldcam/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxUploadBytes = 20 << 20
	dbTimeout      = 10 * time.Second
)

// PhotoHandler serves captures and the local gallery.
type PhotoHandler struct {
	photos       PhotoStore
	files        FileStore
	stamper      Stamper
	uploader     Uploader
	sessions     SessionView
	location     LocationView
	zone         *time.Location
	galleryLimit int
	log          *zap.Logger

	// spawn runs the background upload.
	spawn func(func())
	now   func() time.Time
}

type PhotoHandlerConfig struct {
	Zone         *time.Location
	GalleryLimit int
}

func NewPhotoHandler(photos PhotoStore, files FileStore, stamper Stamper, uploader Uploader, sessions SessionView, loc LocationView, cfg PhotoHandlerConfig, logger *zap.Logger) *PhotoHandler {
	if cfg.Zone == nil {
		cfg.Zone = time.Local
	}
	return &PhotoHandler{
		photos:       photos,
		files:        files,
		stamper:      stamper,
		uploader:     uploader,
		sessions:     sessions,
		location:     loc,
		zone:         cfg.Zone,
		galleryLimit: cfg.GalleryLimit,
		log:          logger.Named("photos"),
		spawn:        func(f func()) { go f() },
		now:          time.Now,
	}
}

// CreateCapture stamps the posted frame, records it in the gallery and, when
// signed in, starts exactly one background upload.
func (h *PhotoHandler) CreateCapture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading image"})
		return
	}

	capturedAt, err := h.capturedAt(c.Request.FormValue("capturedAt"), raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capturedAt must be RFC 3339"})
		return
	}

	stamped, err := h.stamper.Stamp(raw, capturedAt)
	if err != nil {
		h.log.Warn("could not stamp capture", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image"})
		return
	}

	snap := h.location.Current()
	id := uuid.NewString()
	path, err := h.files.Save(id+".jpg", stamped)
	if err != nil {
		h.log.Error("could not store capture", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
		return
	}

	signedIn := h.sessions.State() == auth.StateSignedIn
	photo := models.Photo{
		CaptureID:  id,
		FilePath:   path,
		Size:       int64(len(stamped)),
		Location:   snap.Fix,
		CapturedAt: capturedAt,
		SyncState:  models.SyncSkipped,
	}
	if snap.Property != nil {
		photo.Property = snap.Property.Name
	}
	if signedIn {
		photo.SyncState = models.SyncPending
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()
	if err := h.photos.Save(ctx, &photo); err != nil {
		h.log.Error("could not save photo record", zap.Error(err))
		_ = h.files.Remove(path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save photo record"})
		return
	}
	h.prune(ctx)

	if signedIn {
		img := models.CapturedImage{
			ID:              id,
			Bytes:           stamped,
			CapturedAt:      capturedAt,
			MatchedProperty: snap.Property,
			Fix:             snap.Fix,
			CaptureIdentity: h.sessions.Identity(),
		}
		h.spawn(func() { h.sync(img) })
	}

	c.JSON(http.StatusCreated, photo)
}

func (h *PhotoHandler) capturedAt(field string, raw []byte) (time.Time, error) {
	if field != "" {
		return time.Parse(time.RFC3339, field)
	}
	t, _ := capture.CapturedAt(raw, h.zone, h.now())
	return t, nil
}

func (h *PhotoHandler) sync(img models.CapturedImage) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ref, err := h.uploader.Upload(ctx, img)
	if err != nil {
		if err := h.photos.MarkFailed(ctx, img.ID, err.Error()); err != nil {
			h.log.Warn("could not record failed sync", zap.String("capture_id", img.ID), zap.Error(err))
		}
		return
	}
	if err := h.photos.MarkSynced(ctx, img.ID, *ref); err != nil {
		h.log.Warn("could not record sync", zap.String("capture_id", img.ID), zap.Error(err))
	}
}

// prune drops the oldest photos beyond the gallery limit.
func (h *PhotoHandler) prune(ctx context.Context) {
	if h.galleryLimit <= 0 {
		return
	}
	pruned, err := h.photos.Prune(ctx, h.galleryLimit)
	if err != nil {
		h.log.Warn("could not prune gallery", zap.Error(err))
		return
	}
	for _, p := range pruned {
		if err := h.files.Remove(p.FilePath); err != nil {
			h.log.Warn("could not remove pruned file", zap.String("path", p.FilePath), zap.Error(err))
		}
	}
}

func (h *PhotoHandler) ListPhotos(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	photos, err := h.photos.List(ctx, h.galleryLimit)
	if err != nil {
		h.log.Error("could not list photos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch photos"})
		return
	}
	c.JSON(http.StatusOK, photos)
}

func (h *PhotoHandler) GetPhoto(c *gin.Context) {
	photo, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (h *PhotoHandler) GetPhotoImage(c *gin.Context) {
	photo, ok := h.lookup(c)
	if !ok {
		return
	}
	data, err := h.files.Read(photo.FilePath)
	if err != nil {
		h.log.Error("could not read photo file", zap.String("path", photo.FilePath), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "No image associated with this photo"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *PhotoHandler) DeletePhoto(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	photo, err := h.photos.Delete(ctx, c.Param("id"))
	if errors.Is(err, database.ErrPhotoNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}
	if err != nil {
		h.log.Error("could not delete photo", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete photo"})
		return
	}
	if err := h.files.Remove(photo.FilePath); err != nil {
		h.log.Warn("could not remove photo file", zap.String("path", photo.FilePath), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Photo deleted successfully"})
}

// ClearPhotos empties the local gallery. Remote copies are untouched.
func (h *PhotoHandler) ClearPhotos(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	photos, err := h.photos.List(ctx, 0)
	if err != nil {
		h.log.Error("could not list photos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch photos"})
		return
	}
	n, err := h.photos.DeleteAll(ctx)
	if err != nil {
		h.log.Error("could not clear photos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear photos"})
		return
	}
	for _, p := range photos {
		if err := h.files.Remove(p.FilePath); err != nil {
			h.log.Warn("could not remove photo file", zap.String("path", p.FilePath), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *PhotoHandler) lookup(c *gin.Context) (*models.Photo, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	photo, err := h.photos.Get(ctx, c.Param("id"))
	if errors.Is(err, database.ErrPhotoNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error("could not fetch photo", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch photo"})
		return nil, false
	}
	return photo, true
}
