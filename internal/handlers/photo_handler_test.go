package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/location"
	"fieldcam/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type photoFixture struct {
	photos   *memPhotos
	files    *memFiles
	stamper  *prefixStamper
	uploader *fakeUploader
	handler  *PhotoHandler
	router   *gin.Engine
}

var hillside = &models.Property{Name: "Hillside Haven", StorageFolderID: "f-hillside"}

func newPhotoFixture(t *testing.T, session fakeSession, snap location.Snapshot, limit int) *photoFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &photoFixture{
		photos:   newMemPhotos(),
		files:    newMemFiles(),
		stamper:  &prefixStamper{},
		uploader: &fakeUploader{},
	}
	f.handler = NewPhotoHandler(f.photos, f.files, f.stamper, f.uploader, session, fixedLocation{snap},
		PhotoHandlerConfig{Zone: time.UTC, GalleryLimit: limit}, zaptest.NewLogger(t))
	f.handler.spawn = func(run func()) { run() }

	r := gin.New()
	r.POST("/captures", f.handler.CreateCapture)
	r.GET("/photos", f.handler.ListPhotos)
	r.GET("/photos/:id", f.handler.GetPhoto)
	r.GET("/photos/:id/image", f.handler.GetPhotoImage)
	r.DELETE("/photos/:id", f.handler.DeletePhoto)
	r.DELETE("/photos", f.handler.ClearPhotos)
	f.router = r
	return f
}

func captureRequest(t *testing.T, image []byte, capturedAt string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		part, err := mw.CreateFormFile("image", "frame.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	if capturedAt != "" {
		require.NoError(t, mw.WriteField("capturedAt", capturedAt))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/captures", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (f *photoFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func signedInAs(email string) fakeSession {
	return fakeSession{state: auth.StateSignedIn, identity: &models.Identity{Email: email}}
}

func TestCreateCapture_SignedInUploadsOnce(t *testing.T) {
	fix := &models.LocationFix{Coordinate: models.Coordinate{Lat: 35.9561, Lng: -83.6289}}
	f := newPhotoFixture(t, signedInAs("alice@example.com"), location.Snapshot{Fix: fix, Property: hillside}, 50)

	w := f.do(captureRequest(t, []byte("raw"), "2025-12-08T19:04:23-05:00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var photo models.Photo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &photo))
	assert.Equal(t, "Hillside Haven", photo.Property)
	assert.Equal(t, models.SyncPending, photo.SyncState)

	require.Len(t, f.uploader.images, 1)
	img := f.uploader.images[0]
	assert.Equal(t, []byte("stamped:raw"), img.Bytes)
	assert.Equal(t, "Hillside Haven", img.MatchedProperty.Name)
	assert.Equal(t, fix, img.Fix)
	assert.Equal(t, "alice@example.com", img.CaptureIdentity.Email)
	assert.True(t, img.CapturedAt.Equal(time.Date(2025, 12, 9, 0, 4, 23, 0, time.UTC)))

	stored := f.photos.byCapture(photo.CaptureID)
	require.NotNil(t, stored)
	assert.Equal(t, models.SyncSynced, stored.SyncState)
	require.NotNil(t, stored.RemoteFile)
	assert.Equal(t, "remote-"+photo.CaptureID, stored.RemoteFile.ID)
}

func TestCreateCapture_SignedOutSkipsUpload(t *testing.T) {
	f := newPhotoFixture(t, fakeSession{state: auth.StateSignedOut}, location.Snapshot{}, 50)

	w := f.do(captureRequest(t, []byte("raw"), ""))
	require.Equal(t, http.StatusCreated, w.Code)

	var photo models.Photo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &photo))
	assert.Equal(t, models.SyncSkipped, photo.SyncState)
	assert.Empty(t, photo.Property)
	assert.Empty(t, f.uploader.images)
	assert.Equal(t, 1, f.files.count())
}

func TestCreateCapture_UploadFailureRecorded(t *testing.T) {
	f := newPhotoFixture(t, signedInAs("alice@example.com"), location.Snapshot{}, 50)
	f.uploader.err = errors.New("upload failed: quota")

	w := f.do(captureRequest(t, []byte("raw"), ""))
	require.Equal(t, http.StatusCreated, w.Code)

	var photo models.Photo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &photo))
	stored := f.photos.byCapture(photo.CaptureID)
	assert.Equal(t, models.SyncFailed, stored.SyncState)
	assert.Equal(t, "upload failed: quota", stored.SyncError)
	assert.Nil(t, f.uploader.images[0].MatchedProperty)
}

func TestCreateCapture_BadRequests(t *testing.T) {
	f := newPhotoFixture(t, signedInAs("alice@example.com"), location.Snapshot{}, 50)

	assert.Equal(t, http.StatusBadRequest, f.do(captureRequest(t, nil, "")).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(captureRequest(t, []byte("raw"), "yesterday")).Code)

	f.stamper.err = errors.New("not a jpeg")
	assert.Equal(t, http.StatusBadRequest, f.do(captureRequest(t, []byte("raw"), "")).Code)
	assert.Empty(t, f.uploader.images)
	assert.Zero(t, f.files.count())
}

func TestCreateCapture_SaveFailureRemovesFile(t *testing.T) {
	f := newPhotoFixture(t, signedInAs("alice@example.com"), location.Snapshot{}, 50)
	f.photos.saveErr = errors.New("db down")

	w := f.do(captureRequest(t, []byte("raw"), ""))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, f.files.count())
	assert.Empty(t, f.uploader.images)
}

func TestCreateCapture_PrunesGallery(t *testing.T) {
	f := newPhotoFixture(t, fakeSession{state: auth.StateSignedOut}, location.Snapshot{}, 2)
	base := time.Date(2025, 12, 8, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		w := f.do(captureRequest(t, []byte("raw"), base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	photos, err := f.photos.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.True(t, photos[1].CapturedAt.Equal(base.Add(time.Minute)))
	assert.Equal(t, 2, f.files.count())
}

func TestGalleryEndpoints(t *testing.T) {
	f := newPhotoFixture(t, fakeSession{state: auth.StateSignedOut}, location.Snapshot{}, 50)
	w := f.do(captureRequest(t, []byte("raw"), ""))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Photo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.ID.Hex()

	w = f.do(httptest.NewRequest(http.MethodGet, "/photos", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Photo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = f.do(httptest.NewRequest(http.MethodGet, "/photos/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/photos/"+id+"/image", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "stamped:raw", w.Body.String())

	w = f.do(httptest.NewRequest(http.MethodDelete, "/photos/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, f.files.count())

	w = f.do(httptest.NewRequest(http.MethodGet, "/photos/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(httptest.NewRequest(http.MethodDelete, "/photos/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearPhotos(t *testing.T) {
	f := newPhotoFixture(t, fakeSession{state: auth.StateSignedOut}, location.Snapshot{}, 50)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, f.do(captureRequest(t, []byte("raw"), "")).Code)
	}

	w := f.do(httptest.NewRequest(http.MethodDelete, "/photos", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":3}`, w.Body.String())
	assert.Zero(t, f.files.count())
}
