package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type uploaderFixture struct {
	store    *fakeStore
	sheet    *fakeSheet
	sessions *fakeSessions
	status   *StatusTracker
	logs     *observer.ObservedLogs
	uploader *Uploader
}

func newUploaderFixture(t *testing.T, sessions *fakeSessions) *uploaderFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	f := &uploaderFixture{
		store:    newFakeStore(),
		sheet:    newFakeSheet(),
		sessions: sessions,
		status:   NewStatusTracker(time.Minute),
		logs:     logs,
	}
	layout := NewProvisioner(f.store, f.sheet, ProvisionerConfig{RootFolderID: "root", SpreadsheetID: "log-sheet"}, logger)
	u, err := NewUploader(sessions, layout, f.store, f.sheet, f.status, UploaderConfig{UnknownLocationFolderID: "unknown-folder"}, logger)
	require.NoError(t, err)
	f.uploader = u
	return f
}

func happyHollowImage(t *testing.T) models.CapturedImage {
	return models.CapturedImage{
		ID:         "cap-1",
		Bytes:      []byte("jpeg-bytes"),
		CapturedAt: time.Date(2025, 12, 8, 19, 4, 23, 0, eastern(t)),
		MatchedProperty: &models.Property{
			Name:            "Happy Hollow",
			StorageFolderID: "F-HH",
		},
		Fix: &models.LocationFix{Coordinate: models.Coordinate{Lat: 40.1, Lng: -74.2}},
	}
}

func TestUpload_HappyPath(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))

	ref, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "Happy Hollow_2025-12-08_19-04-23_alice.jpg", ref.Name)

	dateFolders := f.store.children["F-HH"]
	require.Len(t, dateFolders, 1)
	assert.Equal(t, "2025-12-08", dateFolders[0].Name)

	require.Len(t, f.store.uploads, 1)
	up := f.store.uploads[0]
	assert.Equal(t, dateFolders[0].ID, up.ParentID)
	assert.Equal(t, "image/jpeg", up.MimeType)
	assert.Equal(t, []byte("jpeg-bytes"), up.Content)

	require.Len(t, f.sheet.rows, 1)
	assert.Equal(t, []string{"Photo Log!A:G"}, f.sheet.ranges)
	assert.Equal(t, []string{
		"Happy Hollow", "Dec 08, 2025", "07:04:23 PM",
		"Happy Hollow_2025-12-08_19-04-23_alice.jpg",
		"40.100000, -74.200000", ref.Link, "alice@example.com",
	}, f.sheet.rows[0])

	st := f.status.Current()
	assert.Equal(t, StatusSuccess, st.State)
	assert.Equal(t, "✓ Saved to Happy Hollow", st.Message)
}

func TestUpload_CaptureIdentityWins(t *testing.T) {
	f := newUploaderFixture(t, signedIn("bob@example.com"))
	img := happyHollowImage(t)
	img.CaptureIdentity = &models.Identity{Email: "alice@example.com"}

	ref, err := f.uploader.Upload(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Happy Hollow_2025-12-08_19-04-23_alice.jpg", ref.Name)
}

func TestUpload_UnknownLocation(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	img := happyHollowImage(t)
	img.MatchedProperty = nil
	img.Fix = nil

	ref, err := f.uploader.Upload(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Location_2025-12-08_19-04-23_alice.jpg", ref.Name)
	require.Len(t, f.store.children["unknown-folder"], 1)
	assert.Equal(t, "N/A", f.sheet.rows[0][4])
	assert.Equal(t, "✓ Saved to Unknown Location", f.status.Current().Message)
}

func TestUpload_NotSignedIn(t *testing.T) {
	f := newUploaderFixture(t, &fakeSessions{})

	_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, f.store.lists)
	assert.Empty(t, f.store.uploads)
	assert.Equal(t, "Sign in to sync", f.status.Current().Message)
}

func TestUpload_SessionExpired(t *testing.T) {
	f := newUploaderFixture(t, &fakeSessions{err: auth.ErrSessionExpired})

	_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
	assert.Zero(t, f.store.lists)
	assert.Equal(t, "Session expired - Sign in again", f.status.Current().Message)
}

func TestUpload_RemoteRejectsCredentials(t *testing.T) {
	t.Run("on upload", func(t *testing.T) {
		f := newUploaderFixture(t, signedIn("alice@example.com"))
		f.store.uploadErr = fmt.Errorf("could not create file: %w", ErrUnauthorizedRemote)

		_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
		assert.ErrorIs(t, err, ErrAuthExpired)
		assert.Len(t, f.sessions.invalidated, 1)
		assert.Equal(t, "Auth error - Sign in again", f.status.Current().Message)

		_, err = f.uploader.Upload(context.Background(), happyHollowImage(t))
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("on folder lookup", func(t *testing.T) {
		f := newUploaderFixture(t, signedIn("alice@example.com"))
		f.store.listErr = fmt.Errorf("could not list: %w", ErrUnauthorizedRemote)

		_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
		assert.ErrorIs(t, err, ErrAuthExpired)
		assert.Len(t, f.sessions.invalidated, 1)
		assert.Empty(t, f.store.uploads)
	})
}

func TestUpload_UploadFailure(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	f.store.uploadErr = errors.New("storage quota exceeded")

	_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "storage quota exceeded", upErr.Reason)
	assert.Empty(t, f.sheet.rows)
	assert.Empty(t, f.sessions.invalidated)

	st := f.status.Current()
	assert.Equal(t, StatusError, st.State)
	assert.Equal(t, "Upload failed: storage quota exceeded", st.Message)
}

func TestUpload_NetworkFailure(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	f.store.uploadErr = fmt.Errorf("could not create file: %w", ErrNetwork)

	_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, StatusError, f.status.Current().State)
}

func TestUpload_ProvisioningFailure(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	f.store.createErr = errors.New("parent not found")

	_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	assert.ErrorIs(t, err, ErrProvisioning)
	assert.Empty(t, f.store.uploads)
}

func TestUpload_PropertyWithoutFolderUsesUnknownLocation(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	img := happyHollowImage(t)
	img.MatchedProperty.StorageFolderID = ""

	ref, err := f.uploader.Upload(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Location_2025-12-08_19-04-23_alice.jpg", ref.Name)
	require.Len(t, f.store.children["unknown-folder"], 1)
	require.Len(t, f.store.uploads, 1)
	assert.Equal(t, f.store.children["unknown-folder"][0].ID, f.store.uploads[0].ParentID)
	assert.Equal(t, "Unknown Location", f.sheet.rows[0][0])
	assert.Equal(t, "✓ Saved to Unknown Location", f.status.Current().Message)
	assert.Len(t, f.logs.FilterMessage("property has no storage folder, filing under unknown location").All(), 1)
}

func TestUpload_NoFolderAtAll(t *testing.T) {
	store := newFakeStore()
	layout := NewProvisioner(store, nil, ProvisionerConfig{RootFolderID: "root"}, zap.NewNop())
	u, err := NewUploader(signedIn("alice@example.com"), layout, store, nil, NewStatusTracker(time.Minute), UploaderConfig{}, zap.NewNop())
	require.NoError(t, err)
	img := happyHollowImage(t)
	img.MatchedProperty.StorageFolderID = ""

	_, err = u.Upload(context.Background(), img)
	assert.ErrorIs(t, err, ErrProvisioning)
	assert.Zero(t, store.lists)
	assert.Empty(t, store.uploads)
}

func TestUpload_MissingRoot(t *testing.T) {
	store := newFakeStore()
	layout := NewProvisioner(store, nil, ProvisionerConfig{}, zap.NewNop())
	status := NewStatusTracker(time.Minute)
	u, err := NewUploader(signedIn("alice@example.com"), layout, store, nil, status, UploaderConfig{}, zap.NewNop())
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), happyHollowImage(t))
	assert.ErrorIs(t, err, ErrProvisioning)
	assert.Zero(t, store.lists)
	assert.Empty(t, store.uploads)
	assert.Equal(t, StatusError, status.Current().State)
}

func TestUpload_InvalidatesTheTokenThatWasRejected(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	f.store.uploadErr = fmt.Errorf("could not create file: %w", ErrUnauthorizedRemote)

	_, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, []string{"token"}, f.sessions.rejected)
}

func TestUpload_LogFailureIsSoft(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	f.sheet.appendErr = errors.New("sheet is read-only")

	ref, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	require.NoError(t, err)
	assert.NotNil(t, ref)
	assert.Equal(t, StatusSuccess, f.status.Current().State)

	warned := f.logs.FilterMessage("photo uploaded but spreadsheet logging failed").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Empty(t, f.sessions.invalidated)
}

func TestUpload_LogRejectsCredentials(t *testing.T) {
	f := newUploaderFixture(t, signedIn("alice@example.com"))
	f.sheet.appendErr = fmt.Errorf("could not append row: %w", ErrUnauthorizedRemote)

	ref, err := f.uploader.Upload(context.Background(), happyHollowImage(t))
	require.NoError(t, err)
	assert.NotNil(t, ref)
	assert.Len(t, f.sessions.invalidated, 1)
}

func TestUpload_WithoutLogSheet(t *testing.T) {
	store := newFakeStore()
	layout := NewProvisioner(store, nil, ProvisionerConfig{RootFolderID: "root"}, zap.NewNop())
	u, err := NewUploader(signedIn("alice@example.com"), layout, store, nil, NewStatusTracker(time.Minute), UploaderConfig{}, zap.NewNop())
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), happyHollowImage(t))
	assert.NoError(t, err)
	assert.Len(t, store.uploads, 1)
}
