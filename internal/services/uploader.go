// ./fieldcam-backend/internal/services/uploader.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/models"

	"go.uber.org/zap"
)

const jpegMimeType = "image/jpeg"

// Sessions is the part of the session manager the uploader needs.
type Sessions interface {
	EnsureValid(ctx context.Context) (models.Session, error)
	Invalidate(ctx context.Context, accessToken, reason string)
}

type UploaderConfig struct {
	UnknownLocationFolderID string
	Zone                    *time.Location
}

// Uploader takes one captured image to the remote store and the log sheet.
type Uploader struct {
	sessions Sessions
	layout   *Provisioner
	store    Store
	sheet    LogSheet
	status   *StatusTracker
	cfg      UploaderConfig
	log      *zap.Logger
}

// NewUploader wires the orchestrator. sheet may be nil; logging is then
// skipped. A nil zone means America/New_York.
func NewUploader(sessions Sessions, layout *Provisioner, store Store, sheet LogSheet, status *StatusTracker, cfg UploaderConfig, logger *zap.Logger) (*Uploader, error) {
	if cfg.Zone == nil {
		zone, err := time.LoadLocation("America/New_York")
		if err != nil {
			return nil, fmt.Errorf("could not load reference zone: %v", err)
		}
		cfg.Zone = zone
	}
	return &Uploader{
		sessions: sessions,
		layout:   layout,
		store:    store,
		sheet:    sheet,
		status:   status,
		cfg:      cfg,
		log:      logger.Named("uploader"),
	}, nil
}

// Upload validates the session, resolves the destination, uploads the bytes
// and appends the log row. A log failure is reported but does not fail the
// upload. Nothing is retried.
func (u *Uploader) Upload(ctx context.Context, img models.CapturedImage) (*models.RemoteFileRef, error) {
	log := u.log.With(zap.String("capture_id", img.ID))

	session, err := u.sessions.EnsureValid(ctx)
	if err != nil {
		msg := "Sign in to sync"
		if errors.Is(err, auth.ErrSessionExpired) {
			msg = "Session expired - Sign in again"
		}
		u.status.Set(StatusError, msg)
		log.Info("upload skipped", zap.Error(err))
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	propertyName, folderID := u.destination(img)
	if img.MatchedProperty != nil && img.MatchedProperty.StorageFolderID == "" {
		log.Warn("property has no storage folder, filing under unknown location", zap.String("matched", img.MatchedProperty.Name))
	}
	if folderID == "" {
		err := fmt.Errorf("%w: no storage folder for %q", ErrProvisioning, propertyName)
		u.status.Set(StatusError, "Upload failed: "+err.Error())
		log.Error("upload aborted", zap.Error(err))
		return nil, err
	}

	identity := img.CaptureIdentity
	if identity == nil {
		identity = session.Identity
	}
	filename := FileName(propertyName, img.CapturedAt, identity, u.cfg.Zone)
	log = log.With(zap.String("property", propertyName), zap.String("filename", filename))

	u.status.Set(StatusUploading, "Uploading...")

	if _, err := u.layout.EnsureRoot(ctx); err != nil {
		return nil, u.fail(ctx, log, session, "root folder", err)
	}

	dateFolder, err := u.layout.EnsureDateFolder(ctx, folderID, DateKey(img.CapturedAt, u.cfg.Zone))
	if err != nil {
		return nil, u.fail(ctx, log, session, "date folder", err)
	}

	ref, err := u.store.Upload(ctx, FileUpload{
		Name:     filename,
		ParentID: dateFolder,
		MimeType: jpegMimeType,
		Content:  img.Bytes,
	})
	if err != nil {
		if !errors.Is(err, ErrUnauthorizedRemote) && !errors.Is(err, ErrNetwork) {
			err = &UploadError{Reason: reason(err), Err: err}
		}
		return nil, u.fail(ctx, log, session, "upload", err)
	}

	if err := u.appendLog(ctx, propertyName, img, filename, ref.Link, identity); err != nil {
		if errors.Is(err, ErrUnauthorizedRemote) {
			u.sessions.Invalidate(ctx, session.AccessToken, "log sheet rejected credentials")
		}
		log.Warn("photo uploaded but spreadsheet logging failed", zap.Error(err))
	}

	u.status.Set(StatusSuccess, "✓ Saved to "+propertyName)
	log.Info("photo synced", zap.String("remote_id", ref.ID))
	return ref, nil
}

// destination picks the property folder, falling back to the unknown
// location folder when nothing matched or the property has no folder.
func (u *Uploader) destination(img models.CapturedImage) (string, string) {
	if img.MatchedProperty != nil && img.MatchedProperty.StorageFolderID != "" {
		return img.MatchedProperty.Name, img.MatchedProperty.StorageFolderID
	}
	return models.UnknownLocation, u.cfg.UnknownLocationFolderID
}

func (u *Uploader) appendLog(ctx context.Context, property string, img models.CapturedImage, filename, link string, identity *models.Identity) error {
	if u.sheet == nil {
		return nil
	}
	sheetID, err := u.layout.EnsureLogSheet(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogging, err)
	}
	entry := LogRow(property, img.CapturedAt, filename, img.Fix, link, identity, u.cfg.Zone)
	if err := u.sheet.AppendRow(ctx, sheetID, LogSheetRange, entry.Row()); err != nil {
		return fmt.Errorf("%w: %w", ErrLogging, err)
	}
	return nil
}

// fail records the error status and maps a remote credential rejection
// onto a dropped session.
func (u *Uploader) fail(ctx context.Context, log *zap.Logger, session models.Session, stage string, err error) error {
	if errors.Is(err, ErrUnauthorizedRemote) {
		u.sessions.Invalidate(ctx, session.AccessToken, stage+" rejected credentials")
		u.status.Set(StatusError, "Auth error - Sign in again")
		log.Error("upload aborted, session invalidated", zap.String("stage", stage), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAuthExpired, err)
	}

	msg := err.Error()
	var upErr *UploadError
	if errors.As(err, &upErr) {
		msg = upErr.Reason
	}
	u.status.Set(StatusError, "Upload failed: "+msg)
	log.Error("upload aborted", zap.String("stage", stage), zap.Error(err))
	return err
}
