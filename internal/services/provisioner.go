// ./fieldcam-backend/internal/services/provisioner.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldcam/backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	LogSheetTab   = "Photo Log"
	LogSheetRange = "Photo Log!A:G"
)

// sharedLookupTimeout bounds a find-or-create that outlives its first caller.
const sharedLookupTimeout = time.Minute

// LogHeader is the first row of a newly created log sheet.
var LogHeader = []string{
	"Property Name",
	"Date",
	"Time",
	"Filename",
	"GPS Coordinates",
	"Drive Link",
	"Uploaded By",
}

type ProvisionerConfig struct {
	RootFolderID    string
	SpreadsheetID   string
	SpreadsheetName string
}

// Provisioner is the find-or-create layer over the remote store. Lookups
// for the same key inside this process are collapsed into one round trip;
// two devices can still race and produce a duplicate folder.
type Provisioner struct {
	store Store
	sheet LogSheet
	cfg   ProvisionerConfig
	log   *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	layout models.RemoteLayout
}

// NewProvisioner builds a provisioner. sheet may be nil when no log is kept.
func NewProvisioner(store Store, sheet LogSheet, cfg ProvisionerConfig, logger *zap.Logger) *Provisioner {
	p := &Provisioner{
		store: store,
		sheet: sheet,
		cfg:   cfg,
		log:   logger.Named("provisioner"),
	}
	p.Reset()
	return p
}

// EnsureRoot resolves the shared root folder.
func (p *Provisioner) EnsureRoot(_ context.Context) (string, error) {
	p.mu.RLock()
	id := p.layout.RootFolderID
	p.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	switch {
	case p.cfg.RootFolderID != "":
		id = p.cfg.RootFolderID
	default:
		rp, ok := p.store.(rootProvider)
		if !ok {
			return "", fmt.Errorf("%w: no root folder configured", ErrProvisioning)
		}
		id = rp.RootID()
	}

	p.mu.Lock()
	p.layout.RootFolderID = id
	p.mu.Unlock()
	return id, nil
}

// EnsureDateFolder returns the id of the dateKey folder directly under
// propertyFolderID, creating it when absent.
func (p *Provisioner) EnsureDateFolder(ctx context.Context, propertyFolderID, dateKey string) (string, error) {
	key := propertyFolderID + "/" + dateKey
	if id, ok := p.cachedFolder(key); ok {
		return id, nil
	}

	v, err, _ := p.group.Do("folder:"+key, func() (interface{}, error) {
		if id, ok := p.cachedFolder(key); ok {
			return id, nil
		}
		ctx, cancel := shared(ctx)
		defer cancel()
		id, err := p.findOrCreate(ctx, dateKey, propertyFolderID, KindFolder, func() (string, error) {
			return p.store.CreateFolder(ctx, dateKey, propertyFolderID)
		})
		if err != nil {
			return "", err
		}
		p.mu.Lock()
		p.layout.DateFolders[key] = id
		p.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: date folder %s: %w", ErrProvisioning, dateKey, err)
	}
	return v.(string), nil
}

// EnsureLogSheet returns the configured sheet id, else finds the named sheet
// in the shared root, else creates it with the header row.
func (p *Provisioner) EnsureLogSheet(ctx context.Context) (string, error) {
	p.mu.RLock()
	id := p.layout.LogSheetID
	p.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	if p.cfg.SpreadsheetID != "" {
		p.setLogSheet(p.cfg.SpreadsheetID)
		return p.cfg.SpreadsheetID, nil
	}
	if p.sheet == nil {
		return "", fmt.Errorf("%w: no log sheet configured", ErrProvisioning)
	}

	v, err, _ := p.group.Do("sheet", func() (interface{}, error) {
		ctx, cancel := shared(ctx)
		defer cancel()
		root, err := p.EnsureRoot(ctx)
		if err != nil {
			return "", err
		}
		name := p.cfg.SpreadsheetName
		id, err := p.findOrCreate(ctx, name, root, KindSpreadsheet, func() (string, error) {
			id, err := p.sheet.CreateSpreadsheet(ctx, name, LogSheetTab, LogHeader)
			if err != nil {
				return "", err
			}
			if err := p.sheet.MoveToFolder(ctx, id, root); err != nil {
				if errors.Is(err, ErrUnauthorizedRemote) {
					return "", err
				}
				p.log.Warn("log sheet created outside shared root", zap.String("id", id), zap.Error(err))
			}
			return id, nil
		})
		if err != nil {
			return "", err
		}
		p.setLogSheet(id)
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: log sheet: %w", ErrProvisioning, err)
	}
	return v.(string), nil
}

// Layout returns a snapshot of the cache.
func (p *Provisioner) Layout() models.RemoteLayout {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := p.layout
	out.DateFolders = make(map[string]string, len(p.layout.DateFolders))
	for k, v := range p.layout.DateFolders {
		out.DateFolders[k] = v
	}
	return out
}

// Reset drops everything cached, e.g. after the remote was reorganized.
func (p *Provisioner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layout = models.RemoteLayout{DateFolders: map[string]string{}}
}

// shared detaches a singleflight body from the caller that happened to start
// it, so joined callers are not failed by someone else's cancellation.
func shared(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
}

func (p *Provisioner) cachedFolder(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.layout.DateFolders[key]
	return id, ok
}

func (p *Provisioner) setLogSheet(id string) {
	p.mu.Lock()
	p.layout.LogSheetID = id
	p.mu.Unlock()
}

func (p *Provisioner) findOrCreate(ctx context.Context, name, parentID string, kind EntryKind, create func() (string, error)) (string, error) {
	children, err := p.store.ListChildren(ctx, parentID)
	if err != nil {
		return "", err
	}
	for _, c := range children {
		if c.Kind == kind && c.Name == name {
			p.log.Debug("found existing", zap.String("name", name), zap.String("kind", string(kind)), zap.String("id", c.ID))
			return c.ID, nil
		}
	}

	p.log.Info("not found, creating", zap.String("name", name), zap.String("kind", string(kind)), zap.String("parent_id", parentID))
	return create()
}
