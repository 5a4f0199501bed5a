package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/database"
	"fieldcam/backend/internal/location"
	"fieldcam/backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memPhotos struct {
	mu      sync.Mutex
	photos  map[string]*models.Photo
	saveErr error
}

func newMemPhotos() *memPhotos {
	return &memPhotos{photos: map[string]*models.Photo{}}
}

func (m *memPhotos) sorted() []models.Photo {
	out := make([]models.Photo, 0, len(m.photos))
	for _, p := range m.photos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out
}

func (m *memPhotos) byCapture(id string) *models.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.photos {
		if p.CaptureID == id {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (m *memPhotos) Save(_ context.Context, p *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	m.photos[p.ID.Hex()] = &cp
	return nil
}

func (m *memPhotos) List(_ context.Context, limit int) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPhotos) Get(_ context.Context, id string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, database.ErrPhotoNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPhotos) Delete(_ context.Context, id string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, database.ErrPhotoNotFound
	}
	delete(m.photos, id)
	return p, nil
}

func (m *memPhotos) DeleteAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.photos))
	m.photos = map[string]*models.Photo{}
	return n, nil
}

func (m *memPhotos) update(captureID string, f func(p *models.Photo)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.photos {
		if p.CaptureID == captureID {
			f(p)
			return nil
		}
	}
	return database.ErrPhotoNotFound
}

func (m *memPhotos) MarkSynced(_ context.Context, captureID string, ref models.RemoteFileRef) error {
	return m.update(captureID, func(p *models.Photo) {
		p.SyncState = models.SyncSynced
		p.RemoteFile = &ref
	})
}

func (m *memPhotos) MarkFailed(_ context.Context, captureID, reason string) error {
	return m.update(captureID, func(p *models.Photo) {
		p.SyncState = models.SyncFailed
		p.SyncError = reason
	})
}

func (m *memPhotos) Prune(_ context.Context, keep int) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if len(all) <= keep {
		return nil, nil
	}
	old := all[keep:]
	for _, p := range old {
		delete(m.photos, p.ID.Hex())
	}
	return old, nil
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{files: map[string][]byte{}}
}

func (f *memFiles) Save(name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "/uploads/" + name
	f.files[path] = data
	return path, nil
}

func (f *memFiles) Read(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *memFiles) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

func (f *memFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type prefixStamper struct {
	err error
	at  []time.Time
}

func (s *prefixStamper) Stamp(raw []byte, at time.Time) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.at = append(s.at, at)
	return append([]byte("stamped:"), raw...), nil
}

type fakeUploader struct {
	mu     sync.Mutex
	images []models.CapturedImage
	err    error
}

func (u *fakeUploader) Upload(_ context.Context, img models.CapturedImage) (*models.RemoteFileRef, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.images = append(u.images, img)
	if u.err != nil {
		return nil, u.err
	}
	return &models.RemoteFileRef{ID: "remote-" + img.ID, Name: img.ID + ".jpg", Link: "https://drive.example/" + img.ID}, nil
}

type fakeSession struct {
	state    auth.State
	identity *models.Identity
}

func (s fakeSession) State() auth.State          { return s.state }
func (s fakeSession) Identity() *models.Identity { return s.identity }

type fixedLocation struct {
	snap location.Snapshot
}

func (l fixedLocation) Current() location.Snapshot { return l.snap }
