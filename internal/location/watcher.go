package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fieldcam/backend/internal/geofence"
	"fieldcam/backend/internal/models"

	"go.uber.org/zap"
)

var (
	ErrSubscriberExists   = errors.New("subscriber id already exists")
	ErrSubscriberNotFound = errors.New("subscriber id not found")
)

// Snapshot is the watcher's view at one instant. Property is nil when the
// last fix matched nothing.
type Snapshot struct {
	Fix       *models.LocationFix `json:"fix,omitempty"`
	Property  *models.Property    `json:"property,omitempty"`
	LastError string              `json:"lastError,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Watcher resolves every fix from a Source against the configured
// properties and publishes the result.
type Watcher struct {
	source   Source
	resolver *geofence.Resolver
	opts     Options
	log      *zap.Logger

	mu      sync.RWMutex
	current Snapshot
	subs    map[string]chan<- Snapshot
	dropped atomic.Uint64
}

func NewWatcher(source Source, resolver *geofence.Resolver, opts Options, logger *zap.Logger) *Watcher {
	return &Watcher{
		source:   source,
		resolver: resolver,
		opts:     opts,
		log:      logger.Named("location"),
		subs:     make(map[string]chan<- Snapshot),
	}
}

// Run takes one immediate fix, then watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fix, err := w.source.CurrentPosition(ctx, w.opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.fail(err)
	} else {
		w.update(fix)
	}
	return w.source.WatchPosition(ctx, w.opts, w.update, w.fail)
}

func (w *Watcher) update(fix models.LocationFix) {
	prop, _ := w.resolver.Resolve(fix.Coordinate)

	w.mu.Lock()
	w.current = Snapshot{Fix: &fix, Property: prop, UpdatedAt: time.Now()}
	snap := w.current
	w.mu.Unlock()

	name := models.UnknownLocation
	if prop != nil {
		name = prop.Name
	}
	w.log.Debug("fix resolved",
		zap.Float64("lat", fix.Coordinate.Lat),
		zap.Float64("lng", fix.Coordinate.Lng),
		zap.Float64("accuracy", fix.AccuracyMeters),
		zap.String("property", name),
	)
	w.publish(snap)
}

// fail keeps the previous fix and property.
func (w *Watcher) fail(err error) {
	w.log.Warn("location error", zap.Error(err))

	w.mu.Lock()
	w.current.LastError = err.Error()
	w.current.UpdatedAt = time.Now()
	snap := w.current
	w.mu.Unlock()
	w.publish(snap)
}

func (w *Watcher) publish(snap Snapshot) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.subs {
		select {
		case ch <- snap:
		default:
			w.dropped.Add(1)
		}
	}
}

// Current returns the latest snapshot.
func (w *Watcher) Current() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe registers ch for every future snapshot. Sends never block; a
// full channel misses that snapshot.
func (w *Watcher) Subscribe(id string, ch chan<- Snapshot) error {
	if ch == nil {
		return errors.New("subscriber channel cannot be nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[id]; ok {
		return ErrSubscriberExists
	}
	w.subs[id] = ch
	return nil
}

func (w *Watcher) Unsubscribe(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(w.subs, id)
	return nil
}

// Dropped counts snapshots lost to full subscriber channels.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}
