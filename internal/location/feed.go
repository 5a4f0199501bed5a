package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldcam/backend/internal/models"
)

const watchBuffer = 8

type event struct {
	fix models.LocationFix
	err error
}

// Feed is a Source fed by the device over HTTP. Watchers that fall behind
// lose events instead of blocking Push.
type Feed struct {
	mu       sync.Mutex
	last     *models.LocationFix
	watchers map[uint64]chan event
	nextID   uint64
	now      func() time.Time
}

func NewFeed() *Feed {
	return &Feed{watchers: make(map[uint64]chan event), now: time.Now}
}

// Push records a fix reported by the device.
func (f *Feed) Push(fix models.LocationFix) error {
	c := fix.Coordinate
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: %f, %f", ErrInvalidFix, c.Lat, c.Lng)
	}
	if fix.ObservedAt.IsZero() {
		fix.ObservedAt = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &fix
	f.broadcast(event{fix: fix})
	return nil
}

// PushError records a failure reported by the device (permission denied,
// no signal).
func (f *Feed) PushError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast(event{err: fmt.Errorf("%w: %v", ErrLocationUnavailable, err)})
}

func (f *Feed) broadcast(ev event) {
	for _, ch := range f.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *Feed) subscribe() (uint64, chan event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ch := make(chan event, watchBuffer)
	f.watchers[f.nextID] = ch
	return f.nextID, ch
}

func (f *Feed) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watchers, id)
}

func (f *Feed) fresh(fix models.LocationFix, maxAge time.Duration) bool {
	return f.now().Sub(fix.ObservedAt) <= maxAge
}

func (f *Feed) CurrentPosition(ctx context.Context, opts Options) (models.LocationFix, error) {
	id, ch := f.subscribe()
	defer f.unsubscribe(id)

	f.mu.Lock()
	last := f.last
	f.mu.Unlock()
	if last != nil && f.fresh(*last, opts.MaximumAge) {
		return *last, nil
	}

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return models.LocationFix{}, ctx.Err()
		case <-timer.C:
			return models.LocationFix{}, fmt.Errorf("%w: no fix within %s", ErrLocationUnavailable, opts.Timeout)
		case ev := <-ch:
			if ev.err != nil {
				return models.LocationFix{}, ev.err
			}
			if f.fresh(ev.fix, opts.MaximumAge) {
				return ev.fix, nil
			}
		}
	}
}

// WatchPosition blocks until ctx is done. Stale fixes are reported through
// onErr, as is every Timeout without a fix.
func (f *Feed) WatchPosition(ctx context.Context, opts Options, onFix func(models.LocationFix), onErr func(error)) error {
	id, ch := f.subscribe()
	defer f.unsubscribe(id)

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			onErr(fmt.Errorf("%w: no fix within %s", ErrLocationUnavailable, opts.Timeout))
			timer.Reset(opts.Timeout)
		case ev := <-ch:
			switch {
			case ev.err != nil:
				onErr(ev.err)
			case !f.fresh(ev.fix, opts.MaximumAge):
				onErr(fmt.Errorf("%w: observed %s", ErrStaleFix, ev.fix.ObservedAt.Format(time.RFC3339)))
			default:
				onFix(ev.fix)
				timer.Reset(opts.Timeout)
			}
		}
	}
}
