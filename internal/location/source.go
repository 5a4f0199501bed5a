// Package location keeps the current device position and the property it
// resolves to.
package location

import (
	"context"
	"errors"
	"time"

	"fieldcam/backend/internal/models"
)

var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrStaleFix            = errors.New("fix older than maximum age")
	ErrInvalidFix          = errors.New("coordinate out of range")
)

// Options mirror the device geolocation request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

func DefaultOptions() Options {
	return Options{HighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 30 * time.Second}
}

// Source produces position fixes.
type Source interface {
	// CurrentPosition returns one fix no older than opts.MaximumAge, waiting
	// at most opts.Timeout.
	CurrentPosition(ctx context.Context, opts Options) (models.LocationFix, error)
	// WatchPosition delivers fixes and failures until ctx is done.
	WatchPosition(ctx context.Context, opts Options, onFix func(models.LocationFix), onErr func(error)) error
}
