package capture

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CapturedAt reads the camera's original timestamp. EXIF carries no zone,
// so the wall clock is taken to be in zone. ok is false when the image has
// no usable EXIF time and fallback was returned.
func CapturedAt(raw []byte, zone *time.Location, fallback time.Time) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return fallback, false
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return fallback, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone), true
}
