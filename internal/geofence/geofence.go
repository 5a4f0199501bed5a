// ./fieldcam-backend/internal/geofence/geofence.go
package geofence

import (
	"math"

	"fieldcam/backend/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b models.Coordinate) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Resolver maps a coordinate to the first configured property whose
// detection radius contains it. It holds no mutable state.
type Resolver struct {
	properties []models.Property
}

func NewResolver(properties []models.Property) *Resolver {
	ps := make([]models.Property, len(properties))
	copy(ps, properties)
	return &Resolver{properties: ps}
}

// Resolve returns the first property, in configured order, within its radius of c.
func (r *Resolver) Resolve(c models.Coordinate) (*models.Property, bool) {
	for i := range r.properties {
		p := &r.properties[i]
		if Distance(c, p.Coordinate) <= p.DetectionRadiusMeters {
			match := *p
			return &match, true
		}
	}
	return nil, false
}

// Nearest returns the closest property regardless of radius.
func (r *Resolver) Nearest(c models.Coordinate) (*models.Property, float64, bool) {
	best := -1
	bestDistance := math.Inf(1)
	for i := range r.properties {
		d := Distance(c, r.properties[i].Coordinate)
		if d < bestDistance {
			best, bestDistance = i, d
		}
	}
	if best < 0 {
		return nil, 0, false
	}
	p := r.properties[best]
	return &p, bestDistance, true
}

func (r *Resolver) Properties() []models.Property {
	ps := make([]models.Property, len(r.properties))
	copy(ps, r.properties)
	return ps
}
