package services

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"fieldcam/backend/internal/models"
)

const (
	DateKeyLayout  = "2006-01-02"
	fileTimeLayout = "15-04-05"
	logDateLayout  = "Jan 02, 2006"
	logTimeLayout  = "03:04:05 PM"

	unknownUser = "unknown"
	noGPS       = "N/A"
)

// DateKey is the per-day folder name for t in zone.
func DateKey(t time.Time, zone *time.Location) string {
	return t.In(zone).Format(DateKeyLayout)
}

// FileName builds <property>_<date>_<time>_<user>.jpg in zone.
func FileName(property string, at time.Time, identity *models.Identity, zone *time.Location) string {
	local := at.In(zone)
	return fmt.Sprintf("%s_%s_%s_%s.jpg",
		property,
		local.Format(DateKeyLayout),
		local.Format(fileTimeLayout),
		LocalPart(identity),
	)
}

// LocalPart is the part of the email before '@', or "unknown".
func LocalPart(identity *models.Identity) string {
	if identity == nil {
		return unknownUser
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	if local == "" {
		return unknownUser
	}
	return local
}

func GPSString(fix *models.LocationFix) string {
	if fix == nil {
		return noGPS
	}
	return fmt.Sprintf("%.6f, %.6f", fix.Coordinate.Lat, fix.Coordinate.Lng)
}

// LogRow assembles the audit row for an uploaded file.
func LogRow(property string, at time.Time, filename string, fix *models.LocationFix, link string, identity *models.Identity, zone *time.Location) models.LogEntry {
	local := at.In(zone)
	uploadedBy := unknownUser
	if identity != nil && identity.Email != "" {
		uploadedBy = identity.Email
	}
	return models.LogEntry{
		PropertyName: property,
		Date:         local.Format(logDateLayout),
		Time:         local.Format(logTimeLayout),
		Filename:     filename,
		GPS:          GPSString(fix),
		RemoteLink:   link,
		UploadedBy:   uploadedBy,
	}
}
