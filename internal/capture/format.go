package capture

import (
	"fmt"
	"time"
)

type Format string

const (
	FormatFull     Format = "full"
	FormatShort    Format = "short"
	FormatDateOnly Format = "date-only"
	FormatTimeOnly Format = "time-only"
)

var layouts = map[Format]string{
	FormatFull:     "Jan 02, 2006 • 3:04 PM",
	FormatShort:    "1/02/06 3:04",
	FormatDateOnly: "Jan 02, 2006",
	FormatTimeOnly: "3:04:05 PM",
}

func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := layouts[f]; !ok {
		return "", fmt.Errorf("unknown timestamp format %q", s)
	}
	return f, nil
}

// FormatTimestamp renders the burned-in text. Unknown formats fall back to full.
func FormatTimestamp(t time.Time, f Format) string {
	layout, ok := layouts[f]
	if !ok {
		layout = layouts[FormatFull]
	}
	return t.Format(layout)
}
