// Package capture turns a raw camera frame into the stamped JPEG that is
// stored and synced.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
)

type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

const (
	jpegQuality = 92
	boxOpacity  = 0.4
)

type Options struct {
	Position Position
	Format   Format
	Color    string
	Quality  Quality
	Zone     *time.Location
}

// Stamper burns a timestamp into frames. Safe for concurrent use.
type Stamper struct {
	font  *truetype.Font
	color color.NRGBA
	opts  Options
}

func NewStamper(opts Options) (*Stamper, error) {
	switch opts.Position {
	case TopLeft, TopRight, BottomLeft, BottomRight:
	default:
		return nil, fmt.Errorf("unknown timestamp position %q", opts.Position)
	}
	switch opts.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return nil, fmt.Errorf("unknown photo quality %q", opts.Quality)
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	c, err := parseHexColor(opts.Color)
	if err != nil {
		return nil, err
	}
	if opts.Zone == nil {
		opts.Zone = time.Local
	}

	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %v", err)
	}
	return &Stamper{font: f, color: c, opts: opts}, nil
}

// Stamp decodes raw, applies EXIF orientation and the quality cap, draws the
// timestamp box and re-encodes as JPEG.
func (s *Stamper) Stamp(raw []byte, at time.Time) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %v", err)
	}

	switch s.opts.Quality {
	case QualityMedium:
		src = imaging.Fit(src, 1920, 1080, imaging.Lanczos)
	case QualityLow:
		src = imaging.Fit(src, 1280, 720, imaging.Lanczos)
	}

	img := s.draw(imaging.Clone(src), FormatTimestamp(at.In(s.opts.Zone), s.opts.Format))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("could not encode image: %v", err)
	}
	return buf.Bytes(), nil
}

// draw sizes everything off the image width, like the camera preview.
func (s *Stamper) draw(img *image.NRGBA, text string) *image.NRGBA {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	padding := int(math.Max(20, float64(width)*0.02))
	fontSize := math.Max(16, math.Round(float64(width)*0.025))

	face := truetype.NewFace(s.font, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	drawer := &font.Drawer{Src: image.NewUniform(s.color), Face: face}
	boxPadding := int(fontSize * 0.4)
	boxWidth := drawer.MeasureString(text).Ceil() + 2*boxPadding
	boxHeight := int(fontSize*1.2) + boxPadding

	var x, y int
	switch s.opts.Position {
	case TopLeft:
		x, y = padding, padding
	case TopRight:
		x, y = width-padding-boxWidth, padding
	case BottomLeft:
		x, y = padding, height-padding-boxHeight
	default:
		x, y = width-padding-boxWidth, height-padding-boxHeight
	}

	box := imaging.New(boxWidth, boxHeight, color.NRGBA{A: 255})
	img = imaging.Overlay(img, box, image.Pt(x, y), boxOpacity)

	m := face.Metrics()
	baseline := y + (boxHeight+m.Ascent.Ceil()-m.Descent.Ceil())/2
	drawer.Dst = img
	drawer.Dot = fixed.Point26_6{X: fixed.I(x + boxPadding), Y: fixed.I(baseline)}
	drawer.DrawString(text)
	return img
}

func parseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
