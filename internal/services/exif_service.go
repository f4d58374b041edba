package services

import (
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// EXIFData contains extracted EXIF metadata from an image
type EXIFData struct {
	CameraMake  *string
	CameraModel *string
	Orientation int

	Latitude  *float64
	Longitude *float64

	Width     *int
	Height    *int
	DateTaken *time.Time
}

// ToMetadata converts the EXIF fields the photo record keeps
func (d *EXIFData) ToMetadata() models.PhotoMetadata {
	return models.PhotoMetadata{
		CapturedAt:  d.DateTaken,
		Width:       d.Width,
		Height:      d.Height,
		CameraMake:  d.CameraMake,
		CameraModel: d.CameraModel,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
	}
}

// EXIFService extracts EXIF metadata from images
type EXIFService struct{}

// NewEXIFService creates a new EXIFService
func NewEXIFService() *EXIFService {
	return &EXIFService{}
}

// ExtractFromReader extracts EXIF data from r. Images without EXIF yield
// empty data with the default orientation, not an error.
func (s *EXIFService) ExtractFromReader(r io.Reader) *EXIFData {
	result := &EXIFData{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return result
	}

	result.CameraMake = stringTag(x, exif.Make)
	result.CameraModel = stringTag(x, exif.Model)

	if tag, err := x.Get(exif.Orientation); err == nil {
		if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
			result.Orientation = val
		}
	}

	result.Width = intTag(x, exif.PixelXDimension, exif.ImageWidth)
	result.Height = intTag(x, exif.PixelYDimension, exif.ImageLength)

	if tm, err := x.DateTime(); err == nil && !tm.IsZero() {
		utc := tm.UTC()
		result.DateTaken = &utc
	}

	if lat, lng, err := x.LatLong(); err == nil {
		result.Latitude = &lat
		result.Longitude = &lng
	}

	return result
}

func stringTag(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}

// intTag returns the first of names that holds an integer
func intTag(x *exif.Exif, names ...exif.FieldName) *int {
	for _, name := range names {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		if val, err := tag.Int(0); err == nil && val > 0 {
			return &val
		}
	}
	return nil
}
