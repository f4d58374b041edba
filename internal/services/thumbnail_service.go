package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	_ "golang.org/x/image/webp"
)

const thumbnailQuality = 85

// ThumbnailService renders the configured thumbnail sizes of stored originals
type ThumbnailService struct {
	store *ContentStore
}

// NewThumbnailService creates a new ThumbnailService
func NewThumbnailService(store *ContentStore) *ThumbnailService {
	return &ThumbnailService{store: store}
}

// GenerateForPhoto renders every configured size of the original at
// storedPath, skipping sizes already on disk. It returns size name to
// thumbnail path.
func (s *ThumbnailService) GenerateForPhoto(storedPath string, orientation int) (map[string]string, error) {
	sizes := s.store.ThumbnailSizes()
	result := make(map[string]string, len(sizes))

	var missing []string
	for name := range sizes {
		thumbPath, err := s.store.ThumbnailPathFor(storedPath, name)
		if err != nil {
			return nil, err
		}
		if s.store.ExistsAt(thumbPath) {
			result[name] = thumbPath
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return result, nil
	}
	sort.Strings(missing)

	f, err := s.store.Open(storedPath, VariantOriginal)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("read original: %w", err)
	}

	img, err := decodeImage(data, storedPath)
	if err != nil {
		return nil, err
	}
	img = applyOrientation(img, orientation)
	format := thumbnailFormat(storedPath)

	for _, name := range missing {
		encoded, err := Render(img, sizes[name], format)
		if err != nil {
			return nil, fmt.Errorf("render %s thumbnail: %w", name, err)
		}
		thumbPath, err := s.store.WriteVariant(storedPath, name, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		result[name] = thumbPath
	}
	return result, nil
}

// Render scales img to fit within maxDim on its longer side and encodes it
// in format. Images already smaller are not enlarged.
func Render(img image.Image, maxDim int, format imaging.Format) ([]byte, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	resized := img
	if width > maxDim || height > maxDim {
		if width >= height {
			resized = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			resized = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnailFormat keeps the original's format where it can be encoded.
// HEIC and WebP thumbnails are JPEG data under the original's name.
func thumbnailFormat(storedPath string) imaging.Format {
	format, err := imaging.FormatFromFilename(storedPath)
	if err != nil {
		return imaging.JPEG
	}
	return format
}

// ThumbnailContentType is the media type of the thumbnails of storedPath
func ThumbnailContentType(storedPath string) string {
	if _, err := imaging.FormatFromFilename(storedPath); err != nil {
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(storedPath))); t != "" {
		return t
	}
	return "image/jpeg"
}

func decodeImage(data []byte, filename string) (image.Image, error) {
	if IsHEIC(filename) {
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode HEIC image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// applyOrientation corrects image orientation based on EXIF data
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// IsHEIC checks if the file is HEIC/HEIF format (requires special handling)
func IsHEIC(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}
