package services

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 100))

	t.Run("keeps the aspect ratio within the bound", func(t *testing.T) {
		data, err := Render(img, 200, imaging.PNG)
		require.NoError(t, err)

		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("never enlarges", func(t *testing.T) {
		data, err := Render(img, 1600, imaging.JPEG)
		require.NoError(t, err)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 400, cfg.Width)
	})
}

func TestThumbnailFormat(t *testing.T) {
	tests := []struct {
		path        string
		format      imaging.Format
		contentType string
	}{
		{"originals/2024/01/ab/x.jpg", imaging.JPEG, "image/jpeg"},
		{"originals/2024/01/ab/x.png", imaging.PNG, "image/png"},
		{"originals/2024/01/ab/x.gif", imaging.GIF, "image/gif"},
		{"originals/2024/01/ab/x.heic", imaging.JPEG, "image/jpeg"},
		{"originals/2024/01/ab/x.webp", imaging.JPEG, "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.format, thumbnailFormat(tt.path))
			assert.Equal(t, tt.contentType, ThumbnailContentType(tt.path))
		})
	}
}
