package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk unplugged")
}

func TestChecksumService_Compute(t *testing.T) {
	svc := NewChecksumService()

	t.Run("returns known digests", func(t *testing.T) {
		sums, n, err := svc.Compute(strings.NewReader("hello"))
		require.NoError(t, err)

		assert.Equal(t, int64(5), n)
		assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sums.Primary)
		assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", sums.Legacy)
	})

	t.Run("returns consistent hash for same content", func(t *testing.T) {
		content := []byte("Hello, World!")

		first, _, err := svc.Compute(bytes.NewReader(content))
		require.NoError(t, err)
		second, _, err := svc.Compute(bytes.NewReader(content))
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, first, svc.ComputeBytes(content))
	})

	t.Run("returns different hash for different content", func(t *testing.T) {
		a := svc.ComputeBytes([]byte("Content A"))
		b := svc.ComputeBytes([]byte("Content B"))

		assert.NotEqual(t, a.Primary, b.Primary)
		assert.NotEqual(t, a.Legacy, b.Legacy)
	})

	t.Run("read failure is a ReadError", func(t *testing.T) {
		_, _, err := svc.Compute(failingReader{})

		var readErr *models.ReadError
		require.ErrorAs(t, err, &readErr)
		assert.Equal(t, []string{"failed to read file"}, models.ErrorMessages(err))
	})
}

func TestIsValidChecksum(t *testing.T) {
	tests := []struct {
		name     string
		hash     string
		expected bool
	}{
		{"valid lowercase", strings.Repeat("ab", 32), true},
		{"valid uppercase", strings.Repeat("AB", 32), true},
		{"valid with prefix", "sha256:" + strings.Repeat("0f", 32), true},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"too short", "abc123", false},
		{"legacy length", strings.Repeat("a", 40), false},
		{"invalid char", strings.Repeat("a", 63) + "z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidChecksum(tt.hash))
		})
	}
}

func TestIsValidLegacyHash(t *testing.T) {
	assert.True(t, IsValidLegacyHash(strings.Repeat("c", 40)))
	assert.True(t, IsValidLegacyHash("sha1:"+strings.Repeat("C", 40)))
	assert.False(t, IsValidLegacyHash(strings.Repeat("c", 64)))
	assert.False(t, IsValidLegacyHash(""))
}

func TestNormalizeHash(t *testing.T) {
	t.Run("removes sha256 prefix", func(t *testing.T) {
		assert.Equal(t, "abcd", NormalizeHash("sha256:abcd"))
	})

	t.Run("removes sha1 prefix", func(t *testing.T) {
		assert.Equal(t, "abcd", NormalizeHash("SHA1:ABCD"))
	})

	t.Run("trims whitespace", func(t *testing.T) {
		assert.Equal(t, "abc123", NormalizeHash("  abc123  "))
	})
}
