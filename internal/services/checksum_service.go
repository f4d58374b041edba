package services

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

var (
	checksumPattern   = regexp.MustCompile(`^[a-f0-9]{64}$`)
	legacyHashPattern = regexp.MustCompile(`^[a-f0-9]{40}$`)
)

// Checksums holds the digests of one byte stream, lowercase hex
type Checksums struct {
	Primary string // SHA-256
	Legacy  string // SHA-1, matched only by the pre-check
}

// ChecksumService computes content fingerprints
type ChecksumService struct{}

// NewChecksumService creates a new ChecksumService
func NewChecksumService() *ChecksumService {
	return &ChecksumService{}
}

// Compute reads r once and returns both digests. It returns the number of
// bytes read; a read failure is a *models.ReadError.
func (s *ChecksumService) Compute(r io.Reader) (Checksums, int64, error) {
	primary := sha256.New()
	legacy := sha1.New()

	n, err := io.Copy(io.MultiWriter(primary, legacy), r)
	if err != nil {
		return Checksums{}, n, &models.ReadError{Err: err}
	}

	return Checksums{
		Primary: hex.EncodeToString(primary.Sum(nil)),
		Legacy:  hex.EncodeToString(legacy.Sum(nil)),
	}, n, nil
}

// ComputeBytes returns both digests of data
func (s *ChecksumService) ComputeBytes(data []byte) Checksums {
	primary := sha256.Sum256(data)
	legacy := sha1.Sum(data)
	return Checksums{
		Primary: hex.EncodeToString(primary[:]),
		Legacy:  hex.EncodeToString(legacy[:]),
	}
}

// NormalizeHash trims, lowercases and strips a "sha256:" or "sha1:" prefix
func NormalizeHash(hash string) string {
	normalized := strings.ToLower(strings.TrimSpace(hash))
	for _, prefix := range []string{"sha256:", "sha1:"} {
		if strings.HasPrefix(normalized, prefix) {
			return normalized[len(prefix):]
		}
	}
	return normalized
}

// IsValidChecksum checks if a string is a SHA-256 hex digest
func IsValidChecksum(hash string) bool {
	return checksumPattern.MatchString(NormalizeHash(hash))
}

// IsValidLegacyHash checks if a string is a SHA-1 hex digest
func IsValidLegacyHash(hash string) bool {
	return legacyHashPattern.MatchString(NormalizeHash(hash))
}
