package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
	"github.com/ravin1227/photonix-sub000/internal/models"
)

const (
	originalsDir  = "originals"
	thumbnailsDir = "thumbnails"
	tempPrefix    = ".tmp-"

	// VariantOriginal names the stored original in Open
	VariantOriginal = "original"
)

// DeleteReport lists what Delete did for each file of an item
type DeleteReport struct {
	Removed []string
	Missing []string
	Failed  map[string]error
}

// StoreStats aggregates the originals held by the store
type StoreStats struct {
	TotalBytes int64
	ItemCount  int
}

// TotalSizeMB returns the total size in megabytes, two decimals
func (s StoreStats) TotalSizeMB() float64 {
	return roundTo2(float64(s.TotalBytes) / (1024 * 1024))
}

// TotalSizeGB returns the total size in gigabytes, two decimals
func (s StoreStats) TotalSizeGB() float64 {
	return roundTo2(float64(s.TotalBytes) / (1024 * 1024 * 1024))
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ContentStore keeps one file per checksum under
// originals/YYYY/MM/<cc>/<checksum>.<ext>. Files are write-once.
type ContentStore struct {
	root              string
	allowedExtensions map[string]bool
	maxFileSizeBytes  int64
	thumbnailSizes    map[string]int
}

// NewContentStore creates a ContentStore rooted at cfg.Root
func NewContentStore(cfg config.Storage) (*ContentStore, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}

	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(absRoot, originalsDir), 0755); err != nil {
		return nil, err
	}

	extSet := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		extSet[normalizeExt(ext)] = true
	}

	sizes := cfg.ThumbnailSizes
	if len(sizes) == 0 {
		sizes = config.DefaultThumbnailSizes()
	}

	return &ContentStore{
		root:              absRoot,
		allowedExtensions: extSet,
		maxFileSizeBytes:  cfg.MaxFileSizeBytes(),
		thumbnailSizes:    sizes,
	}, nil
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Root returns the absolute store root
func (s *ContentStore) Root() string {
	return s.root
}

// MaxFileSizeBytes returns the per-item size limit
func (s *ContentStore) MaxFileSizeBytes() int64 {
	return s.maxFileSizeBytes
}

// IsAllowedExtension reports whether ext (with or without the dot) may be stored
func (s *ContentStore) IsAllowedExtension(ext string) bool {
	return s.allowedExtensions[normalizeExt(ext)]
}

// ThumbnailSizes returns the configured size names and their maximum dimension
func (s *ContentStore) ThumbnailSizes() map[string]int {
	sizes := make(map[string]int, len(s.thumbnailSizes))
	for name, dim := range s.thumbnailSizes {
		sizes[name] = dim
	}
	return sizes
}

// ThumbnailSizeNames returns the configured size names, sorted
func (s *ContentStore) ThumbnailSizeNames() []string {
	names := make([]string, 0, len(s.thumbnailSizes))
	for name := range s.thumbnailSizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PathFor returns the canonical relative path of an original. The month is
// taken from uploadedAt in UTC.
func (s *ContentStore) PathFor(checksum, ext string, uploadedAt time.Time) (string, error) {
	checksum = strings.ToLower(checksum)
	if !checksumPattern.MatchString(checksum) {
		return "", models.ErrInvalidChecksum
	}
	ext = normalizeExt(ext)
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		return "", models.ErrInvalidExtension
	}

	u := uploadedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s/%s.%s",
		originalsDir, u.Year(), int(u.Month()), checksum[:2], checksum, ext), nil
}

// ThumbnailPathFor maps an original path to thumbnails/<size>/ followed by
// the original's path below originals/, extension included
func (s *ContentStore) ThumbnailPathFor(originalPath, size string) (string, error) {
	if _, ok := s.thumbnailSizes[size]; !ok {
		return "", models.ErrInvalidVariant
	}
	rest := strings.TrimPrefix(filepath.ToSlash(originalPath), originalsDir+"/")
	if rest == filepath.ToSlash(originalPath) {
		return "", models.ErrEmptyStoredPath
	}
	return thumbnailsDir + "/" + size + "/" + rest, nil
}

// FullPath resolves a stored relative path, refusing anything outside the root
func (s *ContentStore) FullPath(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", models.ErrEmptyStoredPath
	}

	full := filepath.Join(s.root, filepath.FromSlash(storedPath))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}
	return full, nil
}

// Exists returns the stored path holding checksum in any month bucket
func (s *ContentStore) Exists(checksum string) (string, bool) {
	checksum = strings.ToLower(checksum)
	if !checksumPattern.MatchString(checksum) {
		return "", false
	}

	pattern := filepath.Join(s.root, originalsDir, "*", "*", checksum[:2], checksum+".*")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}

	rel, err := filepath.Rel(s.root, matches[0])
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ExistsAt checks if a file exists at the given stored path
func (s *ContentStore) ExistsAt(storedPath string) bool {
	full, err := s.FullPath(storedPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// WriteIfAbsent stores r at the canonical path for checksum. When the path
// already exists nothing is written and created is false.
func (s *ContentStore) WriteIfAbsent(r io.Reader, checksum, ext string, uploadedAt time.Time) (string, bool, error) {
	storedPath, err := s.PathFor(checksum, ext, uploadedAt)
	if err != nil {
		return "", false, &models.StorageWriteError{Path: checksum, Err: err}
	}

	full, err := s.FullPath(storedPath)
	if err != nil {
		return "", false, &models.StorageWriteError{Path: storedPath, Err: err}
	}
	if _, err := os.Stat(full); err == nil {
		return storedPath, false, nil
	}

	created, err := writeAtomic(full, r, false)
	if err != nil {
		return "", false, &models.StorageWriteError{Path: storedPath, Err: err}
	}
	return storedPath, created, nil
}

// WriteVariant stores a rendered thumbnail of originalPath, replacing any
// previous rendering
func (s *ContentStore) WriteVariant(originalPath, size string, r io.Reader) (string, error) {
	thumbPath, err := s.ThumbnailPathFor(originalPath, size)
	if err != nil {
		return "", err
	}

	full, err := s.FullPath(thumbPath)
	if err != nil {
		return "", err
	}
	if _, err := writeAtomic(full, r, true); err != nil {
		return "", &models.StorageWriteError{Path: thumbPath, Err: err}
	}
	return thumbPath, nil
}

// writeAtomic streams r into a temp file next to dst and moves it into
// place. Without overwrite, an existing dst wins and created is false.
func writeAtomic(dst string, r io.Reader, overwrite bool) (created bool, err error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	if overwrite {
		if err := os.Rename(tmpName, dst); err != nil {
			return false, err
		}
		return true, nil
	}

	// Link refuses to replace dst, so a concurrent writer of the same
	// checksum cannot be clobbered
	linkErr := os.Link(tmpName, dst)
	switch {
	case linkErr == nil:
		return true, nil
	case errors.Is(linkErr, fs.ErrExist):
		return false, nil
	}

	// Filesystems without hard links
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Open opens the original (variant "" or "original") or a named thumbnail
func (s *ContentStore) Open(storedPath, variant string) (*os.File, error) {
	target := storedPath
	if variant != "" && variant != VariantOriginal {
		thumbPath, err := s.ThumbnailPathFor(storedPath, variant)
		if err != nil {
			return nil, err
		}
		target = thumbPath
	}

	full, err := s.FullPath(target)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrContentNotFound
	}
	return f, err
}

// Delete removes an original and every configured thumbnail of it. It
// attempts every file and reports each outcome.
func (s *ContentStore) Delete(storedPath string) DeleteReport {
	report := DeleteReport{Failed: map[string]error{}}

	targets := []string{storedPath}
	for _, size := range s.ThumbnailSizeNames() {
		if thumbPath, err := s.ThumbnailPathFor(storedPath, size); err == nil {
			targets = append(targets, thumbPath)
		}
	}

	for _, target := range targets {
		full, err := s.FullPath(target)
		if err != nil {
			report.Failed[target] = err
			continue
		}
		err = os.Remove(full)
		switch {
		case err == nil:
			report.Removed = append(report.Removed, target)
		case errors.Is(err, fs.ErrNotExist):
			report.Missing = append(report.Missing, target)
		default:
			report.Failed[target] = err
		}
	}
	return report
}

// AggregateStats walks the originals and sums their sizes
func (s *ContentStore) AggregateStats() (StoreStats, error) {
	var stats StoreStats
	err := filepath.WalkDir(filepath.Join(s.root, originalsDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.TotalBytes += info.Size()
		stats.ItemCount++
		return nil
	})
	return stats, err
}
