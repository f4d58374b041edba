package client

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Candidate is one device photo that may need uploading
type Candidate struct {
	DeviceID   string
	Filename   string
	Path       string
	CapturedAt time.Time
}

// DeviceAlbum is a source of photos on the device
type DeviceAlbum interface {
	ID() string
	Name() string
	Count() (int, error)
	// Newest returns up to n items, newest first
	Newest(n int) ([]Candidate, error)
}

var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true, ".heif": true,
}

// DirectoryAlbum treats the photos directly inside a folder as an album.
// Modification time stands in for capture time.
type DirectoryAlbum struct {
	id   string
	name string
	path string
}

// NewDirectoryAlbum creates an album over path
func NewDirectoryAlbum(id, name, path string) *DirectoryAlbum {
	if name == "" {
		name = filepath.Base(path)
	}
	return &DirectoryAlbum{id: id, name: name, path: path}
}

func (a *DirectoryAlbum) ID() string   { return a.id }
func (a *DirectoryAlbum) Name() string { return a.name }

func (a *DirectoryAlbum) Count() (int, error) {
	items, err := a.scan()
	return len(items), err
}

func (a *DirectoryAlbum) Newest(n int) ([]Candidate, error) {
	items, err := a.scan()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	if n < len(items) {
		items = items[:n]
	}
	return items, nil
}

func (a *DirectoryAlbum) scan() ([]Candidate, error) {
	entries, err := os.ReadDir(a.path)
	if err != nil {
		return nil, err
	}

	var items []Candidate
	for _, e := range entries {
		if e.IsDir() || !photoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Candidate{
			DeviceID:   a.id + "/" + e.Name(),
			Filename:   e.Name(),
			Path:       filepath.Join(a.path, e.Name()),
			CapturedAt: info.ModTime().UTC(),
		})
	}
	return items, nil
}

// sortNewestFirst orders by capture time descending, then device id
func sortNewestFirst(items []Candidate) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CapturedAt.Equal(items[j].CapturedAt) {
			return items[i].CapturedAt.After(items[j].CapturedAt)
		}
		return items[i].DeviceID < items[j].DeviceID
	})
}
