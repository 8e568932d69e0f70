package imaging

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

// Dimensions is the displayed size of an image file.
type Dimensions struct {
	// Width is the image width in pixels after orientation is applied.
	Width int `json:"width"`

	// Height is the image height in pixels after orientation is applied.
	Height int `json:"height"`

	// Format is the format implied by the file extension: "png", "jpeg",
	// "gif", "bmp", "tiff", or "unknown".
	Format string `json:"format"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Probe decodes the image at path and returns its oriented dimensions.
//
// Parameters:
//   - fsys: Filesystem the path is resolved against.
//   - path: Path to the image file.
//
// Returns:
//   - *Dimensions: Size and format of the image.
//   - error: Non-nil if the file cannot be opened, stat'd or decoded.
func Probe(fsys afero.Fs, path string) (*Dimensions, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	return &Dimensions{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        formatFromExt(path),
		FileSizeBytes: stat.Size(),
	}, nil
}

// formatFromExt maps a file extension to a format name.
func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	}
	return "unknown"
}

// DimensionCache memoizes Probe results by path.
//
// Entries are keyed by the exact path string; relative and absolute paths to
// the same file are cached separately. Failed probes are not cached.
type DimensionCache struct {
	fsys afero.Fs

	mu      sync.RWMutex
	entries map[string]Dimensions
}

// NewDimensionCache creates an empty cache that probes files on fsys.
func NewDimensionCache(fsys afero.Fs) *DimensionCache {
	return &DimensionCache{
		fsys:    fsys,
		entries: make(map[string]Dimensions),
	}
}

// Get returns the dimensions of path, probing the file on first use.
func (c *DimensionCache) Get(path string) (Dimensions, error) {
	c.mu.RLock()
	if d, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	d, err := Probe(c.fsys, path)
	if err != nil {
		return Dimensions{}, err
	}

	c.mu.Lock()
	c.entries[path] = *d
	c.mu.Unlock()

	return *d, nil
}
