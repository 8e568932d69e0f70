package diagnostics

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/ironsheep/coco2yolo/internal/coco"
)

// listFiles returns the names of regular files directly inside dir.
func listFiles(fsys afero.Fs, dir string) ([]string, error) {
	info, err := fsys.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &coco.DirectoryNotFoundError{Path: dir, Err: err}
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, &coco.DirectoryNotFoundError{Path: dir}
	}

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// FileExtensions returns the sorted, lower-cased set of file suffixes (".jpg")
// of the regular files directly inside dir. Files without a suffix and
// subdirectories contribute nothing.
func FileExtensions(fsys afero.Fs, dir string) ([]string, error) {
	names, err := listFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, name := range names {
		if ext := strings.ToLower(filepath.Ext(name)); ext != "" && ext != name {
			seen[ext] = struct{}{}
		}
	}

	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts, nil
}

// Consistency compares declared image files with the files present on disk.
type Consistency struct {
	Declared     int `json:"total_declared"`
	Actual       int `json:"total_actual"`
	Missing      int `json:"missing_count"`
	Unreferenced int `json:"unreferenced_count"`

	MissingFiles      []string `json:"missing_files,omitempty"`
	UnreferencedFiles []string `json:"unreferenced_files,omitempty"`
}

// ImageDiskConsistency reports files declared by images but absent from dir,
// and files present in dir that no image declares. Only the top level of dir
// is inspected. Declared names are deduplicated.
func ImageDiskConsistency(fsys afero.Fs, images []coco.Image, dir string) (Consistency, error) {
	names, err := listFiles(fsys, dir)
	if err != nil {
		return Consistency{}, err
	}

	actual := make(map[string]struct{}, len(names))
	for _, n := range names {
		actual[n] = struct{}{}
	}
	declared := make(map[string]struct{}, len(images))
	for _, img := range images {
		declared[img.FileName] = struct{}{}
	}

	c := Consistency{Declared: len(declared), Actual: len(actual)}
	for n := range declared {
		if _, ok := actual[n]; !ok {
			c.MissingFiles = append(c.MissingFiles, n)
		}
	}
	for n := range actual {
		if _, ok := declared[n]; !ok {
			c.UnreferencedFiles = append(c.UnreferencedFiles, n)
		}
	}
	sort.Strings(c.MissingFiles)
	sort.Strings(c.UnreferencedFiles)
	c.Missing = len(c.MissingFiles)
	c.Unreferenced = len(c.UnreferencedFiles)

	return c, nil
}
