package yolo

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name inside the output directory.
const ManifestFile = "dataset.yaml"

// LabelDirs lists the label directory of each subset, relative to Path.
type LabelDirs struct {
	Train string `yaml:"train" json:"train"`
	Val   string `yaml:"val" json:"val"`
	Test  string `yaml:"test" json:"test"`
}

// Manifest points a training framework at the exported layout.
type Manifest struct {
	Path   string    `yaml:"path" json:"path"`
	Train  string    `yaml:"train" json:"train"`
	Val    string    `yaml:"val" json:"val"`
	Test   string    `yaml:"test" json:"test"`
	Labels LabelDirs `yaml:"labels" json:"labels"`
	NC     int       `yaml:"nc" json:"nc"`
	Names  []string  `yaml:"names" json:"names"`
}

// NewManifest describes an export rooted at root with the given class names.
func NewManifest(root string, names []string) Manifest {
	if names == nil {
		names = []string{}
	}
	return Manifest{
		Path:  root,
		Train: imagesDir(Train),
		Val:   imagesDir(Val),
		Test:  imagesDir(Test),
		Labels: LabelDirs{
			Train: labelsDir(Train),
			Val:   labelsDir(Val),
			Test:  labelsDir(Test),
		},
		NC:    len(names),
		Names: names,
	}
}

func imagesDir(s Split) string { return path.Join(string(s), "images") }
func labelsDir(s Split) string { return path.Join(string(s), "labels") }

// Write stores the manifest as YAML at {m.Path}/dataset.yaml.
func (m Manifest) Write(fsys afero.Fs) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	dst := filepath.Join(m.Path, ManifestFile)
	if err := afero.WriteFile(fsys, dst, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(fsys afero.Fs, root string) (Manifest, error) {
	b, err := afero.ReadFile(fsys, filepath.Join(root, ManifestFile))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}
