package yolo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/coco2yolo/internal/coco"
)

// Options controls Export.
type Options struct {
	// OutputDir is the root of the exported layout.
	OutputDir string

	// ImagesDir holds the source image files named by Image.FileName.
	ImagesDir string

	// Workers bounds concurrent image copies. Values below 1 mean 1.
	Workers int

	// Logger receives per-file progress and failures. Nil disables logging.
	Logger *zerolog.Logger
}

// Result summarizes an export.
type Result struct {
	Manifest Manifest `json:"manifest"`

	Images      map[Split]int `json:"images"`
	Annotations int           `json:"annotations"`
	LabelFiles  int           `json:"label_files"`

	// UnassignedImages counts images absent from the split assignment; they
	// and their annotations are not exported.
	UnassignedImages int `json:"unassigned_images"`

	Copied          int                `json:"copied"`
	SkippedExisting int                `json:"skipped_existing"`
	Failures        []coco.FileFailure `json:"failures,omitempty"`
}

// Err returns a *coco.PartialWriteError when any copy failed, nil otherwise.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &coco.PartialWriteError{Failures: r.Failures}
}

// labelFile is the buffered content of one label file.
type labelFile struct {
	image coco.Image
	split Split
	path  string
	buf   bytes.Buffer
}

// Export writes ds in the YOLO layout according to assignment.
//
// Every reference is resolved before anything is written: an annotation
// whose image or category is unknown yields a *coco.SchemaError, an image
// with non-positive size a *coco.MalformedInputError, and two images whose
// label files would collide an error. Copy failures are reported in
// Result.Failures and do not make Export fail.
func Export(ctx context.Context, fsys afero.Fs, ds coco.Dataset, assignment Assignment, opts Options) (*Result, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	files, order, unassigned, err := planLabels(ds, assignment, opts.OutputDir)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Manifest:         NewManifest(opts.OutputDir, ds.CategoryNames()),
		Images:           map[Split]int{Train: 0, Val: 0, Test: 0},
		UnassignedImages: unassigned,
	}

	if err := writeAnnotations(ds, files, res); err != nil {
		return nil, err
	}

	for _, s := range Splits {
		for _, dir := range []string{imagesDir(s), labelsDir(s)} {
			p := filepath.Join(opts.OutputDir, filepath.FromSlash(dir))
			if err := fsys.MkdirAll(p, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", p, err)
			}
		}
	}

	for _, key := range order {
		lf := files[key]
		if err := afero.WriteFile(fsys, lf.path, lf.buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", lf.path, err)
		}
		res.LabelFiles++
		res.Images[lf.split]++
	}
	log.Debug().Int("label_files", res.LabelFiles).Msg("label files written")

	if err := copyImages(ctx, fsys, files, order, opts, res, log); err != nil {
		return nil, err
	}

	if err := res.Manifest.Write(fsys); err != nil {
		return nil, err
	}

	return res, nil
}

// planLabels resolves the destination of every assigned image, in
// declaration order, and checks image sizes and label collisions.
func planLabels(ds coco.Dataset, assignment Assignment, outDir string) (map[string]*labelFile, []string, int, error) {
	files := make(map[string]*labelFile, len(ds.Images))
	order := make([]string, 0, len(ds.Images))
	owners := make(map[string]string, len(ds.Images))
	unassigned := 0

	for i, img := range ds.Images {
		key := img.ID.String()
		if _, dup := files[key]; dup {
			continue
		}
		split, ok := assignment.Of(img.ID)
		if !ok {
			unassigned++
			continue
		}
		if img.Width <= 0 || img.Height <= 0 {
			return nil, nil, 0, &coco.MalformedInputError{
				Key:    fmt.Sprintf("images[%d]", i),
				Reason: fmt.Sprintf("image %s has non-positive size %dx%d", img.ID, img.Width, img.Height),
			}
		}

		name := filepath.Base(filepath.FromSlash(img.FileName))
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		p := filepath.Join(outDir, filepath.FromSlash(labelsDir(split)), stem+".txt")
		if other, clash := owners[p]; clash {
			return nil, nil, 0, fmt.Errorf("images %s and %s both map to label file %s", other, img.FileName, p)
		}
		owners[p] = img.FileName

		files[key] = &labelFile{image: img, split: split, path: p}
		order = append(order, key)
	}
	return files, order, unassigned, nil
}

// writeAnnotations appends one label line per annotation, in annotation
// order, to the buffer of its image.
func writeAnnotations(ds coco.Dataset, files map[string]*labelFile, res *Result) error {
	images := coco.ImageIndex(ds.Images)
	classes := coco.ClassIndex(ds.Categories)

	for _, a := range ds.Annotations {
		if _, ok := images[a.ImageID.String()]; !ok {
			return &coco.SchemaError{Record: "annotation", RecordID: a.ID, Ref: "image", RefID: a.ImageID}
		}
		class, ok := classes[a.CategoryID.String()]
		if !ok {
			return &coco.SchemaError{Record: "annotation", RecordID: a.ID, Ref: "category", RefID: a.CategoryID}
		}

		lf, ok := files[a.ImageID.String()]
		if !ok {
			continue // image not assigned to any split
		}
		line := FormatLabel(class, Normalize(a.BBox, lf.image.Width, lf.image.Height))
		lf.buf.WriteString(line)
		res.Annotations++
	}
	return nil
}

// copyImages copies every planned image into its split directory on a
// bounded worker pool. Failures are recorded in res, never returned.
func copyImages(ctx context.Context, fsys afero.Fs, files map[string]*labelFile, order []string, opts Options, res *Result, log zerolog.Logger) error {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, key := range order {
		lf := files[key]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			src := filepath.Join(opts.ImagesDir, filepath.FromSlash(lf.image.FileName))
			dst := filepath.Join(opts.OutputDir, filepath.FromSlash(imagesDir(lf.split)), filepath.Base(filepath.FromSlash(lf.image.FileName)))
			copied, err := copyFile(fsys, src, dst)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failures = append(res.Failures, coco.FileFailure{File: lf.image.FileName, Reason: err.Error()})
				log.Warn().Err(err).Str("file", lf.image.FileName).Msg("image copy failed")
			case copied:
				res.Copied++
			default:
				res.SkippedExisting++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].File < res.Failures[j].File })
	return nil
}

// copyFile copies src to dst unless dst exists. It reports whether a copy
// was made. A partially written destination is removed.
func copyFile(fsys afero.Fs, src, dst string) (bool, error) {
	if exists, err := afero.Exists(fsys, dst); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}

	in, err := fsys.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		fsys.Remove(dst)
		return false, err
	}
	if err := out.Close(); err != nil {
		fsys.Remove(dst)
		return false, err
	}
	return true, nil
}
