package diagnostics

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/imaging"
)

// DimensionMismatch is an image whose declared size differs from the size of
// the file on disk after EXIF orientation.
type DimensionMismatch struct {
	ImageID        coco.ID `json:"image_id"`
	FileName       string  `json:"file_name"`
	DeclaredWidth  int     `json:"declared_width"`
	DeclaredHeight int     `json:"declared_height"`
	ActualWidth    int     `json:"actual_width"`
	ActualHeight   int     `json:"actual_height"`
}

// DimensionAudit is the result of AuditDimensions.
type DimensionAudit struct {
	Checked    int                 `json:"checked"`
	Mismatches []DimensionMismatch `json:"mismatches,omitempty"`
	Failures   []coco.FileFailure  `json:"failures,omitempty"`
}

// AuditDimensions probes every declared image file in dir and reports size
// mismatches. Files that cannot be probed are listed in Failures and do not
// stop the audit. Results are sorted by file name, independent of workers.
func AuditDimensions(ctx context.Context, cache *imaging.DimensionCache, images []coco.Image, dir string, workers int) (DimensionAudit, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu    sync.Mutex
		audit DimensionAudit
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, img := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			d, err := cache.Get(filepath.Join(dir, img.FileName))

			mu.Lock()
			defer mu.Unlock()
			audit.Checked++
			if err != nil {
				audit.Failures = append(audit.Failures, coco.FileFailure{File: img.FileName, Reason: err.Error()})
				return nil
			}
			if d.Width != img.Width || d.Height != img.Height {
				audit.Mismatches = append(audit.Mismatches, DimensionMismatch{
					ImageID:        img.ID,
					FileName:       img.FileName,
					DeclaredWidth:  img.Width,
					DeclaredHeight: img.Height,
					ActualWidth:    d.Width,
					ActualHeight:   d.Height,
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return DimensionAudit{}, err
	}

	sort.Slice(audit.Mismatches, func(i, j int) bool {
		return audit.Mismatches[i].FileName < audit.Mismatches[j].FileName
	})
	sort.Slice(audit.Failures, func(i, j int) bool {
		return audit.Failures[i].File < audit.Failures[j].File
	})
	return audit, nil
}
