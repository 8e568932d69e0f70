package diagnostics

import (
	"context"

	"github.com/spf13/afero"

	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/imaging"
)

// Options controls Diagnose.
type Options struct {
	// ImagesDir is the directory holding the declared image files.
	ImagesDir string

	// FewAnnotationsThreshold is the cutoff for ImagesWithFewAnnotations.
	FewAnnotationsThreshold int

	// Dimensions, when non-nil, enables the dimension audit.
	Dimensions *imaging.DimensionCache

	// Workers bounds concurrent probes during the dimension audit.
	Workers int
}

// Report holds every diagnostic for one dataset. Directory-based checks that
// fail record their error and leave their section empty; the remaining checks
// are still computed.
type Report struct {
	Images      int      `json:"images"`
	Annotations int      `json:"annotations"`
	Categories  []string `json:"categories"`

	Extensions      []string `json:"extensions"`
	ExtensionsError string   `json:"extensions_error,omitempty"`

	Consistency      Consistency `json:"consistency"`
	ConsistencyError string      `json:"consistency_error,omitempty"`

	ImagesWithoutAnnotations []coco.Image            `json:"images_without_annotations"`
	AnnotationsWithoutImages []coco.Annotation       `json:"annotations_without_images"`
	AbnormalBoxes            []coco.Annotation       `json:"abnormal_boxes"`
	OutOfBounds              []OutOfBoundsAnnotation `json:"out_of_bounds"`

	PerImage                 Summary                `json:"annotations_per_image"`
	PerImageCounts           []ImageAnnotationCount `json:"per_image_counts"`
	ImagesWithFewAnnotations int     `json:"images_with_few_annotations"`

	Dimensions      *DimensionAudit `json:"dimensions,omitempty"`
	DimensionsError string          `json:"dimensions_error,omitempty"`
}

// Diagnose runs all diagnostics over ds.
func Diagnose(ctx context.Context, fsys afero.Fs, ds coco.Dataset, opts Options) Report {
	r := Report{
		Images:      CountImages(ds.Images),
		Annotations: len(ds.Annotations),
		Categories:  ds.CategoryNames(),
	}

	if exts, err := FileExtensions(fsys, opts.ImagesDir); err != nil {
		r.ExtensionsError = err.Error()
	} else {
		r.Extensions = exts
	}

	if c, err := ImageDiskConsistency(fsys, ds.Images, opts.ImagesDir); err != nil {
		r.ConsistencyError = err.Error()
	} else {
		r.Consistency = c
	}

	r.ImagesWithoutAnnotations = ImagesWithoutAnnotations(ds.Images, ds.Annotations)
	r.AnnotationsWithoutImages = AnnotationsWithoutImages(ds.Annotations, ds.Images)
	r.AbnormalBoxes = AbnormalBoxes(ds.Annotations)
	r.OutOfBounds = OutOfBoundsAnnotations(ds.Annotations, ds.Images)
	r.PerImage = Summarize(ds.Annotations, ds.Images)
	r.PerImageCounts = AnnotationsPerImage(ds.Annotations, ds.Images)
	if r.PerImageCounts == nil {
		r.PerImageCounts = []ImageAnnotationCount{}
	}
	r.ImagesWithFewAnnotations = ImagesWithFewAnnotations(ds.Annotations, ds.Images, opts.FewAnnotationsThreshold)

	if opts.Dimensions != nil {
		audit, err := AuditDimensions(ctx, opts.Dimensions, ds.Images, opts.ImagesDir, opts.Workers)
		if err != nil {
			r.DimensionsError = err.Error()
		} else {
			r.Dimensions = &audit
		}
	}

	return r
}
