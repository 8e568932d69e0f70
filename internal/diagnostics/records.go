package diagnostics

import (
	"github.com/ironsheep/coco2yolo/internal/bbox"
	"github.com/ironsheep/coco2yolo/internal/coco"
)

// ImagesWithoutAnnotations returns, in declaration order, the images whose id
// is never used as an annotation's image_id.
func ImagesWithoutAnnotations(images []coco.Image, annotations []coco.Annotation) []coco.Image {
	used := make(map[string]struct{}, len(annotations))
	for _, a := range annotations {
		used[a.ImageID.String()] = struct{}{}
	}

	var out []coco.Image
	for _, img := range images {
		if _, ok := used[img.ID.String()]; !ok {
			out = append(out, img)
		}
	}
	return out
}

// AnnotationsWithoutImages returns the orphan annotations: those whose
// image_id is not the id of any image.
func AnnotationsWithoutImages(annotations []coco.Annotation, images []coco.Image) []coco.Annotation {
	ids := make(map[string]struct{}, len(images))
	for _, img := range images {
		ids[img.ID.String()] = struct{}{}
	}

	var out []coco.Annotation
	for _, a := range annotations {
		if _, ok := ids[a.ImageID.String()]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// AbnormalBoxes returns the annotations whose box has a non-positive width or
// height. A box that is zero in both extents is abnormal.
func AbnormalBoxes(annotations []coco.Annotation) []coco.Annotation {
	var out []coco.Annotation
	for _, a := range annotations {
		if bbox.Degenerate(a.BBox) {
			out = append(out, a)
		}
	}
	return out
}

// OutOfBoundsAnnotation is an annotation whose box crosses its image's edges.
type OutOfBoundsAnnotation struct {
	Annotation  coco.Annotation `json:"annotation"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
}

// OutOfBoundsAnnotations returns the annotations that join to an image and
// extend past its bounds. These are the boxes bbox.Correct would repair.
func OutOfBoundsAnnotations(annotations []coco.Annotation, images []coco.Image) []OutOfBoundsAnnotation {
	index := coco.ImageIndex(images)

	var out []OutOfBoundsAnnotation
	for _, a := range annotations {
		img, ok := index[a.ImageID.String()]
		if !ok {
			continue
		}
		if bbox.OutOfBounds(a.BBox, img.Width, img.Height) {
			out = append(out, OutOfBoundsAnnotation{Annotation: a, ImageWidth: img.Width, ImageHeight: img.Height})
		}
	}
	return out
}
