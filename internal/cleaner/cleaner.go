// Package cleaner turns a raw dataset into a clean one: every annotation
// refers to a retained image, every retained image has at least one
// annotation, and every box lies inside its image with positive extents.
package cleaner

import (
	"fmt"

	"github.com/ironsheep/coco2yolo/internal/bbox"
	"github.com/ironsheep/coco2yolo/internal/coco"
	"github.com/ironsheep/coco2yolo/internal/diagnostics"
)

// Log counts what each cleaning stage changed. All counts are reported even
// when zero.
type Log struct {
	ImagesRemovedNoAnnotations  int `json:"images_removed_no_annotations"`
	AnnotationsOrphanRemoved    int `json:"annotations_orphan_removed"`
	AnnotationsBBoxCorrected    int `json:"annotations_bbox_corrected"`
	AnnotationsAbnormalRemoved  int `json:"annotations_abnormal_removed"`
	ImagesRemovedAfterFiltering int `json:"images_removed_after_filtering"`
}

// Changed reports whether any stage altered the dataset.
func (l Log) Changed() bool {
	return l != Log{}
}

// Clean runs the cleaning stages in order, each on the output of the previous:
//
//  1. drop images without annotations
//  2. drop annotations whose image is not among the remaining images
//  3. clamp out-of-bounds boxes (bbox.Correct)
//  4. drop annotations whose box is still degenerate
//  5. drop images left without annotations by stage 4
//
// The input is never modified; categories are carried over unchanged. Running
// Clean on its own output changes nothing.
//
// An annotated image with a non-positive width or height cannot be clamped
// and yields a *coco.MalformedInputError. A *coco.SchemaError is returned if an annotation still fails to resolve to
// an image after stage 5, which indicates a bug rather than bad input.
func Clean(ds coco.Dataset) (coco.Dataset, Log, error) {
	var log Log

	images := removeImages(ds.Images, diagnostics.ImagesWithoutAnnotations(ds.Images, ds.Annotations))
	log.ImagesRemovedNoAnnotations = len(ds.Images) - len(images)

	annotations := removeAnnotations(ds.Annotations, diagnostics.AnnotationsWithoutImages(ds.Annotations, images))
	log.AnnotationsOrphanRemoved = len(ds.Annotations) - len(annotations)

	for _, img := range images {
		if img.Width <= 0 || img.Height <= 0 {
			return coco.Dataset{}, log, &coco.MalformedInputError{
				Key:    coco.KeyImages,
				Reason: fmt.Sprintf("image %s has non-positive size %dx%d", img.ID, img.Width, img.Height),
			}
		}
	}

	annotations, log.AnnotationsBBoxCorrected = bbox.Correct(images, annotations)

	before := len(annotations)
	annotations = removeAnnotations(annotations, diagnostics.AbnormalBoxes(annotations))
	log.AnnotationsAbnormalRemoved = before - len(annotations)

	before = len(images)
	images = removeImages(images, diagnostics.ImagesWithoutAnnotations(images, annotations))
	log.ImagesRemovedAfterFiltering = before - len(images)

	if orphans := diagnostics.AnnotationsWithoutImages(annotations, images); len(orphans) > 0 {
		a := orphans[0]
		return coco.Dataset{}, log, &coco.SchemaError{Record: "annotation", RecordID: a.ID, Ref: "image", RefID: a.ImageID}
	}

	return coco.Dataset{
		Images:      images,
		Annotations: annotations,
		Categories:  append([]coco.Category(nil), ds.Categories...),
	}, log, nil
}

// removeImages returns images minus every image whose id appears in drop.
func removeImages(images, drop []coco.Image) []coco.Image {
	ids := make(map[string]struct{}, len(drop))
	for _, img := range drop {
		ids[img.ID.String()] = struct{}{}
	}
	out := make([]coco.Image, 0, len(images))
	for _, img := range images {
		if _, ok := ids[img.ID.String()]; !ok {
			out = append(out, img)
		}
	}
	return out
}

// removeAnnotations returns annotations minus drop. drop must be an ordered
// subsequence of annotations, which holds for every diagnostics result; the
// two slices are walked in step so duplicate ids never remove the wrong record.
func removeAnnotations(annotations, drop []coco.Annotation) []coco.Annotation {
	out := make([]coco.Annotation, 0, len(annotations)-len(drop))
	j := 0
	for _, a := range annotations {
		if j < len(drop) && sameAnnotation(a, drop[j]) {
			j++
			continue
		}
		out = append(out, a)
	}
	return out
}

func sameAnnotation(a, b coco.Annotation) bool {
	return a.ID.Equal(b.ID) && a.ImageID.Equal(b.ImageID) && a.BBox == b.BBox
}
