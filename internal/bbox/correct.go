package bbox

import (
	"math"

	"github.com/ironsheep/coco2yolo/internal/coco"
)

// OutOfBounds reports whether the box crosses any edge of a width x height
// image. It does not look at the sign of W or H.
func OutOfBounds(b coco.BBox, width, height int) bool {
	return b.X < 0 || b.Y < 0 || b.XMax() > float64(width) || b.YMax() > float64(height)
}

// Fix clamps b into a width x height image. The result always satisfies
// 0 <= X, 0 <= Y, X+W <= width, Y+H <= height, W >= 1 and H >= 1 provided
// width and height are at least 1.
func Fix(b coco.BBox, width, height int) coco.BBox {
	w, h := float64(width), float64(height)

	x := math.Min(math.Max(b.X, 0), w-1)
	y := math.Min(math.Max(b.Y, 0), h-1)
	xMax := math.Min(b.XMax(), w)
	yMax := math.Min(b.YMax(), h)

	return coco.BBox{
		X: x,
		Y: y,
		W: math.Max(1, xMax-x),
		H: math.Max(1, yMax-y),
	}
}

// Correct returns a copy of annotations with every out-of-bounds box clamped
// by Fix, and the number of boxes that actually changed.
//
// Annotations whose image_id does not resolve to an image with positive
// dimensions are passed through untouched; callers that need every
// annotation resolved must drop orphans first.
func Correct(images []coco.Image, annotations []coco.Annotation) ([]coco.Annotation, int) {
	index := coco.ImageIndex(images)
	out := make([]coco.Annotation, len(annotations))
	corrected := 0

	for i, ann := range annotations {
		out[i] = ann
		img, ok := index[ann.ImageID.String()]
		if !ok || img.Width <= 0 || img.Height <= 0 {
			continue
		}
		if !OutOfBounds(ann.BBox, img.Width, img.Height) {
			continue
		}
		fixed := Fix(ann.BBox, img.Width, img.Height)
		if fixed != ann.BBox {
			out[i].BBox = fixed
			corrected++
		}
	}

	return out, corrected
}

// Degenerate reports a box with non-positive width or height. A box that is
// zero in both extents is degenerate too.
func Degenerate(b coco.BBox) bool {
	return b.W <= 0 || b.H <= 0
}
