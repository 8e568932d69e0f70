// Package bbox repairs annotation geometry that violates image bounds.
//
// Boxes use the COCO convention: (X, Y) is the top-left corner and (W, H)
// are extents, all in pixels of the owning image. A box is in bounds when
// X >= 0, Y >= 0, X+W <= width and Y+H <= height.
//
// Correction clamps rather than drops. A box clamped to nothing still keeps
// a 1x1 footprint inside the image; removing truly degenerate boxes is the
// cleaner's job and happens after correction.
package bbox
