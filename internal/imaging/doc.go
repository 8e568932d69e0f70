// Package imaging measures image files referenced by an annotation document.
//
// Annotation coordinates are only meaningful relative to the width and height
// the document declares for each image. Those declarations are sometimes
// wrong: images get re-exported, resized, or carry an EXIF orientation tag
// that swaps width and height once a training framework applies it. This
// package decodes image files to obtain their displayed dimensions so that
// declared sizes can be audited. Images are never modified or re-encoded.
//
// # Orientation
//
// Dimensions are reported after applying the EXIF orientation tag, which is
// how detection frameworks load images for training. A 4000x3000 JPEG tagged
// "rotate 90" therefore reports 3000x4000.
//
// # Thread Safety
//
// DimensionCache is safe for concurrent use. Probe itself is stateless.
//
// # Supported Formats
//
// JPEG, PNG, GIF, BMP and TIFF, as registered by github.com/disintegration/imaging.
//
// # Memory
//
// Probing decodes the whole image. The cache keeps only the resulting
// dimensions, never pixel data, so it stays small for large datasets.
package imaging
