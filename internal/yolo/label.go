package yolo

import (
	"fmt"

	"github.com/ironsheep/coco2yolo/internal/coco"
)

// Box is a normalized YOLO box: center and extents as fractions of the image
// size.
type Box struct {
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// Normalize converts a COCO pixel box to a YOLO box for a width x height image.
func Normalize(b coco.BBox, width, height int) Box {
	w, h := float64(width), float64(height)
	return Box{
		XCenter: (b.X + b.W/2) / w,
		YCenter: (b.Y + b.H/2) / h,
		Width:   b.W / w,
		Height:  b.H / h,
	}
}

// Denormalize converts a YOLO box back to COCO pixels.
func Denormalize(b Box, width, height int) coco.BBox {
	w, h := float64(width), float64(height)
	return coco.BBox{
		X: b.XCenter*w - b.Width*w/2,
		Y: b.YCenter*h - b.Height*h/2,
		W: b.Width * w,
		H: b.Height * h,
	}
}

// FormatLabel renders one newline-terminated label line.
func FormatLabel(class int, b Box) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f\n", class, b.XCenter, b.YCenter, b.Width, b.Height)
}
