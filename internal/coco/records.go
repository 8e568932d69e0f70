package coco

import (
	"fmt"

	"github.com/goccy/go-json"
)

// BBox is a COCO bounding box: top-left corner and extents in pixels.
// It is encoded as the array [x, y, w, h].
type BBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// XMax returns the right edge.
func (b BBox) XMax() float64 { return b.X + b.W }

// YMax returns the bottom edge.
func (b BBox) YMax() float64 { return b.Y + b.H }

func (b BBox) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.X, b.Y, b.W, b.H)
}

// UnmarshalJSON decodes a four-element numeric array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %d", len(v))
	}
	*b = BBox{X: v[0], Y: v[1], W: v[2], H: v[3]}
	return nil
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.W, b.H})
}

// Image is one entry of the "images" array.
type Image struct {
	ID       ID
	FileName string
	Width    int
	Height   int

	// Extra holds members this package does not interpret.
	Extra map[string]json.RawMessage
}

// Annotation is one entry of the "annotations" array.
type Annotation struct {
	ID         ID
	ImageID    ID
	CategoryID ID
	BBox       BBox

	// Extra holds members this package does not interpret (area, iscrowd, ...).
	Extra map[string]json.RawMessage
}

// Category is one entry of the "categories" array.
type Category struct {
	ID   ID
	Name string

	Extra map[string]json.RawMessage
}

type imageFields struct {
	ID       ID     `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (img *Image) UnmarshalJSON(data []byte) error {
	var f imageFields
	extra, err := decodeRecord(data, &f, "id", "file_name", "width", "height")
	if err != nil {
		return err
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("image %s has non-positive size %dx%d", f.ID, f.Width, f.Height)
	}
	*img = Image{ID: f.ID, FileName: f.FileName, Width: f.Width, Height: f.Height, Extra: extra}
	return nil
}

func (img Image) MarshalJSON() ([]byte, error) {
	return encodeRecord(img.Extra, map[string]any{
		"id":        img.ID,
		"file_name": img.FileName,
		"width":     img.Width,
		"height":    img.Height,
	})
}

type annotationFields struct {
	ID         ID    `json:"id"`
	ImageID    ID    `json:"image_id"`
	CategoryID ID    `json:"category_id"`
	BBox       *BBox `json:"bbox"`
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var f annotationFields
	extra, err := decodeRecord(data, &f, "id", "image_id", "category_id", "bbox")
	if err != nil {
		return err
	}
	*a = Annotation{ID: f.ID, ImageID: f.ImageID, CategoryID: f.CategoryID, Extra: extra}
	if f.BBox != nil {
		a.BBox = *f.BBox
	}
	return nil
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"id":       a.ID,
		"image_id": a.ImageID,
		"bbox":     a.BBox,
	}
	if !a.CategoryID.IsZero() {
		known["category_id"] = a.CategoryID
	}
	return encodeRecord(a.Extra, known)
}

type categoryFields struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var f categoryFields
	extra, err := decodeRecord(data, &f, "id", "name")
	if err != nil {
		return err
	}
	*c = Category{ID: f.ID, Name: f.Name, Extra: extra}
	return nil
}

func (c Category) MarshalJSON() ([]byte, error) {
	return encodeRecord(c.Extra, map[string]any{
		"id":   c.ID,
		"name": c.Name,
	})
}

// decodeRecord decodes the known members into dst and returns the rest.
func decodeRecord(data []byte, dst any, known ...string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// encodeRecord merges known members over the preserved extras.
func encodeRecord(extra map[string]json.RawMessage, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}
