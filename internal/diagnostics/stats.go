package diagnostics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/coco2yolo/internal/coco"
)

// CountImages returns the number of declared images.
func CountImages(images []coco.Image) int {
	return len(images)
}

// ImageAnnotationCount is the number of annotations drawn on one image.
type ImageAnnotationCount struct {
	ImageID  coco.ID `json:"image_id"`
	FileName string  `json:"file_name"`
	Count    int     `json:"annotations"`
}

// AnnotationsPerImage counts annotations per image, in image declaration
// order. Only images with at least one annotation are listed; orphan
// annotations are ignored.
func AnnotationsPerImage(annotations []coco.Annotation, images []coco.Image) []ImageAnnotationCount {
	counts := countByImage(annotations)

	var out []ImageAnnotationCount
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		key := img.ID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if n := counts[key]; n > 0 {
			out = append(out, ImageAnnotationCount{ImageID: img.ID, FileName: img.FileName, Count: n})
		}
	}
	return out
}

// ImagesWithFewAnnotations returns how many images carry fewer than threshold
// annotations. Images without any annotation are included.
func ImagesWithFewAnnotations(annotations []coco.Annotation, images []coco.Image, threshold int) int {
	counts := countByImage(annotations)

	few := 0
	for _, img := range images {
		if counts[img.ID.String()] < threshold {
			few++
		}
	}
	return few
}

// Summary describes the distribution of annotations per image over all
// declared images, including those without annotations.
type Summary struct {
	Images      int     `json:"images"`
	Annotations int     `json:"annotations"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Median      float64 `json:"median"`
}

// Summarize computes the per-image annotation distribution. The zero Summary
// is returned for an empty image list.
func Summarize(annotations []coco.Annotation, images []coco.Image) Summary {
	if len(images) == 0 {
		return Summary{}
	}

	counts := countByImage(annotations)
	xs := make([]float64, len(images))
	total := 0
	for i, img := range images {
		n := counts[img.ID.String()]
		xs[i] = float64(n)
		total += n
	}
	sort.Float64s(xs)

	s := Summary{
		Images:      len(images),
		Annotations: total,
		Min:         xs[0],
		Max:         xs[len(xs)-1],
		Median:      stat.Quantile(0.5, stat.Empirical, xs, nil),
	}
	if len(xs) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	} else {
		s.Mean = xs[0]
	}
	return s
}

func countByImage(annotations []coco.Annotation) map[string]int {
	counts := make(map[string]int)
	for _, a := range annotations {
		counts[a.ImageID.String()]++
	}
	return counts
}
