package coco

// Dataset is the typed view of a document: images, annotations and categories
// in their original order.
type Dataset struct {
	Images      []Image
	Annotations []Annotation
	Categories  []Category
}

// ImageIndex maps canonical image ids to images. When ids repeat, the first
// declaration wins.
func ImageIndex(images []Image) map[string]Image {
	index := make(map[string]Image, len(images))
	for _, img := range images {
		if _, ok := index[img.ID.String()]; !ok {
			index[img.ID.String()] = img
		}
	}
	return index
}

// ClassIndex maps canonical category ids to their zero-based declaration
// position. The numeric value of an id never matters.
func ClassIndex(categories []Category) map[string]int {
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		if _, ok := index[c.ID.String()]; !ok {
			index[c.ID.String()] = i
		}
	}
	return index
}

// CategoryNames returns category names in declaration order.
func (ds Dataset) CategoryNames() []string {
	names := make([]string, len(ds.Categories))
	for i, c := range ds.Categories {
		names[i] = c.Name
	}
	return names
}

// ImageIDs returns image ids in declaration order.
func (ds Dataset) ImageIDs() []ID {
	ids := make([]ID, len(ds.Images))
	for i, img := range ds.Images {
		ids[i] = img.ID
	}
	return ids
}
