package yolomerge

// COCO annotation index specific functionality.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
)

// COCOAnnotationFile is the name of the annotation index found in each split folder of a
// downloaded dataset.
const COCOAnnotationFile = "_annotations.coco.json"

// COCOImage is a single image entry of a COCO annotation index.
type COCOImage struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// COCOSegmentation holds the polygons of an annotation. Run-length encoded masks are not
// supported and decode to an empty list.
type COCOSegmentation struct {
	Polygons [][]float64
}

// UnmarshalJSON accepts the polygon list form and ignores the RLE object form.
func (s *COCOSegmentation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		s.Polygons = nil
		return nil
	}
	return json.Unmarshal(data, &s.Polygons)
}

// MarshalJSON writes the polygon list form.
func (s COCOSegmentation) MarshalJSON() ([]byte, error) {
	if s.Polygons == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Polygons)
}

// First returns the first polygon as a flat x1,y1,...,xn,yn list, or nil.
func (s COCOSegmentation) First() []float64 {
	if len(s.Polygons) == 0 {
		return nil
	}
	return s.Polygons[0]
}

// COCOAnnotation is a single object annotation. BBox is [x, y, width, height] in absolute pixels
// from the top-left corner.
type COCOAnnotation struct {
	ID           int64            `json:"id"`
	ImageID      int64            `json:"image_id"`
	CategoryID   int              `json:"category_id"`
	BBox         []float64        `json:"bbox"`
	Segmentation COCOSegmentation `json:"segmentation"`
}

// COCOCategory maps a category ID to its name.
type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

// COCOIndex is the annotation index of one dataset split.
type COCOIndex struct {
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

// FromCOCO reads and parses the COCO annotation index at path.
func FromCOCO(path string) (*COCOIndex, error) {
	enc, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var index COCOIndex
	if err := json.Unmarshal(enc, &index); err != nil {
		return nil, fmt.Errorf("failed to parse COCO input from %q: %w", path, err)
	}

	return &index, nil
}

// AnnotationsByImage groups the annotations by image ID, keeping their order in the index.
// Annotations referencing an image that is not in the index are kept in the map but are never
// looked up by the converters.
func (idx *COCOIndex) AnnotationsByImage() map[int64][]COCOAnnotation {
	byImage := make(map[int64][]COCOAnnotation, len(idx.Images))
	for _, a := range idx.Annotations {
		byImage[a.ImageID] = append(byImage[a.ImageID], a)
	}
	return byImage
}

// CategoryNames maps category IDs to names.
func (idx *COCOIndex) CategoryNames() map[int]string {
	names := make(map[int]string, len(idx.Categories))
	for _, c := range idx.Categories {
		names[c.ID] = c.Name
	}
	return names
}
