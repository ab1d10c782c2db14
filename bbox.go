package yolomerge

// Bounding box conversion.

import (
	"github.com/rs/zerolog"
)

// NewBboxConverter returns a converter that writes one center-form, normalised bounding box line
// per annotation. The COCO category ID is used as the class ID.
func NewBboxConverter(logger zerolog.Logger) *LabelConverter {
	c := &LabelConverter{log: logger}
	c.emit = func(img COCOImage, annotations []COCOAnnotation) []string {
		return bboxLines(img, annotations, c.log)
	}
	return c
}

// bboxLines converts the [x, y, w, h] boxes of annotations to YOLO label lines.
func bboxLines(img COCOImage, annotations []COCOAnnotation, log zerolog.Logger) []string {
	w := float64(img.Width)
	h := float64(img.Height)

	lines := make([]string, 0, len(annotations))
	for _, a := range annotations {
		if len(a.BBox) < 4 {
			log.Debug().Str("image", img.FileName).Int64("annotation", a.ID).
					Msg("Skipping annotation without bounding box")
			continue
		}
		x, y, bw, bh := a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]
		lines = append(lines, formatBboxLine(a.CategoryID, (x+bw/2)/w, (y+bh/2)/h, bw/w, bh/h))
	}

	return lines
}
