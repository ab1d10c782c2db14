package yolomerge

// Polygon (segmentation) conversion.

import (
	"math"

	"github.com/rs/zerolog"
)

// DefaultRectangleTolerance is the max. absolute cosine of each interior angle for a 4-point
// polygon to be classified as a rectangle.
const DefaultRectangleTolerance = 0.001

// polygonClassID is the class written for every polygon; segmentation output is single class.
const polygonClassID = 0

type point struct {
	x, y float64
}

// NewPolygonConverter returns a converter that writes one normalised polygon line per annotation.
//
// Annotations without a polygon, or with an odd number of coordinates, are skipped. Polygons with
// four points whose interior angles are all right angles within rectTolerance are dropped. A
// non-positive rectTolerance selects DefaultRectangleTolerance.
func NewPolygonConverter(logger zerolog.Logger, rectTolerance float64) *LabelConverter {
	if rectTolerance <= 0 {
		rectTolerance = DefaultRectangleTolerance
	}

	c := &LabelConverter{log: logger}
	c.emit = func(img COCOImage, annotations []COCOAnnotation) []string {
		return polygonLines(img, annotations, rectTolerance, c.log)
	}
	return c
}

func polygonLines(img COCOImage, annotations []COCOAnnotation, rectTolerance float64,
		log zerolog.Logger) []string {

	lines := make([]string, 0, len(annotations))
	for _, a := range annotations {
		coords := a.Segmentation.First()
		if len(coords) == 0 || len(coords)%2 != 0 {
			continue
		}

		points := normalizePolygon(coords, float64(img.Width), float64(img.Height))
		if len(points) == 4 {
			if cosines, ok := rectangleCosines(points, rectTolerance); ok {
				log.Debug().Str("image", img.FileName).Floats64("cosines", cosines[:]).
						Msg("Skipping rectangle-like shape")
				continue
			}
		}

		lines = append(lines, formatPolygonLine(polygonClassID, points))
	}

	return lines
}

// normalizePolygon converts a flat x1,y1,...,xn,yn list to points normalised by width and height.
// A closing point that repeats the first point is dropped.
func normalizePolygon(coords []float64, width, height float64) []point {
	n := len(coords)
	if n >= 4 && coords[0] == coords[n-2] && coords[1] == coords[n-1] {
		coords = coords[:n-2]
	}

	points := make([]point, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		points = append(points, point{coords[i] / width, coords[i+1] / height})
	}
	return points
}

// rectangleCosines computes, for each vertex of the 4-point polygon, the absolute cosine of the
// angle between the edge arriving at it and the edge leaving it. The polygon is a rectangle when
// all four values are below tolerance. Polygons with a zero-length edge are never rectangles.
func rectangleCosines(points []point, tolerance float64) (cosines [4]float64, isRect bool) {
	isRect = true
	for i := 0; i < 4; i++ {
		p1 := points[i]
		p2 := points[(i+1)%4]
		p3 := points[(i+2)%4]

		v1 := point{p2.x - p1.x, p2.y - p1.y}
		v2 := point{p3.x - p2.x, p3.y - p2.y}
		norm := math.Hypot(v1.x, v1.y) * math.Hypot(v2.x, v2.y)
		if norm == 0 {
			cosines[i] = math.NaN()
			isRect = false
			continue
		}

		cosines[i] = math.Abs((v1.x*v2.x + v1.y*v2.y) / norm)
		if !(cosines[i] < tolerance) {
			isRect = false
		}
	}
	return cosines, isRect
}
