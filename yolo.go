package yolomerge

// YOLO label line formatting.

import (
	"strconv"
	"strings"
)

// formatCoord writes the shortest decimal representation of v, without an exponent.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatBboxLine formats a bounding box label line: class x_center y_center width height.
func formatBboxLine(classID int, xCenter, yCenter, width, height float64) string {
	return strings.Join([]string{
		strconv.Itoa(classID),
		formatCoord(xCenter),
		formatCoord(yCenter),
		formatCoord(width),
		formatCoord(height),
	}, " ")
}

// formatPolygonLine formats a segmentation label line: class x1 y1 ... xn yn.
func formatPolygonLine(classID int, points []point) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(classID))
	for _, p := range points {
		b.WriteByte(' ')
		b.WriteString(formatCoord(p.x))
		b.WriteByte(' ')
		b.WriteString(formatCoord(p.y))
	}
	return b.String()
}
