package yolomerge

// The conversion routine shared by the bounding box and polygon converters.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Splits are the canonical dataset split names, in the order in which they are searched.
var Splits = []string{"train", "valid", "test"}

// Subdirectories of a YOLO dataset split.
const (
	ImagesDir = "images"
	LabelsDir = "labels"
)

// ConversionStats summarises a single conversion run.
type ConversionStats struct {
	Images  int // Images copied to the output.
	Labels  int // Label files written and kept.
	Skipped int // Images skipped because their label file already existed.
	Missing int // Images whose source file could not be found.
	Empty   int // Images without any valid label line.
}

// Add accumulates s2 into s.
func (s *ConversionStats) Add(s2 ConversionStats) {
	s.Images += s2.Images
	s.Labels += s2.Labels
	s.Skipped += s2.Skipped
	s.Missing += s2.Missing
	s.Empty += s2.Empty
}

// Converter converts an annotation index into YOLO label files and copies the annotated images.
//
// sourceDir is the dataset root containing the split folders, outDir must contain the images and
// labels subdirectories. All output file names are prefixed with prefix.
type Converter interface {
	Convert(index *COCOIndex, sourceDir, outDir, prefix string) (ConversionStats, error)
}

// emitFunc returns the label lines for the annotations of img. No lines means the image has no
// valid label content.
type emitFunc func(img COCOImage, annotations []COCOAnnotation) []string

// LabelConverter implements Converter on top of a per image label line emitter.
type LabelConverter struct {
	emit emitFunc
	log  zerolog.Logger
}

// Convert implements Converter.
//
// An image is skipped when its label file already exists in outDir. Label files are removed again
// when the source image cannot be found, so that every label in outDir has its image.
func (c *LabelConverter) Convert(index *COCOIndex, sourceDir, outDir, prefix string) (
		ConversionStats, error) {

	var stats ConversionStats
	byImage := index.AnnotationsByImage()

	for _, img := range index.Images {
		annotations := byImage[img.ID]
		if len(annotations) == 0 {
			continue
		}

		baseName := filepath.Base(img.FileName)
		labelPath := filepath.Join(outDir, LabelsDir, prefix+"_"+stem(baseName)+".txt")
		if fileExists(labelPath) {
			stats.Skipped++
			continue
		}

		// Fall back to the actual image size when the index does not provide it.
		if img.Width <= 0 || img.Height <= 0 {
			src, found := findSourceImage(sourceDir, img.FileName)
			if !found {
				c.log.Warn().Str("image", img.FileName).Msg("Image file not found")
				stats.Missing++
				continue
			}
			w, h, err := imageSize(src)
			if err != nil || w <= 0 || h <= 0 {
				c.log.Warn().Err(err).Str("image", src).Msg("Cannot determine the image size, skipping")
				stats.Missing++
				continue
			}
			img.Width, img.Height = w, h
		}

		lines := c.emit(img, annotations)
		if len(lines) == 0 {
			c.log.Debug().Str("image", img.FileName).Msg("No valid annotations, skipping")
			stats.Empty++
			continue
		}

		if err := writeLabelFile(labelPath, lines); err != nil {
			return stats, err
		}

		// Copy the image unless an earlier run already did.
		imagePath := filepath.Join(outDir, ImagesDir, prefix+"_"+baseName)
		if fileExists(imagePath) {
			stats.Labels++
			continue
		}
		src, found := findSourceImage(sourceDir, img.FileName)
		if !found {
			c.log.Warn().Str("image", img.FileName).Str("dataset", sourceDir).
					Msg("Image file not found")
			if err := os.Remove(labelPath); err != nil {
				return stats, fmt.Errorf("failed to remove orphaned label %q: %w", labelPath, err)
			}
			stats.Missing++
			continue
		}
		if err := copyFile(src, imagePath); err != nil {
			return stats, fmt.Errorf("failed to copy image %q: %w", src, err)
		}
		stats.Images++
		stats.Labels++
	}

	return stats, nil
}

// findSourceImage looks for fileName in the split folders of sourceDir, in the order of Splits.
// Images directly in the split folder take precedence over images in an images subfolder.
func findSourceImage(sourceDir, fileName string) (string, bool) {
	for _, split := range Splits {
		for _, p := range []string{
			filepath.Join(sourceDir, split, fileName),
			filepath.Join(sourceDir, split, ImagesDir, fileName),
		} {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

// writeLabelFile writes one label line per entry of lines to path.
func writeLabelFile(path string, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %w", path, err)
	}
	return nil
}
