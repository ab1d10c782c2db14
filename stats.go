package yolomerge

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// SplitCounts is the number of images and label files in one split of a merged dataset.
type SplitCounts struct {
	Split  string
	Images int
	Labels int
}

// MergeStats holds the counts for every split, in the order of Splits.
type MergeStats []SplitCounts

// Total returns the number of images over all splits.
func (s MergeStats) Total() int {
	var n int
	for _, c := range s {
		n += c.Images
	}
	return n
}

// CountSplits lists the split directories of the merged dataset at outDir.
func CountSplits(outDir string) (MergeStats, error) {
	stats := make(MergeStats, 0, len(Splits))
	for _, split := range Splits {
		images, err := filesByExtInDir(filepath.Join(outDir, split, ImagesDir), "")
		if err != nil {
			return nil, err
		}
		labels, err := filesByExtInDir(filepath.Join(outDir, split, LabelsDir), "")
		if err != nil {
			return nil, err
		}
		stats = append(stats, SplitCounts{Split: split, Images: len(images), Labels: len(labels)})
	}
	return stats, nil
}

// Log writes one summary line per split.
func (s MergeStats) Log(log zerolog.Logger) {
	for _, c := range s {
		log.Info().Int("images", c.Images).Int("labels", c.Labels).
				Msgf("%s set", strings.ToUpper(c.Split[:1])+c.Split[1:])
	}
}
