package yolomerge

// Merging of several datasets into common train/valid/test splits.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Merger converts source datasets and distributes their images over the splits of a merged
// dataset at OutDir.
//
// Sources are processed one at a time. Each source is converted into its own staging directory,
// which is shuffled, partitioned and moved into the merged splits before the next source starts.
type Merger struct {
	outDir    string
	converter Converter
	ratios    SplitRatios
	shuffle   ShuffleFunc
	log       zerolog.Logger

	categories map[int]string // Category names seen across all sources, first name wins.
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithRatios sets the split ratios.
func WithRatios(r SplitRatios) MergerOption {
	return func(m *Merger) { m.ratios = r }
}

// WithShuffle sets the permutation applied to the staged images before partitioning.
func WithShuffle(fn ShuffleFunc) MergerOption {
	return func(m *Merger) { m.shuffle = fn }
}

// WithSeed makes the partitioning reproducible.
func WithSeed(seed int64) MergerOption {
	return func(m *Merger) { m.shuffle = SeededShuffle(seed) }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) MergerOption {
	return func(m *Merger) { m.log = l }
}

// NewMerger returns a Merger writing to outDir. By default, images are split according to
// DefaultSplitRatios after a shuffle seeded from the current time.
func NewMerger(outDir string, converter Converter, opts ...MergerOption) *Merger {
	m := &Merger{
		outDir:     filepath.Clean(outDir),
		converter:  converter,
		ratios:     DefaultSplitRatios,
		shuffle:    SeededShuffle(time.Now().UnixNano()),
		log:        zerolog.Nop(),
		categories: make(map[int]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OutDir returns the root of the merged dataset.
func (m *Merger) OutDir() string {
	return m.outDir
}

// Categories returns the category names found in the annotation indices merged so far.
func (m *Merger) Categories() map[int]string {
	c := make(map[int]string, len(m.categories))
	for k, v := range m.categories {
		c[k] = v
	}
	return c
}

// CreateOutputDirs creates the images and labels directories of every split. Existing
// directories and their contents are kept.
func (m *Merger) CreateOutputDirs() error {
	for _, split := range Splits {
		if err := ensureDirs(
			filepath.Join(m.outDir, split, ImagesDir),
			filepath.Join(m.outDir, split, LabelsDir),
		); err != nil {
			return err
		}
	}
	return nil
}

// Merge creates the output directories, merges every source in order and returns the final
// per-split counts.
func (m *Merger) Merge(sourceDirs []string) (MergeStats, error) {
	if err := m.ratios.Validate(); err != nil {
		return nil, err
	}
	if err := m.CreateOutputDirs(); err != nil {
		return nil, err
	}

	for _, dir := range sourceDirs {
		if _, err := m.MergeSource(dir); err != nil {
			return nil, fmt.Errorf("failed to merge %q: %w", dir, err)
		}
	}

	return CountSplits(m.outDir)
}

// MergeSource converts every split of the dataset at sourceDir into a fresh staging directory and
// moves the results into the merged splits. The output directories must exist.
//
// Missing split folders or annotation files are logged and skipped. Returns the number of images
// distributed to train, valid and test.
func (m *Merger) MergeSource(sourceDir string) ([3]int, error) {
	var committed [3]int
	sourceDir = filepath.Clean(sourceDir)
	name := filepath.Base(sourceDir)
	log := m.log.With().Str("dataset", name).Logger()
	log.Info().Msg("Processing dataset")

	stagingDir := filepath.Join(m.outDir, ".staging-"+name+"-"+uuid.NewString())
	stagingImages := filepath.Join(stagingDir, ImagesDir)
	stagingLabels := filepath.Join(stagingDir, LabelsDir)
	if err := ensureDirs(stagingImages, stagingLabels); err != nil {
		return committed, err
	}

	// Convert all splits into the staging directory.
	var stats ConversionStats
	for _, split := range Splits {
		splitDir := filepath.Join(sourceDir, split)
		if info, err := os.Stat(splitDir); err != nil || !info.IsDir() {
			log.Warn().Str("split", split).Msg("No split folder found")
			continue
		}

		indexPath := filepath.Join(splitDir, COCOAnnotationFile)
		if !fileExists(indexPath) {
			log.Warn().Str("split", split).Str("path", splitDir).Msg("No COCO annotation file found")
			continue
		}

		log.Info().Str("split", split).Msg("Converting split")
		index, err := FromCOCO(indexPath)
		if err != nil {
			return committed, err
		}
		for id, n := range index.CategoryNames() {
			if _, ok := m.categories[id]; !ok {
				m.categories[id] = n
			}
		}

		s, err := m.converter.Convert(index, sourceDir, stagingDir, name)
		if err != nil {
			return committed, err
		}
		stats.Add(s)
	}
	log.Info().Int("images", stats.Images).Int("labels", stats.Labels).
			Int("missing", stats.Missing).Int("empty", stats.Empty).Msg("Conversion done")

	images, err := filesByExtInDir(stagingImages, "")
	if err != nil {
		return committed, err
	}
	if len(images) == 0 {
		log.Warn().Msg("No valid images found")
		return committed, os.RemoveAll(stagingDir)
	}

	// Shuffle, partition and commit.
	m.shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })
	for i, s := range Partition(len(images), m.ratios) {
		split := Splits[i]
		for _, imagePath := range images[s.start:s.end] {
			base := filepath.Base(imagePath)
			if err := moveFile(imagePath, filepath.Join(m.outDir, split, ImagesDir, base)); err != nil {
				return committed, err
			}

			labelName := stem(base) + ".txt"
			labelPath := filepath.Join(stagingLabels, labelName)
			if fileExists(labelPath) {
				if err := moveFile(labelPath, filepath.Join(m.outDir, split, LabelsDir, labelName)); err != nil {
					return committed, err
				}
			}
		}
		committed[i] = s.end - s.start
	}
	log.Info().Int("train", committed[0]).Int("valid", committed[1]).Int("test", committed[2]).
			Msg("Dataset merged")

	if err := os.RemoveAll(stagingDir); err != nil {
		return committed, fmt.Errorf("failed to remove staging directory %q: %w", stagingDir, err)
	}
	return committed, nil
}
