package yolomerge

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertNoStaging checks that no staging directory is left in outDir.
func assertNoStaging(t *testing.T, outDir string) {
	t.Helper()
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".staging-"), "staging left: %s", e.Name())
	}
}

func TestMergeSplitsByRatio(t *testing.T) {
	root := t.TempDir()
	src := newDataset(t, root, "ds", bboxIndex(10))
	out := filepath.Join(root, "merged")

	m := NewMerger(out, NewBboxConverter(zerolog.Nop()), WithShuffle(NoShuffle))
	stats, err := m.Merge([]string{src})
	require.NoError(t, err)

	assert.Equal(t, MergeStats{
		{Split: "train", Images: 8, Labels: 8},
		{Split: "valid", Images: 1, Labels: 1},
		{Split: "test", Images: 1, Labels: 1},
	}, stats)
	assert.Equal(t, 10, stats.Total())

	// Without a shuffle the sorted order is kept.
	assert.Equal(t, []string{"ds_imgia"}, stems(t, filepath.Join(out, "valid", ImagesDir)))
	assert.Equal(t, []string{"ds_imgja"}, stems(t, filepath.Join(out, "test", LabelsDir)))
	for _, split := range Splits {
		assert.Equal(t, stems(t, filepath.Join(out, split, ImagesDir)),
			stems(t, filepath.Join(out, split, LabelsDir)))
	}
	assertNoStaging(t, out)

	assert.Equal(t, map[int]string{0: "paper", 1: "sheet"}, m.Categories())
}

func TestMergeIsComplete(t *testing.T) {
	root := t.TempDir()
	a := newDataset(t, root, "a", bboxIndex(23))
	b := newDataset(t, root, "b", bboxIndex(17))
	out := filepath.Join(root, "merged")

	stats, err := NewMerger(out, NewBboxConverter(zerolog.Nop()), WithSeed(42)).Merge([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, 40, stats.Total())

	// Every staged image ends up in exactly one split.
	var all []string
	for _, split := range Splits {
		all = append(all, stems(t, filepath.Join(out, split, ImagesDir))...)
	}
	sort.Strings(all)
	require.Len(t, all, 40)
	for i := 1; i < len(all); i++ {
		assert.NotEqual(t, all[i-1], all[i])
	}
	assert.True(t, strings.HasPrefix(all[0], "a_"))
	assert.True(t, strings.HasPrefix(all[39], "b_"))
	assertNoStaging(t, out)
}

func TestMergeWithSeedIsReproducible(t *testing.T) {
	root := t.TempDir()
	src := newDataset(t, root, "ds", bboxIndex(20))

	var results [][]string
	for _, name := range []string{"m1", "m2"} {
		out := filepath.Join(root, name)
		_, err := NewMerger(out, NewBboxConverter(zerolog.Nop()), WithSeed(3)).Merge([]string{src})
		require.NoError(t, err)
		results = append(results, stems(t, filepath.Join(out, "train", ImagesDir)))
	}
	assert.Equal(t, results[0], results[1])
}

func TestMergeSourceWithoutData(t *testing.T) {
	root := t.TempDir()
	// A split folder without annotation file, and no other splits.
	empty := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(filepath.Join(empty, "train"), 0755))
	out := filepath.Join(root, "merged")

	m := NewMerger(out, NewBboxConverter(zerolog.Nop()))
	require.NoError(t, m.CreateOutputDirs())
	committed, err := m.MergeSource(empty)
	require.NoError(t, err)
	assert.Equal(t, [3]int{}, committed)
	assertNoStaging(t, out)

	// A missing source directory is only a warning as well.
	committed, err = m.MergeSource(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Equal(t, [3]int{}, committed)

	stats, err := CountSplits(out)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total())
}

func TestMergeReusesOutputDirs(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "merged")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "train", ImagesDir), 0755))
	writePNG(t, filepath.Join(out, "train", ImagesDir, "old.png"), 2, 2)
	require.NoError(t, os.MkdirAll(filepath.Join(out, "train", LabelsDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "train", LabelsDir, "old.txt"), []byte("0 0.5 0.5 1 1\n"), 0644))

	src := newDataset(t, root, "ds", bboxIndex(10))
	stats, err := NewMerger(out, NewBboxConverter(zerolog.Nop()), WithShuffle(NoShuffle)).
			Merge([]string{src})
	require.NoError(t, err)
	assert.Equal(t, SplitCounts{Split: "train", Images: 9, Labels: 9}, stats[0])
}

func TestMergeFailsOnBrokenIndex(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "ds")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "train"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "train", COCOAnnotationFile), []byte("[1,"), 0644))

	_, err := NewMerger(filepath.Join(root, "merged"), NewBboxConverter(zerolog.Nop())).
			Merge([]string{src})
	assert.Error(t, err)
}
