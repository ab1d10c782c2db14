package yolomerge

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writePNG writes a small solid PNG of the given size to path.
func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// writeIndex writes index as the COCO annotation file of split in datasetDir.
func writeIndex(t *testing.T, datasetDir, split string, index COCOIndex) {
	t.Helper()
	enc, err := json.Marshal(index)
	require.NoError(t, err)
	dir := filepath.Join(datasetDir, split)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, COCOAnnotationFile), enc, 0644))
}

// bboxIndex returns an index with n 100x100 images, each with a single box.
func bboxIndex(n int) COCOIndex {
	var index COCOIndex
	index.Categories = []COCOCategory{{ID: 0, Name: "paper"}, {ID: 1, Name: "sheet"}}
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		index.Images = append(index.Images, COCOImage{
			ID: id, FileName: imageName(i), Width: 100, Height: 100,
		})
		index.Annotations = append(index.Annotations, COCOAnnotation{
			ID: id, ImageID: id, CategoryID: 1, BBox: []float64{10, 20, 30, 40},
		})
	}
	return index
}

func imageName(i int) string {
	return "img" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".png"
}

// newDataset creates a source dataset with the index in the train split and all its images.
func newDataset(t *testing.T, root, name string, index COCOIndex) string {
	t.Helper()
	dir := filepath.Join(root, name)
	writeIndex(t, dir, "train", index)
	for _, img := range index.Images {
		writePNG(t, filepath.Join(dir, "train", img.FileName), 4, 4)
	}
	return dir
}

// newOutDir creates an empty converter output directory.
func newOutDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, ensureDirs(filepath.Join(dir, ImagesDir), filepath.Join(dir, LabelsDir)))
	return dir
}

// stems returns the sorted file name stems in dir.
func stems(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filesByExtInDir(dir, "")
	require.NoError(t, err)
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = stem(f)
	}
	return out
}
