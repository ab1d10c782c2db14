package yolomerge

import (
	"image"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Registers the webp decoder.
)

// imageSize decodes the image at path and returns its width and height after applying the EXIF
// orientation, which is how annotation tools report the size.
func imageSize(path string) (width, height int, err error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}
