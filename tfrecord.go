package yolomerge

// TFRecord export of merged dataset splits for the TensorFlow object detection API.

import (
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/rs/zerolog"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
)

// TFLabelMapFile is the file name of the label map written next to the TFRecord files.
const TFLabelMapFile = "label_map.pbtxt"

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// yoloObject is a label line converted back to normalised corner coordinates.
type yoloObject struct {
	classID                int
	xmin, ymin, xmax, ymax float64
}

// parseLabelLine parses a YOLO label line. Bounding box lines have exactly five fields; polygon
// lines are reduced to the extent of their points.
func parseLabelLine(line string, polygon bool) (yoloObject, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || (!polygon && len(fields) != 5) || (polygon && len(fields)%2 == 0) {
		return yoloObject{}, fmt.Errorf("unexpected number of values in %q", line)
	}

	var obj yoloObject
	var err error
	if obj.classID, err = strconv.Atoi(fields[0]); err != nil {
		return obj, fmt.Errorf("invalid class in %q: %w", line, err)
	}
	values := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		if values[i], err = strconv.ParseFloat(f, 64); err != nil {
			return obj, fmt.Errorf("unexpected values in %q: %w", line, err)
		}
	}

	if !polygon {
		cx, cy, w, h := values[0], values[1], values[2], values[3]
		obj.xmin, obj.ymin, obj.xmax, obj.ymax = cx-w/2, cy-h/2, cx+w/2, cy+h/2
		return obj, nil
	}

	obj.xmin, obj.ymin = math.Inf(1), math.Inf(1)
	obj.xmax, obj.ymax = math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(values); i += 2 {
		obj.xmin = math.Min(obj.xmin, values[i])
		obj.xmax = math.Max(obj.xmax, values[i])
		obj.ymin = math.Min(obj.ymin, values[i+1])
		obj.ymax = math.Max(obj.ymax, values[i+1])
	}
	return obj, nil
}

// className returns the name for classID, with a placeholder for unnamed classes.
func className(names []string, classID int) string {
	if classID >= 0 && classID < len(names) && names[classID] != "" {
		return names[classID]
	}
	return "class" + strconv.Itoa(classID)
}

// toTFFeatureMap builds the feature map for the image at imagePath and its label lines.
func toTFFeatureMap(imagePath string, lines []string, names []string, polygon bool) (
		TFFeatureMap, error) {

	// Get the image width and height.
	img, format, err := decodeImageConfig(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode the image metadata: %w", err)
	}

	// Read the image data.
	imgData, err := ioutil.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read the image: %w", err)
	}

	f := make(TFFeatureMap, 16)
	f["image/height"] = img.Height
	f["image/width"] = img.Width
	f["image/filename"] = filepath.Base(imagePath)
	f["image/source_id"] = filepath.Base(imagePath)
	f["image/encoded"] = imgData
	f["image/format"] = format

	var xmins, ymins, xmaxs, ymaxs []float32
	var classes []string
	var classIDs []int64
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		obj, err := parseLabelLine(line, polygon)
		if err != nil {
			return nil, err
		}
		xmins = append(xmins, float32(obj.xmin))
		ymins = append(ymins, float32(obj.ymin))
		xmaxs = append(xmaxs, float32(obj.xmax))
		ymaxs = append(ymaxs, float32(obj.ymax))
		classes = append(classes, className(names, obj.classID))
		// Label map IDs start at 1.
		classIDs = append(classIDs, int64(obj.classID)+1)
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return f, nil
}

// WriteTFRecord converts the images and labels of the merged split at splitDir to tf.Examples
// and writes them to one or more TFRecord files at recordFilePath, with a -xxxxx-of-xxxxx suffix
// added when numShards > 1. Images without a label file are skipped.
func WriteTFRecord(splitDir, recordFilePath string, names []string, polygon bool, numShards int,
		log zerolog.Logger) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}

	images, err := filesByExtInDir(filepath.Join(splitDir, ImagesDir), "")
	if err != nil {
		return err
	}
	if len(images) == 0 {
		log.Warn().Str("split", splitDir).Msg("No images to export")
		return nil
	}

	var shardFile *os.File
	defer func() {
		if shardFile != nil {
			closeWithErrCheck(shardFile, &err)
		}
	}()
	shardSize := int(math.Ceil(float64(len(images)) / float64(numShards)))
	shardIdx := -1
	written := 0

	for i, imagePath := range images {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++
			if shardFile != nil {
				if err := shardFile.Close(); err != nil {
					shardFile = nil
					return err
				}
				shardFile = nil
			}

			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmt.Sprintf("-%05d-of-%05d", shardIdx, numShards)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %w", shardPath, err)
			}
			shardFile = f
		}

		labelPath := filepath.Join(splitDir, LabelsDir, stem(imagePath)+".txt")
		if !fileExists(labelPath) {
			log.Warn().Str("image", imagePath).Msg("No label file, skipping")
			continue
		}
		lines, err := readLines(labelPath)
		if err != nil {
			return err
		}

		features, err := toTFFeatureMap(imagePath, lines, names, polygon)
		if err != nil {
			log.Warn().Err(err).Str("image", imagePath).Msg("Failed to convert")
			continue
		}

		if err := writeTFRecordExample(shardFile, example.New(features)); err != nil {
			return fmt.Errorf("failed to write example for %q: %w", imagePath, err)
		}
		written++
	}

	log.Info().Int("examples", written).Str("path", recordFilePath).Msg("TFRecord written")
	return nil
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// WriteTFLabelMap writes the label map for names in prototxt format to path. IDs are the class
// IDs plus one, matching the class/label feature of the exported examples.
func WriteTFLabelMap(path string, names []string) error {
	var b strings.Builder
	for i := range names {
		fmt.Fprintf(&b, "item {\n  name: %q\n  id: %d\n}\n", className(names, i), i+1)
	}
	if err := ioutil.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write the label map %q: %w", path, err)
	}
	return nil
}
