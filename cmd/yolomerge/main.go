// Merges COCO datasets exported by an annotation hosting service into a single YOLO dataset with
// train, valid and test splits, converting either bounding boxes or segmentation polygons.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorable/yolomerge"
)

var (
	cfg    yolomerge.Config // The effective configuration.
	logger zerolog.Logger
)

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func init() {
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintf(os.Stderr, "  %s [flags] <dataset dir> [<dataset dir>...]\n",
			filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  Each dataset dir contains train, valid and test folders with a "+
				yolomerge.COCOAnnotationFile+" file.")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	printUsageAndExit := func(msg ...interface{}) {
		_, _ = fmt.Fprintln(os.Stderr, fmt.Sprint(msg...))
		flag.Usage()
		os.Exit(1)
	}

	configPath := flag.String("config", "", "The YAML config file `path`")
	mode := flag.String("mode", "", "The conversion `mode` {bbox, polygon}")
	outDir := flag.String("out", "", "The `path` of the merged dataset (default merged_bbox or"+
			" merged_segmentation, depending on -mode)")
	splits := flag.String("split", "", "The comma-separated train,valid,test `ratios`"+
			" (default 0.8,0.1,0.1)")
	seed := flag.Int64("seed", 0, "The shuffle `seed`; zero uses the current time")
	tolerance := flag.Float64("rect-tolerance", 0,
		"The max. |cosine| of all angles of a 4-point polygon to drop it as a rectangle"+
				" (default 0.001)")
	names := flag.String("names", "", "Comma-separated class names for data.yaml (default: COCO"+
			" category names; polygon mode: a single class)")
	noDescriptor := flag.Bool("no-descriptor", false, "Do not write "+yolomerge.DescriptorFile)
	tfRecordDir := flag.String("tfrecord-out", "",
		"The output directory `path` for an optional TFRecord export of each split")
	numShards := flag.Int("num-shards", 0, "The number of TFRecord shard files per split")
	logLevel := flag.String("log-level", "", "The log `level` {debug, info, warn, error}")

	flag.Parse()

	// Start from the config file, if any, and apply the flags on top.
	cfg = yolomerge.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = yolomerge.LoadConfig(*configPath); err != nil {
			printUsageAndExit("Failed to load the config: ", err)
		}
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if flag.NArg() > 0 {
		cfg.Sources = flag.Args()
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if cfg.OutDir == "" {
		cfg.OutDir = yolomerge.DefaultOutDir(cfg.Mode)
	}
	if *splits != "" {
		var r [3]float64
		values := splitList(*splits)
		if len(values) != 3 {
			printUsageAndExit("Argument -split needs exactly three values")
		}
		for i, v := range values {
			if _, err := fmt.Sscanf(v, "%g", &r[i]); err != nil {
				printUsageAndExit("Invalid value in -split: ", v)
			}
		}
		cfg.Split = yolomerge.SplitRatios{Train: r[0], Valid: r[1], Test: r[2]}
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *tolerance != 0 {
		cfg.RectangleTolerance = *tolerance
	}
	if *names != "" {
		cfg.Names = splitList(*names)
	}
	if *noDescriptor {
		cfg.Descriptor = false
	}
	if *tfRecordDir != "" {
		cfg.TFRecordDir = *tfRecordDir
	}
	if *numShards != 0 {
		cfg.NumShards = *numShards
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Clean path arguments.
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	for i, s := range cfg.Sources {
		cfg.Sources[i] = filepath.Clean(s)
	}

	if err := cfg.Validate(); err != nil {
		printUsageAndExit(err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		printUsageAndExit("Invalid log level: ", cfg.LogLevel)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
}

func main() {
	var converter yolomerge.Converter
	if cfg.Mode == yolomerge.ModePolygon {
		converter = yolomerge.NewPolygonConverter(logger, cfg.RectangleTolerance)
	} else {
		converter = yolomerge.NewBboxConverter(logger)
	}

	opts := []yolomerge.MergerOption{
		yolomerge.WithRatios(cfg.Split),
		yolomerge.WithLogger(logger),
	}
	if cfg.Seed != 0 {
		opts = append(opts, yolomerge.WithSeed(cfg.Seed))
	}
	merger := yolomerge.NewMerger(cfg.OutDir, converter, opts...)

	stats, err := merger.Merge(cfg.Sources)
	if err != nil {
		logger.Fatal().Err(err).Msg("Merging failed")
	}

	// Class names for the downstream consumers.
	names := cfg.Names
	if len(names) == 0 {
		if cfg.Mode == yolomerge.ModePolygon {
			names = []string{"object"}
		} else {
			names = yolomerge.ClassNames(merger.Categories())
		}
	}

	if cfg.Descriptor {
		path := filepath.Join(cfg.OutDir, yolomerge.DescriptorFile)
		if err := yolomerge.WriteDescriptor(path, yolomerge.NewDescriptor(cfg.OutDir, names)); err != nil {
			logger.Fatal().Err(err).Msg("Failed to write the dataset descriptor")
		}
		logger.Info().Str("path", path).Msg("Dataset descriptor written")
	}

	if cfg.TFRecordDir != "" {
		if err := os.MkdirAll(cfg.TFRecordDir, 0755); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create the TFRecord directory")
		}
		for _, split := range yolomerge.Splits {
			recordPath := filepath.Join(cfg.TFRecordDir, split+".record")
			err := yolomerge.WriteTFRecord(filepath.Join(cfg.OutDir, split), recordPath, names,
				cfg.Mode == yolomerge.ModePolygon, cfg.NumShards, logger)
			if err != nil {
				logger.Fatal().Err(err).Str("split", split).Msg("TFRecord export failed")
			}
		}
		labelMapPath := filepath.Join(cfg.TFRecordDir, yolomerge.TFLabelMapFile)
		if err := yolomerge.WriteTFLabelMap(labelMapPath, names); err != nil {
			logger.Fatal().Err(err).Msg("Failed to write the label map")
		}
	}

	logger.Info().Msg("Dataset merging completed")
	stats.Log(logger)
	logger.Info().Int("images", stats.Total()).Msg("Total number of merged images")
}
