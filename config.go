package yolomerge

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v3"
)

// Conversion modes.
const (
	ModeBbox    = "bbox"
	ModePolygon = "polygon"
)

// Config describes a merge run. It can be loaded from a YAML file and is usually refined by
// command line flags.
type Config struct {
	Mode               string      `yaml:"mode"`                // ModeBbox or ModePolygon.
	Sources            []string    `yaml:"sources"`             // Source dataset directories.
	OutDir             string      `yaml:"out"`                 // The merged dataset root.
	Split              SplitRatios `yaml:"split"`               // Split ratios.
	Seed               int64       `yaml:"seed"`                // Shuffle seed; zero seeds from the clock.
	RectangleTolerance float64     `yaml:"rectangle_tolerance"` // Polygon rectangle filter.
	Names              []string    `yaml:"names"`               // Class names for data.yaml.
	Descriptor         bool        `yaml:"descriptor"`          // Write data.yaml.
	TFRecordDir        string      `yaml:"tfrecord_out"`        // Optional TFRecord export dir.
	NumShards          int         `yaml:"num_shards"`          // TFRecord shards per split.
	LogLevel           string      `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when neither a file nor flags override a value.
func DefaultConfig() Config {
	return Config{
		Mode:               ModeBbox,
		Split:              DefaultSplitRatios,
		RectangleTolerance: DefaultRectangleTolerance,
		Descriptor:         true,
		NumShards:          1,
		LogLevel:           "info",
	}
}

// DefaultOutDir returns the merged dataset directory name for mode.
func DefaultOutDir(mode string) string {
	if mode == ModePolygon {
		return "merged_segmentation"
	}
	return "merged_bbox"
}

// LoadConfig reads the YAML configuration at path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	enc, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(enc, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Mode != ModeBbox && c.Mode != ModePolygon {
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("no source datasets")
	}
	if c.OutDir == "" {
		return fmt.Errorf("missing output directory")
	}
	for _, s := range c.Sources {
		if s == c.OutDir {
			return fmt.Errorf("source and output directories cannot be identical: %q", s)
		}
	}
	if err := c.Split.Validate(); err != nil {
		return err
	}
	if c.RectangleTolerance <= 0 {
		return fmt.Errorf("invalid rectangle tolerance %v", c.RectangleTolerance)
	}
	if c.NumShards < 0 {
		return fmt.Errorf("invalid number of shards %d", c.NumShards)
	}
	return nil
}
