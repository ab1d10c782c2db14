package yolomerge

// YOLO dataset descriptor (data.yaml).

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DescriptorFile is the file name of the dataset descriptor in the merged dataset root.
const DescriptorFile = "data.yaml"

// Descriptor lists the split image directories and class names of a merged dataset, in the layout
// expected by YOLO trainers. Split paths are relative to Path.
type Descriptor struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// NewDescriptor returns the descriptor for the merged dataset at outDir.
func NewDescriptor(outDir string, names []string) Descriptor {
	if abs, err := filepath.Abs(outDir); err == nil {
		outDir = abs
	}
	return Descriptor{
		Path:  outDir,
		Train: filepath.Join(Splits[0], ImagesDir),
		Val:   filepath.Join(Splits[1], ImagesDir),
		Test:  filepath.Join(Splits[2], ImagesDir),
		NC:    len(names),
		Names: names,
	}
}

// ClassNames turns a category ID to name mapping into a dense list indexed by class ID. IDs
// without a name get a "class<ID>" placeholder. Negative IDs are ignored.
func ClassNames(categories map[int]string) []string {
	ids := make([]int, 0, len(categories))
	for id := range categories {
		if id >= 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Ints(ids)

	names := make([]string, ids[len(ids)-1]+1)
	for i := range names {
		if n, ok := categories[i]; ok && n != "" {
			names[i] = n
		} else {
			names[i] = "class" + strconv.Itoa(i)
		}
	}
	return names
}

// WriteDescriptor writes d as YAML to path.
func WriteDescriptor(path string, d Descriptor) error {
	enc, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(path, enc, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %w", path, err)
	}
	return nil
}

// ReadDescriptor reads a descriptor written by WriteDescriptor.
func ReadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	enc, err := ioutil.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := yaml.Unmarshal(enc, &d); err != nil {
		return d, fmt.Errorf("failed to parse descriptor %q: %w", path, err)
	}
	return d, nil
}
