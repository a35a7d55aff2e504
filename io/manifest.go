package io

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ManifestName is the file name of the manifest written next to every
	// exported dataset.
	ManifestName = "manifest.yaml"

	GridDtype = "<f4"
	GridOrder = "column-major (first axis fastest): idx = x + y*R + z*R*R"
)

// Manifest documents the out-of-band conventions of an exported dataset:
// raw grid files carry no header, so their shape and element order are
// recorded here.
type Manifest struct {
	Run        string   `yaml:"run,omitempty"`
	Parameter  string   `yaml:"parameter,omitempty"`
	Value      string   `yaml:"value,omitempty"`
	Source     string   `yaml:"source"`
	Resolution int      `yaml:"resolution"`
	Shape      [3]int   `yaml:"shape,flow"`
	Dtype      string   `yaml:"dtype"`
	Order      string   `yaml:"order"`
	Header     bool     `yaml:"header"`
	Domain     Bounds   `yaml:"domain"`
	Fields     []string `yaml:"fields"`
	Timesteps  []string `yaml:"timesteps"`
	Layout     string   `yaml:"layout"`
	Skipped    []string `yaml:"skipped,omitempty"`
}

// Bounds is the physical domain of a dataset.
type Bounds struct {
	Lo [3]float64 `yaml:"lo,flow"`
	Hi [3]float64 `yaml:"hi,flow"`
}

// NewManifest returns a manifest for a res^3 dataset with the fixed dtype
// and order conventions filled in.
func NewManifest(source string, res int) *Manifest {
	return &Manifest{
		Source: source, Resolution: res, Shape: [3]int{res, res, res},
		Dtype: GridDtype, Order: GridOrder, Header: false,
		Layout: "<field>/<timestep>.raw",
	}
}

// WriteManifest writes m to dir/manifest.yaml.
func WriteManifest(dir string, m *Manifest) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, b, 0644); err != nil {
		return &WriteError{path, err}
	}
	return nil
}

// ReadManifest reads dir/manifest.yaml.
func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("could not parse manifest in '%s': %w", dir, err)
	}
	return m, nil
}
