// Package topology loads the small YAML configuration every cmd/
// binary in this repo shares: the addresses it binds or touches, the
// payload descriptor of a bound node, and the debug HTTP port serving
// pkg/health.
package topology

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oatfabric/shmdf/pkg/node"
)

// DescriptorConfig is the YAML shape of a node.Descriptor. Exactly one
// of Frame or Record must be set.
type DescriptorConfig struct {
	Frame  *FrameConfig  `yaml:"frame,omitempty"`
	Record *RecordConfig `yaml:"record,omitempty"`
}

// FrameConfig mirrors node.FrameDescriptor's arguments.
type FrameConfig struct {
	Rows        uint32 `yaml:"rows"`
	Cols        uint32 `yaml:"cols"`
	PixelFormat string `yaml:"pixel_format"`
	ElemSize    uint32 `yaml:"elem_size"`
}

// RecordConfig mirrors node.RecordDescriptor's argument.
type RecordConfig struct {
	Size uint32 `yaml:"size"`
}

// Descriptor converts the YAML config into a node.Descriptor.
func (d DescriptorConfig) Descriptor() (node.Descriptor, error) {
	switch {
	case d.Frame != nil:
		format, err := parsePixelFormat(d.Frame.PixelFormat)
		if err != nil {
			return node.Descriptor{}, err
		}
		return node.FrameDescriptor(d.Frame.Rows, d.Frame.Cols, format, d.Frame.ElemSize), nil
	case d.Record != nil:
		return node.RecordDescriptor(d.Record.Size), nil
	default:
		return node.Descriptor{}, fmt.Errorf("topology: descriptor config has neither frame nor record set")
	}
}

func parsePixelFormat(s string) (node.PixelFormat, error) {
	switch s {
	case "", "gray":
		return node.PixelFormatGray, nil
	case "bgr":
		return node.PixelFormatBGR, nil
	case "bgra":
		return node.PixelFormatBGRA, nil
	default:
		return node.PixelFormatUnknown, fmt.Errorf("topology: unknown pixel_format %q", s)
	}
}

// SinkConfig describes one process's Sink: the address it binds and the
// descriptor it declares.
type SinkConfig struct {
	Address    string           `yaml:"address"`
	Descriptor DescriptorConfig `yaml:"descriptor"`
	PublishHz  float64          `yaml:"publish_hz"`
}

// Interval returns the configured publish period, defaulting to 30Hz
// when PublishHz is unset.
func (s SinkConfig) Interval() time.Duration {
	hz := s.PublishHz
	if hz <= 0 {
		hz = 30
	}
	return time.Duration(float64(time.Second) / hz)
}

// Config is the top-level YAML document loaded by every cmd/ binary in
// this repo. Only the fields a given binary needs are populated; the
// others are left zero.
type Config struct {
	// Sink describes this process's own Sink, if it binds one.
	Sink *SinkConfig `yaml:"sink,omitempty"`
	// Sources lists the addresses this process touches, if any.
	Sources []string `yaml:"sources,omitempty"`
	// HealthAddr is the address the debug HTTP server (pkg/health) listens
	// on, e.g. ":8080". Empty disables the debug server.
	HealthAddr string `yaml:"health_addr,omitempty"`
}

// Load reads and parses a topology config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", path, err)
	}
	return &cfg, nil
}
