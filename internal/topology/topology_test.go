package topology_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/internal/topology"
	"github.com/oatfabric/shmdf/pkg/node"
)

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSinkFrameDescriptor(t *testing.T) {
	path := writeConfig(t, `
sink:
  address: camera-0
  publish_hz: 60
  descriptor:
    frame:
      rows: 480
      cols: 640
      pixel_format: bgr
      elem_size: 3
health_addr: ":8080"
`)

	cfg, err := topology.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Sink)
	require.Equal(t, "camera-0", cfg.Sink.Address)
	require.Equal(t, ":8080", cfg.HealthAddr)

	desc, err := cfg.Sink.Descriptor.Descriptor()
	require.NoError(t, err)
	require.Equal(t, node.FrameDescriptor(480, 640, node.PixelFormatBGR, 3), desc)

	require.Equal(t, time.Second/60, cfg.Sink.Interval())
}

func TestLoadSourcesList(t *testing.T) {
	path := writeConfig(t, `
sources:
  - camera-0
  - camera-1
`)

	cfg, err := topology.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"camera-0", "camera-1"}, cfg.Sources)
}

func TestSinkConfigIntervalDefaultsTo30Hz(t *testing.T) {
	var s topology.SinkConfig
	require.Equal(t, time.Second/30, s.Interval())
}

func TestDescriptorConfigRejectsNeitherFrameNorRecord(t *testing.T) {
	var d topology.DescriptorConfig
	_, err := d.Descriptor()
	require.Error(t, err)
}

func TestDescriptorConfigRecord(t *testing.T) {
	d := topology.DescriptorConfig{Record: &topology.RecordConfig{Size: 16}}
	desc, err := d.Descriptor()
	require.NoError(t, err)
	require.Equal(t, node.RecordDescriptor(16), desc)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := topology.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
