package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/preprocessor"
)

const pipeline = `
seed: 42
workers: 2
field_map:
  include_keypoints: true
steps:
  - op: random_horizontal_flip
    params:
      keypoint_flip_permutation: [1, 0]
  - op: random_adjust_brightness
    params:
      max_delta: 0.1
  - op: resize_image
    params:
      new_height: 32
      new_width: 48
      method: nearest
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	c, err := Load(writeConfig(t, pipeline))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), c.Seed)
	assert.Equal(t, 2, c.Workers)
	assert.Equal(t, "info", c.LogLevel)
	assert.True(t, c.FieldMap.IncludeKeypoints)
	assert.True(t, c.FieldMap.IncludeLabelWeights, "defaults survive a partial field_map")
	require.Len(t, c.Steps, 3)
	assert.Equal(t, preprocessor.OpRandomAdjustBrightness, c.Steps[1].Op)

	p, err := preprocessor.ResolveParams(c.Steps[1])
	require.NoError(t, err)
	assert.Equal(t, preprocessor.BrightnessParams{MaxDelta: 0.1}, p)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Workers, 1)
	assert.Empty(t, c.Steps)
	assert.Equal(t, preprocessor.DefaultFieldMapOptions(), c.FieldMap)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("IMAGE_AUGMENT_WORKERS", "7")
	t.Setenv("IMAGE_AUGMENT_LOG_LEVEL", "debug")
	t.Setenv("IMAGE_AUGMENT_REPLAY", "true")
	t.Setenv("IMAGE_AUGMENT_FIELD_MAP__INCLUDE_INSTANCE_MASKS", "true")

	c, err := Load(writeConfig(t, pipeline))
	require.NoError(t, err)
	assert.Equal(t, 7, c.Workers)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.Replay)
	assert.True(t, c.FieldMap.IncludeInstanceMasks)
	assert.True(t, c.FieldMap.IncludeKeypoints)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown operation", "steps:\n  - op: random_blur\n"},
		{"bad parameter", "steps:\n  - op: random_adjust_hue\n    params:\n      delta: 1\n"},
		{"ragged presets", "steps:\n  - op: ssd_random_crop\n    params:\n      min_object_covered: [0.5, 0.7]\n"},
		{"no workers", "workers: 0\n"},
		{"bad log level", "log_level: loud\n"},
		{"malformed yaml", "steps: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c, err := Load(writeConfig(t, pipeline))
	require.NoError(t, err)

	out, err := c.Marshal()
	require.NoError(t, err)

	again, err := Load(writeConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, c.Seed, again.Seed)
	assert.Equal(t, c.FieldMap, again.FieldMap)
	assert.Len(t, again.Steps, len(c.Steps))
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("warn")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger("chatty")
	assert.Error(t, err)
}
