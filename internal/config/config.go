// Package config loads the augmentation pipeline configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, and environment variables prefixed with IMAGE_AUGMENT_.
// A double underscore in a variable name selects a nested key, so
// IMAGE_AUGMENT_FIELD_MAP__INCLUDE_KEYPOINTS=true sets
// field_map.include_keypoints.
//
//	seed: 42
//	workers: 4
//	replay: false
//	field_map:
//	  include_keypoints: true
//	steps:
//	  - op: random_horizontal_flip
//	    params:
//	      keypoint_flip_permutation: [1, 0, 2]
//	  - op: random_adjust_brightness
package config

import (
	"runtime"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ironsheep/image-augment/internal/preprocessor"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "IMAGE_AUGMENT_"

// Config is a complete pipeline description.
type Config struct {
	// Seed makes runs reproducible. Zero seeds from the system entropy.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
	// Workers bounds how many inputs are augmented at once.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Replay shares one draw cache across every input of a run, so all
	// inputs receive identical augmentations. Replay runs are sequential.
	Replay   bool   `mapstructure:"replay" yaml:"replay"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// Preview writes a copy of each output image with its boxes drawn.
	Preview  bool                         `mapstructure:"preview" yaml:"preview"`
	FieldMap preprocessor.FieldMapOptions `mapstructure:"field_map" yaml:"field_map"`
	Steps    []preprocessor.Step          `mapstructure:"steps" yaml:"steps"`
}

func defaults() map[string]any {
	return map[string]any{
		"workers":                         runtime.NumCPU(),
		"log_level":                       "info",
		"field_map.include_label_weights": true,
	}
}

// Load reads the configuration file at path, which may be empty, and applies
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config %s", path)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var c Config
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the run settings and resolves every step against the field
// map, so that a bad pipeline fails before any image is read.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return preprocessor.ValidateSteps(c.Steps, c.FieldMapping())
}

// FieldMapping builds the field map the config selects.
func (c *Config) FieldMapping() *preprocessor.FieldMap {
	return preprocessor.DefaultFieldMap(c.FieldMap)
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yamlv3.Marshal(c)
	return out, errors.Wrap(err, "failed to encode config")
}
