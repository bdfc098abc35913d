// Package config holds the demix CLI configuration.
//
// Settings live in a single YAML file under os.UserConfigDir()/demix/:
//
//	~/Library/Application Support/demix/demix.yaml   (macOS)
//	~/.config/demix/demix.yaml                       (Linux)
//	%AppData%/demix/demix.yaml                       (Windows)
//
// A missing file yields the defaults; settings are created on first Save.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "demix"

	// fileName is the settings file inside appDir.
	fileName = "demix.yaml"
)

// Config holds the CLI settings.
type Config struct {
	// Dir is the configuration directory the settings were loaded from.
	Dir string `yaml:"-"`

	// ModelDir is where ONNX model files live. Defaults to
	// <config dir>/models.
	ModelDir string `yaml:"model_dir,omitempty"`

	// DefaultModel is the model used when --model is not given.
	DefaultModel string `yaml:"default_model,omitempty"`

	// Device pins inference to a backend: auto, cpu, cuda or coreml.
	Device string `yaml:"device,omitempty"`

	// CacheDir is where the separation result cache lives. Defaults to
	// <config dir>/cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// DisableCache turns the separation result cache off entirely.
	DisableCache bool `yaml:"disable_cache,omitempty"`

	// S3Bucket and S3Prefix configure remote model fetching. Empty
	// disables it.
	S3Bucket string `yaml:"s3_bucket,omitempty"`
	S3Prefix string `yaml:"s3_prefix,omitempty"`
}

// Load reads the configuration from the default location.
func Load() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom reads the configuration rooted at dir. A missing settings file
// is not an error; defaults apply.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", fileName, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ModelDir == "" {
		c.ModelDir = filepath.Join(c.Dir, "models")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.Dir, "cache")
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "htdemucs"
	}
	if c.Device == "" {
		c.Device = "auto"
	}
}

// Save writes the settings file, creating the directory as needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(c.Dir, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Set assigns a named setting from its string form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "model_dir":
		c.ModelDir = value
	case "default_model":
		c.DefaultModel = value
	case "device":
		switch value {
		case "auto", "cpu", "cuda", "coreml":
			c.Device = value
		default:
			return fmt.Errorf("invalid device %q (auto, cpu, cuda, coreml)", value)
		}
	case "cache_dir":
		c.CacheDir = value
	case "disable_cache":
		switch value {
		case "true", "1", "yes":
			c.DisableCache = true
		case "false", "0", "no":
			c.DisableCache = false
		default:
			return fmt.Errorf("invalid boolean %q", value)
		}
	case "s3_bucket":
		c.S3Bucket = value
	case "s3_prefix":
		c.S3Prefix = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Get returns a named setting in its string form.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "model_dir":
		return c.ModelDir, nil
	case "default_model":
		return c.DefaultModel, nil
	case "device":
		return c.Device, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "disable_cache":
		return fmt.Sprintf("%t", c.DisableCache), nil
	case "s3_bucket":
		return c.S3Bucket, nil
	case "s3_prefix":
		return c.S3Prefix, nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

// Keys lists the settable configuration keys.
func Keys() []string {
	return []string{
		"model_dir", "default_model", "device",
		"cache_dir", "disable_cache", "s3_bucket", "s3_prefix",
	}
}
