package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a fine-tuning run.
type Config struct {
	DataRoot     string  `yaml:"data_root"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`
	Devices      int     `yaml:"devices"`
	NumWorkers   int     `yaml:"num_workers"`
	ImageSize    int     `yaml:"image_size"`
	Seed         int64   `yaml:"seed"`
	LogEvery     int     `yaml:"log_every"`
	Weights      string  `yaml:"weights"`
	OutDir       string  `yaml:"out_dir"`
}

// Default returns the hyperparameters of the reference run.
func Default() *Config {
	return &Config{
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 0.001,
		Momentum:     0.9,
		NumWorkers:   4,
		ImageSize:    64,
		Seed:         42,
		LogEvery:     10,
		OutDir:       "out",
	}
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataRoot     string
	Epochs       int
	BatchSize    int
	LearningRate float64
	Momentum     float64
	Devices      int
	NumWorkers   int
	ImageSize    int
	Seed         int64
	LogEvery     int
	Weights      string
	OutDir       string
}

// Load reads a Config from YAML on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataRoot != "" {
		c.DataRoot = o.DataRoot
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Momentum > 0 {
		c.Momentum = o.Momentum
	}
	if o.Devices > 0 {
		c.Devices = o.Devices
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.ImageSize > 0 {
		c.ImageSize = o.ImageSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.Weights != "" {
		c.Weights = o.Weights
	}
	if o.OutDir != "" {
		c.OutDir = o.OutDir
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataRoot == "" {
		return errors.New("data_root must be set")
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.Errorf("momentum must be in [0, 1) (got %g)", c.Momentum)
	}
	if c.ImageSize <= 0 || c.ImageSize%4 != 0 {
		return errors.Errorf("image_size must be a positive multiple of 4 (got %d)", c.ImageSize)
	}
	if c.NumWorkers <= 0 {
		return errors.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	if c.OutDir == "" {
		return errors.New("out_dir must be set")
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 10
	}
	return nil
}
