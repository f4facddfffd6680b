package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"carprice/logging"
	"carprice/ml"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Database DatabaseConfig `yaml:"database"`
	Log      logging.Config `yaml:"log"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	StaticDir      string        `yaml:"static_dir"`
}

type DataConfig struct {
	CSVPath   string `yaml:"csv_path"`
	CacheSize int    `yaml:"cache_size"`
}

type ModelConfig struct {
	BundlePath string `yaml:"bundle_path"`
	Watch      bool   `yaml:"watch"`
}

type TrainingConfig struct {
	ModelType       string  `yaml:"model_type"`
	NEstimators     int     `yaml:"n_estimators"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	TestRatio       float64 `yaml:"test_ratio"`
	Seed            int64   `yaml:"seed"`
	Workers         int     `yaml:"workers"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

func Default() *Config {
	train := ml.DefaultTrainConfig()
	return &Config{
		HTTP: HTTPConfig{
			Port:           5000,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			RateLimit:      50,
			RateBurst:      100,
			StaticDir:      "./frontend",
		},
		Data: DataConfig{
			CSVPath:   "./data/cars.csv",
			CacheSize: 256,
		},
		Model: ModelConfig{
			BundlePath: "./data/car_model.bundle",
			Watch:      true,
		},
		Training: TrainingConfig{
			ModelType:       train.ModelType,
			NEstimators:     train.NumTrees,
			MaxDepth:        train.MaxDepth,
			MinSamplesSplit: train.MinSamplesSplit,
			TestRatio:       train.TestRatio,
			Seed:            train.Seed,
		},
		Database: DatabaseConfig{
			Path: "./data/carprice.db",
		},
		Log: logging.Config{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load reads .env (if any), then the YAML file at path over the defaults,
// then CARPRICE_* environment overrides. A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CARPRICE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CARPRICE_HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("CARPRICE_CSV_PATH"); v != "" {
		c.Data.CSVPath = v
	}
	if v := os.Getenv("CARPRICE_BUNDLE_PATH"); v != "" {
		c.Model.BundlePath = v
	}
	if v := os.Getenv("CARPRICE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CARPRICE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Data.CSVPath == "" {
		return errors.New("data.csv_path is required")
	}
	if c.Model.BundlePath == "" {
		return errors.New("model.bundle_path is required")
	}
	return c.TrainConfig().Validate()
}

func (c *Config) TrainConfig() ml.TrainConfig {
	return ml.TrainConfig{
		ModelType:       c.Training.ModelType,
		NumTrees:        c.Training.NEstimators,
		MaxDepth:        c.Training.MaxDepth,
		MinSamplesSplit: c.Training.MinSamplesSplit,
		TestRatio:       c.Training.TestRatio,
		Seed:            c.Training.Seed,
		Workers:         c.Training.Workers,
	}
}
