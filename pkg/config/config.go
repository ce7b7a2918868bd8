package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Model ModelConfig `yaml:"model" json:"model" jsonschema:"description=Affinity model configuration"`

	Classifier ClassifierConfig `yaml:"classifier" json:"classifier" jsonschema:"description=Credibility classifier configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Candidate article fetch configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Article content extraction configuration"`
}

// ModelConfig holds the affinity model training settings
type ModelConfig struct {
	Factors         int           `yaml:"factors" json:"factors" jsonschema:"default=20,minimum=1,description=Dimension of latent factor vectors"`
	Epochs          int           `yaml:"epochs" json:"epochs" jsonschema:"default=20,minimum=1,description=SGD training epochs"`
	LearningRate    float64       `yaml:"learning_rate" json:"learning_rate" jsonschema:"default=0.005,description=SGD learning rate"`
	Regularization  float64       `yaml:"regularization" json:"regularization" jsonschema:"default=0.02,description=L2 regularization"`
	TestFraction    float64       `yaml:"test_fraction" json:"test_fraction" jsonschema:"default=0.25,minimum=0,maximum=1,description=Held-out fraction for prediction split"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval" jsonschema:"default=15m,description=Background model rebuild interval"`
	DefaultKeywords []string      `yaml:"default_keywords" json:"default_keywords" jsonschema:"description=Cold-start keyword set for users without ratings"`
}

// ClassifierConfig holds the per-unit credibility scorer settings
type ClassifierConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. gpt-4o-mini or llama3)"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.1,description=Temperature for response generation"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Overall timeout for scoring one article"`
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=8,description=Maximum concurrent unit classifications per article"`
}

// FetchConfig holds candidate article search settings
type FetchConfig struct {
	Provider  string        `yaml:"provider" json:"provider" jsonschema:"default=rss,enum=rss,enum=newsapi,description=Candidate source: newsapi or rss (Google News)"`
	APIKey    string        `yaml:"api_key" json:"api_key" jsonschema:"description=NewsAPI key (required for the newsapi provider)"`
	PageSize  int           `yaml:"page_size" json:"page_size" jsonschema:"default=5,minimum=1,description=Candidate articles per keyword"`
	Language  string        `yaml:"language" json:"language" jsonschema:"default=en,description=Candidate article language"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Search request timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Persnews/1.0,description=User agent for search requests"`
}

// ExtractionConfig holds content extraction settings
type ExtractionConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent extractions"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Persnews/1.0,description=User agent for HTTP requests"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
	MaxKeywords   int           `yaml:"max_keywords" json:"max_keywords" jsonschema:"default=5,description=Maximum keywords attached to a headline"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, usable without a file
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	// set defaults for server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:persnews.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// set defaults for model
	if c.Model.Factors == 0 {
		c.Model.Factors = 20
	}
	if c.Model.Epochs == 0 {
		c.Model.Epochs = 20
	}
	if c.Model.LearningRate == 0 {
		c.Model.LearningRate = 0.005
	}
	if c.Model.Regularization == 0 {
		c.Model.Regularization = 0.02
	}
	if c.Model.TestFraction == 0 {
		c.Model.TestFraction = 0.25
	}
	if c.Model.RefreshInterval == 0 {
		c.Model.RefreshInterval = 15 * time.Minute
	}
	if len(c.Model.DefaultKeywords) == 0 {
		c.Model.DefaultKeywords = []string{"apple", "google", "covid19", "usa", "cats"}
	}

	// set defaults for classifier
	if c.Classifier.Temperature == 0 {
		c.Classifier.Temperature = 0.1
	}
	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = 60 * time.Second
	}
	if c.Classifier.MaxWorkers == 0 {
		c.Classifier.MaxWorkers = 8
	}

	// set defaults for fetch
	if c.Fetch.Provider == "" {
		c.Fetch.Provider = "rss"
	}
	if c.Fetch.PageSize == 0 {
		c.Fetch.PageSize = 5
	}
	if c.Fetch.Language == "" {
		c.Fetch.Language = "en"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Persnews/1.0"
	}

	// set defaults for extraction
	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.MaxConcurrent == 0 {
		c.Extraction.MaxConcurrent = 5
	}
	if c.Extraction.UserAgent == "" {
		c.Extraction.UserAgent = "Persnews/1.0"
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}
	if c.Extraction.MaxKeywords == 0 {
		c.Extraction.MaxKeywords = 5
	}
}

func (c *Config) validate() error {
	if c.Fetch.Provider != "rss" && c.Fetch.Provider != "newsapi" {
		return fmt.Errorf("invalid fetch provider %q, must be rss or newsapi", c.Fetch.Provider)
	}
	if c.Fetch.Provider == "newsapi" && c.Fetch.APIKey == "" {
		return fmt.Errorf("fetch provider newsapi requires an api key")
	}
	if c.Model.TestFraction < 0 || c.Model.TestFraction >= 1 {
		return fmt.Errorf("model test_fraction %v out of range [0, 1)", c.Model.TestFraction)
	}
	return nil
}

// GetServerConfig returns server listen address and timeout
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
