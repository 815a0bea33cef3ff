package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/titanous/json5"
	"gopkg.in/ini.v1"
)

// FileName is the configuration file read from the working directory.
const FileName = "config.ini"

// Config holds scraper configuration. Sections mirror the INI file; every key
// can be overridden by an environment variable of the same name.
type Config struct {
	Remote  RemoteConfig  `ini:"Remote"`
	Results ResultsConfig `ini:"Results"`
	Logging LoggingConfig `ini:"Logging"`
	Metrics MetricsConfig `ini:"Metrics"`

	// Fields is INFO_TO_SCRAPE decoded, in output column order.
	Fields []models.FieldSpec `ini:"-"`
}

// RemoteConfig describes the target site and how it is fetched.
type RemoteConfig struct {
	BaseURL             string        `ini:"URL_BASE" env:"URL_BASE"`
	HomeURL             string        `ini:"URL_HOME" env:"URL_HOME"`
	CategoryClass       string        `ini:"CSS_CLASS_HOMEPAGE" env:"CSS_CLASS_HOMEPAGE"`
	ItemsPerPageDefault int           `ini:"ITEMS_PER_PAGE_DEFAULT" env:"ITEMS_PER_PAGE_DEFAULT"`
	InfoToScrape        string        `ini:"INFO_TO_SCRAPE" env:"INFO_TO_SCRAPE"`
	ContainerSelector   string        `ini:"CONTAINER_SELECTOR" env:"CONTAINER_SELECTOR"`
	MaxPagesPerCategory int           `ini:"MAX_PAGES_PER_CATEGORY" env:"MAX_PAGES_PER_CATEGORY"`
	UserAgent           string        `ini:"USER_AGENT" env:"USER_AGENT"`
	Timeout             time.Duration `ini:"REQUEST_TIMEOUT" env:"REQUEST_TIMEOUT"`
	RespectRobotsTxt    bool          `ini:"RESPECT_ROBOTS_TXT" env:"RESPECT_ROBOTS_TXT"`
}

// ResultsConfig describes the output sink.
type ResultsConfig struct {
	OutputFile    string `ini:"FILE_TO_SAVE" env:"FILE_TO_SAVE"`
	OutputFormat  string `ini:"OUTPUT_FORMAT" env:"OUTPUT_FORMAT"` // csv, json, or dual
	DedupeMaxSize int    `ini:"DEDUPE_MAX_SIZE" env:"DEDUPE_MAX_SIZE"`
}

// LoggingConfig describes the rotating log sink.
type LoggingConfig struct {
	File      string `ini:"LOG_FILE" env:"LOG_FILE"`
	Level     string `ini:"LOG_LEVEL" env:"LOG_LEVEL"`
	Format    string `ini:"LOG_FORMAT" env:"LOG_FORMAT"` // json or text
	SizeMax   int64  `ini:"LOG_SIZE_MAX" env:"LOG_SIZE_MAX"`
	RotateMax int    `ini:"LOG_ROTATE_MAX" env:"LOG_ROTATE_MAX"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `ini:"METRICS_ADDR" env:"METRICS_ADDR"`
}

// DefaultConfig returns defaults for everything except the target site.
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			ItemsPerPageDefault: 20,
			ContainerSelector:   "div",
			MaxPagesPerCategory: 1000,
			UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			Timeout:             30 * time.Second,
			RespectRobotsTxt:    false,
		},
		Results: ResultsConfig{
			OutputFile:   "output/products.csv",
			OutputFormat: "csv",
		},
		Logging: LoggingConfig{
			File:      "scraper.log",
			Level:     "INFO",
			Format:    "json",
			SizeMax:   10 << 20,
			RotateMax: 5,
		},
	}
}

// Load reads the INI file at path over DefaultConfig, applies environment
// overrides and decodes INFO_TO_SCRAPE. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Values keep '#' and ';' verbatim and may continue on indented lines,
	// the way configparser reads the same file.
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:        true,
		AllowPythonMultilineValues: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := file.MapTo(cfg); err != nil {
		return nil, fmt.Errorf("map config %q: %w", path, err)
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment overrides: %w", err)
	}

	fields, err := ParseFieldSpecs(cfg.Remote.InfoToScrape)
	if err != nil {
		return nil, err
	}
	cfg.Fields = fields
	return cfg, nil
}

// ParseFieldSpecs decodes a JSON array of [header, label] pairs.
func ParseFieldSpecs(raw string) ([]models.FieldSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var pairs [][]string
	if err := json5.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("decode INFO_TO_SCRAPE: %w", err)
	}

	fields := make([]models.FieldSpec, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("INFO_TO_SCRAPE entry %d: want [header, label], got %d values", i, len(pair))
		}
		fields = append(fields, models.FieldSpec{Header: pair[0], Label: pair[1]})
	}
	return fields, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("base URL", c.Remote.BaseURL); err != nil {
		return err
	}
	if err := validateURL("home URL", c.Remote.HomeURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Remote.CategoryClass) == "" {
		return fmt.Errorf("homepage css class cannot be empty")
	}
	if c.Remote.ItemsPerPageDefault <= 0 {
		return fmt.Errorf("items per page default must be positive")
	}
	if c.Remote.ContainerSelector == "" {
		return fmt.Errorf("container selector cannot be empty")
	}
	if c.Remote.MaxPagesPerCategory <= 0 {
		return fmt.Errorf("max pages per category must be positive")
	}
	if c.Remote.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if len(c.Fields) == 0 {
		return fmt.Errorf("info to scrape cannot be empty")
	}
	for i, f := range c.Fields {
		if f.Header == "" {
			return fmt.Errorf("info to scrape entry %d has an empty header", i)
		}
		if f.Label == "" {
			return fmt.Errorf("info to scrape entry %d (%s) has an empty label", i, f.Header)
		}
	}

	if c.Results.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.Results.OutputFormat {
	case "csv", "json", "dual":
	default:
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.Results.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}

	if c.Logging.File == "" {
		return fmt.Errorf("log file cannot be empty")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("log format must be json or text")
	}
	if c.Logging.SizeMax <= 0 {
		return fmt.Errorf("log size max must be positive")
	}
	if c.Logging.RotateMax < 0 {
		return fmt.Errorf("log rotate max cannot be negative")
	}

	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
