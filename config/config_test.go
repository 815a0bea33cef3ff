package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/google/go-cmp/cmp"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Remote.BaseURL = "http://shop.test"
	cfg.Remote.HomeURL = "http://shop.test/home"
	cfg.Remote.CategoryClass = "category"
	cfg.Fields = []models.FieldSpec{{Header: "Name", Label: "Product name"}}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.Remote.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid home url format",
			mutate: func(cfg *Config) {
				cfg.Remote.HomeURL = "http://"
			},
			wantErr: "home URL",
		},
		{
			name: "missing css class",
			mutate: func(cfg *Config) {
				cfg.Remote.CategoryClass = " "
			},
			wantErr: "css class",
		},
		{
			name: "zero items per page",
			mutate: func(cfg *Config) {
				cfg.Remote.ItemsPerPageDefault = 0
			},
			wantErr: "items per page",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.Remote.MaxPagesPerCategory = 0
			},
			wantErr: "max pages",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Remote.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "no fields",
			mutate: func(cfg *Config) {
				cfg.Fields = nil
			},
			wantErr: "info to scrape",
		},
		{
			name: "empty label",
			mutate: func(cfg *Config) {
				cfg.Fields = append(cfg.Fields, models.FieldSpec{Header: "Price"})
			},
			wantErr: "empty label",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.Results.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "unknown log level",
			mutate: func(cfg *Config) {
				cfg.Logging.Level = "LOUD"
			},
			wantErr: "log level",
		},
		{
			name: "zero log size",
			mutate: func(cfg *Config) {
				cfg.Logging.SizeMax = 0
			},
			wantErr: "log size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidConfigPasses(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("config should validate, got %v", err)
	}
}

const sampleINI = `[Remote]
URL_BASE = http://shop.test
URL_HOME = http://shop.test/index.php
CSS_CLASS_HOMEPAGE = menu-category
ITEMS_PER_PAGE_DEFAULT = 12
INFO_TO_SCRAPE = [["Name", "Product name"], ["Price", "Unit price"]]

[Results]
FILE_TO_SAVE = out/products.csv

[Logging]
LOG_FILE = scraper.log
LOG_LEVEL = warning
LOG_SIZE_MAX = 1000000
LOG_ROTATE_MAX = 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleINI))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Remote.BaseURL != "http://shop.test" || cfg.Remote.HomeURL != "http://shop.test/index.php" {
		t.Fatalf("urls = %q %q", cfg.Remote.BaseURL, cfg.Remote.HomeURL)
	}
	if cfg.Remote.ItemsPerPageDefault != 12 {
		t.Fatalf("items per page = %d, want 12", cfg.Remote.ItemsPerPageDefault)
	}
	if cfg.Logging.SizeMax != 1000000 || cfg.Logging.RotateMax != 3 {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	// keys missing from the file keep their defaults
	if cfg.Remote.ContainerSelector != "div" || cfg.Results.OutputFormat != "csv" {
		t.Fatalf("defaults lost: %+v %+v", cfg.Remote, cfg.Results)
	}

	want := []models.FieldSpec{
		{Header: "Name", Label: "Product name"},
		{Header: "Price", Label: "Unit price"},
	}
	if diff := cmp.Diff(want, cfg.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadKeepsCommentCharactersAndContinuationLines(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		wantHome   string
		wantFields []models.FieldSpec
	}{
		{
			name: "inline comment characters",
			remote: `URL_HOME = http://shop.test/index.php;jsessionid=abc#top
INFO_TO_SCRAPE = [["Item", "Item #"], ["Size", "Size; EU"]]
`,
			wantHome: "http://shop.test/index.php;jsessionid=abc#top",
			wantFields: []models.FieldSpec{
				{Header: "Item", Label: "Item #"},
				{Header: "Size", Label: "Size; EU"},
			},
		},
		{
			name: "indented continuation",
			remote: `URL_HOME = http://shop.test/index.php
INFO_TO_SCRAPE = [["Name", "Product name"],
    ["Price", "Unit price"]]
`,
			wantHome: "http://shop.test/index.php",
			wantFields: []models.FieldSpec{
				{Header: "Name", Label: "Product name"},
				{Header: "Price", Label: "Unit price"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "[Remote]\nURL_BASE = http://shop.test\nCSS_CLASS_HOMEPAGE = menu-category\n" +
				tt.remote + "\n[Results]\nFILE_TO_SAVE = out/products.csv\n"
			cfg, err := Load(writeConfig(t, body))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Remote.HomeURL != tt.wantHome {
				t.Fatalf("home url = %q, want %q", cfg.Remote.HomeURL, tt.wantHome)
			}
			if cfg.Results.OutputFile != "out/products.csv" {
				t.Fatalf("output file = %q, keys after the value were lost", cfg.Results.OutputFile)
			}
			if diff := cmp.Diff(tt.wantFields, cfg.Fields); diff != "" {
				t.Fatalf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("FILE_TO_SAVE", "elsewhere.csv")
	t.Setenv("MAX_PAGES_PER_CATEGORY", "7")

	cfg, err := Load(writeConfig(t, sampleINI))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Results.OutputFile != "elsewhere.csv" {
		t.Fatalf("output file = %q, want env override", cfg.Results.OutputFile)
	}
	if cfg.Remote.MaxPagesPerCategory != 7 {
		t.Fatalf("max pages = %d, want 7", cfg.Remote.MaxPagesPerCategory)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.ini")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseFieldSpecs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []models.FieldSpec
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "pairs", raw: `[["A","a"],["B","b"]]`, want: []models.FieldSpec{{Header: "A", Label: "a"}, {Header: "B", Label: "b"}}},
		{name: "short pair", raw: `[["A"]]`, wantErr: true},
		{name: "not json", raw: `Name:label`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFieldSpecs(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFieldSpecs(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"critical", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
}
