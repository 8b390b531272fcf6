package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"lingotags/internal/dictionary"
	"lingotags/internal/filewalker"
	"lingotags/internal/fsutil"
	"lingotags/internal/manifest"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "config.json"

// EnvPrefix prefixes environment overrides, e.g. LINGOTAGS_VERBOSE=true.
const EnvPrefix = "LINGOTAGS"

var (
	// ErrConfigMissing is returned when no config file exists at the given path.
	ErrConfigMissing = errors.New("configuration file not found")
	// ErrConfigInvalid is returned when a loaded config fails validation.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Config drives one batch run.
type Config struct {
	SearchDirectory     string   `json:"searchDirectory" mapstructure:"searchDirectory"`
	OutputFile          string   `json:"outputFile" mapstructure:"outputFile"`
	FilePattern         string   `json:"filePattern" mapstructure:"filePattern"`
	DefaultLanguage     string   `json:"defaultLanguage" mapstructure:"defaultLanguage"`
	Verbose             bool     `json:"verbose" mapstructure:"verbose"`
	Manifest            string   `json:"manifest,omitempty" mapstructure:"manifest"`
	LocalesDir          string   `json:"localesDir,omitempty" mapstructure:"localesDir"`
	RootMarkers         []string `json:"rootMarkers,omitempty" mapstructure:"rootMarkers"`
	IncrementalManifest bool     `json:"incrementalManifest,omitempty" mapstructure:"incrementalManifest"`
	DatabaseURL         string   `json:"databaseUrl,omitempty" mapstructure:"databaseUrl"`
	Workers             int      `json:"workers,omitempty" mapstructure:"workers"`
	// CustomPatterns are appended to the built-in pattern catalog.
	CustomPatterns []Pattern `json:"customPatterns,omitempty" mapstructure:"customPatterns"`
}

// Pattern is a user-supplied element pattern. The expression may use
// backreferences such as \1 to pair closing tags.
type Pattern struct {
	Name string `json:"name" mapstructure:"name"`
	Expr string `json:"expr" mapstructure:"expr"`
}

// Defaults returns the values used for keys absent from the config file.
func Defaults() Config {
	return Config{
		FilePattern:     filewalker.DefaultPattern,
		DefaultLanguage: "en",
		Manifest:        manifest.DefaultName,
		LocalesDir:      "locales",
		RootMarkers:     append([]string(nil), dictionary.DefaultRootMarkers...),
		Workers:         4,
	}
}

// Wizard returns the starting values offered by the init command.
func Wizard() Config {
	c := Defaults()
	c.SearchDirectory = "./src"
	c.OutputFile = "translations.json"
	return c
}

func newViper(file string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("searchDirectory", "")
	v.SetDefault("outputFile", "")
	v.SetDefault("filePattern", d.FilePattern)
	v.SetDefault("defaultLanguage", d.DefaultLanguage)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("localesDir", d.LocalesDir)
	v.SetDefault("rootMarkers", d.RootMarkers)
	v.SetDefault("incrementalManifest", d.IncrementalManifest)
	v.SetDefault("databaseUrl", "")
	v.SetDefault("workers", d.Workers)
	return v
}

// Load reads the config file at path, layers LINGOTAGS_* environment
// overrides on top, and validates the result. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	if path == "" {
		path = DefaultPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	ok, err := fsutil.Exists(abs)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMissing, abs)
	}

	v := newViper(abs)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfigInvalid, abs, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrConfigInvalid, abs, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and fills blank optional ones.
func (c *Config) Validate() error {
	var problems []string
	if len(strings.TrimSpace(c.SearchDirectory)) < 3 {
		problems = append(problems, "search directory is required, and must be at least 3 characters")
	}
	if len(strings.TrimSpace(c.OutputFile)) < 3 {
		problems = append(problems, "output file path is required and must be at least 3 characters")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	for i, p := range c.CustomPatterns {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Expr) == "" {
			problems = append(problems, fmt.Sprintf("customPatterns[%d] needs a name and an expr", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(problems, "; "))
	}

	d := Defaults()
	if c.FilePattern == "" {
		c.FilePattern = d.FilePattern
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = d.DefaultLanguage
	}
	if c.Manifest == "" {
		c.Manifest = d.Manifest
	}
	if c.LocalesDir == "" {
		c.LocalesDir = d.LocalesDir
	}
	if len(c.RootMarkers) == 0 {
		c.RootMarkers = d.RootMarkers
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	return nil
}

// Resolve returns a copy with relative paths anchored at dir.
func (c Config) Resolve(dir string) Config {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.SearchDirectory = anchor(c.SearchDirectory)
	c.OutputFile = anchor(c.OutputFile)
	c.Manifest = anchor(c.Manifest)
	c.LocalesDir = anchor(c.LocalesDir)
	c.RootMarkers = append([]string(nil), c.RootMarkers...)
	c.CustomPatterns = append([]Pattern(nil), c.CustomPatterns...)
	return c
}

// Save writes c as indented JSON to path.
func Save(path string, c Config) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
