// Package config loads the featured daemon configuration.
//
// Values are layered: built-in defaults, then the YAML file, then command
// line flags (see Merge). The merged result is checked against an embedded
// CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultDatabase = "featured.db"
	DefaultSchedule = "0 0 0 * * *" // daily at midnight
	DefaultPeriod   = "daily"
	DefaultTimezone = "UTC"
	DefaultLogLevel = "info"
)

// ErrInvalid marks a configuration rejected by the schema.
var ErrInvalid = errors.New("invalid configuration")

// Config is the daemon configuration.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	// Schedule is the cron expression that triggers rotations. Accepts an
	// optional leading seconds field and descriptors like "@daily".
	Schedule string `yaml:"schedule" json:"schedule"`

	// Period is the window an artist is featured at most once in:
	// "daily", "hourly" or a duration.
	Period string `yaml:"period" json:"period"`

	// Timezone is the IANA zone used for the schedule and day boundaries.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SnapshotPath, if set, receives a JSON snapshot after each rotation.
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path,omitempty"`

	// RotateOnStart runs one rotation at startup when nothing is featured.
	RotateOnStart bool `yaml:"rotate_on_start" json:"rotate_on_start"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		Schedule: DefaultSchedule,
		Period:   DefaultPeriod,
		Timezone: DefaultTimezone,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of o applied on top.
func (c Config) Merge(o Config) Config {
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.Schedule != "" {
		c.Schedule = o.Schedule
	}
	if o.Period != "" {
		c.Period = o.Period
	}
	if o.Timezone != "" {
		c.Timezone = o.Timezone
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.SnapshotPath != "" {
		c.SnapshotPath = o.SnapshotPath
	}
	if o.RotateOnStart {
		c.RotateOnStart = true
	}
	return c
}

// Validate checks c against the embedded CUE schema and resolves the
// time zone. All schema violations are reported together.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w:\n%s", ErrInvalid, strings.TrimSpace(cueerrors.Details(err, nil)))
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Location loads the configured time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
