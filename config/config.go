// Package config loads the memif TOML configuration.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. The result is validated before use.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// validate is a package-level singleton; building one per call is expensive.
var validate = validator.New()

// Config is the full memif configuration.
type Config struct {
	Guest   Guest   `toml:"guest" json:"guest"`
	Runtime Runtime `toml:"runtime" json:"runtime"`
	Log     Log     `toml:"log" json:"log"`
	Demo    Demo    `toml:"demo" json:"demo"`
}

// Guest selects the guest to run.
type Guest struct {
	Path        string `toml:"path" json:"path,omitempty" validate:"required_unless=Local true" jsonschema:"description=Path to the compiled guest (.wasm)"`
	Local       bool   `toml:"local" json:"local" jsonschema:"description=Run the guest in-process instead of under wazero"`
	LocalMemory uint32 `toml:"local_memory" json:"local_memory" validate:"min=65536" jsonschema:"description=Linear memory size of a local guest in bytes,minimum=65536"`
}

// Runtime bounds the wazero runtime.
type Runtime struct {
	MemoryLimitPages uint32 `toml:"memory_limit_pages" json:"memory_limit_pages" validate:"max=65536" jsonschema:"description=Linear memory cap in 64KiB pages (0 keeps the runtime default),maximum=65536"`
	MaxMessageSize   uint32 `toml:"max_message_size" json:"max_message_size" validate:"min=1" jsonschema:"description=Bytes read per guest print call,minimum=1"`
}

// Log configures the host logger.
type Log struct {
	Level  string `toml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `toml:"format" json:"format" validate:"oneof=text json" jsonschema:"enum=text,enum=json"`
}

// Demo holds the values the run command stores in guest memory.
type Demo struct {
	Number  float64 `toml:"number" json:"number"`
	Boolean bool    `toml:"boolean" json:"boolean"`
	Text    string  `toml:"text" json:"text"`
}

// Default returns the configuration used when no file is given. The demo
// stores the largest float64, true and the greeting text.
func Default() Config {
	return Config{
		Guest: Guest{
			LocalMemory: 16 * 65536,
		},
		Runtime: Runtime{
			MaxMessageSize: 64 * 1024,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Demo: Demo{
			Number:  math.MaxFloat64,
			Boolean: true,
			Text:    "Hello World! 🌎",
		},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads path over Default without validating, for callers that apply
// further overrides first.
func Read(path string) (Config, error) {
	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return merge(&raw, meta, "load config")
}

// Parse is Load for a TOML document held in memory.
func Parse(data string) (Config, error) {
	var raw Config
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg, err := merge(&raw, meta, "parse config")
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(raw *Config, meta toml.MetaData, op string) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown keys %v", op, undecoded)
	}
	cfg := Default()
	overlay(&cfg, raw, meta)
	return cfg, nil
}

func overlay(cfg, raw *Config, meta toml.MetaData) {
	if meta.IsDefined("guest", "path") {
		cfg.Guest.Path = strings.TrimSpace(raw.Guest.Path)
	}
	if meta.IsDefined("guest", "local") {
		cfg.Guest.Local = raw.Guest.Local
	}
	if meta.IsDefined("guest", "local_memory") {
		cfg.Guest.LocalMemory = raw.Guest.LocalMemory
	}
	if meta.IsDefined("runtime", "memory_limit_pages") {
		cfg.Runtime.MemoryLimitPages = raw.Runtime.MemoryLimitPages
	}
	if meta.IsDefined("runtime", "max_message_size") {
		cfg.Runtime.MaxMessageSize = raw.Runtime.MaxMessageSize
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}
	if meta.IsDefined("demo", "number") {
		cfg.Demo.Number = raw.Demo.Number
	}
	if meta.IsDefined("demo", "boolean") {
		cfg.Demo.Boolean = raw.Demo.Boolean
	}
	if meta.IsDefined("demo", "text") {
		cfg.Demo.Text = raw.Demo.Text
	}
}

// Validate checks the configuration's validation tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// SlogLevel returns the configured level for log/slog.
func (l Log) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}
