// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads the worker configuration.
// Values are layered, lowest to highest: built-in defaults, the config file
// (YAML, JSON or TOML), a .env file, SQLWORKER_ environment variables and
// explicitly set command-line flags. The result is an immutable Config that
// is handed to the worker at construction; nothing here is kept in package
// state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"sqlworker/internal/dsn"
	"sqlworker/internal/xdg"
)

// EnvPrefix prefixes every environment variable read by the worker.
// Nested keys are separated by a double underscore:
// SQLWORKER_DATABASES__MAIN__URI sets databases.main.uri.
const EnvPrefix = "SQLWORKER_"

// KeyringPrefix marks a database URI stored in the OS keychain.
const KeyringPrefix = "keyring:"

// Config holds the worker settings.
type Config struct {
	LogLevel  string              `koanf:"log_level"`
	LogFormat string              `koanf:"log_format"`
	Databases map[string]Database `koanf:"databases"`
	Bus       Bus                 `koanf:"bus"`
	Notify    Notify              `koanf:"notify"`
	Journal   Journal             `koanf:"journal"`
	Health    Health              `koanf:"health"`

	// File is the config file that was read, empty when none was.
	File string `koanf:"-"`
}

// Database is one named connection target.
type Database struct {
	URI    string         `koanf:"uri"`
	Kwargs map[string]any `koanf:"kwargs"`

	// Options is Kwargs decoded and defaulted.
	Options Options `koanf:"-"`
}

// Options are the recognised connection kwargs.
type Options struct {
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"`
	Echo           bool              `mapstructure:"echo"`
	Params         map[string]string `mapstructure:"params"`
	MaxOpenConns   int               `mapstructure:"max_open_conns"`
}

// Bus configures the NATS JetStream request transport.
type Bus struct {
	Driver        string        `koanf:"driver"`
	URL           string        `koanf:"url"`
	Token         string        `koanf:"token"`
	User          string        `koanf:"user"`
	Password      string        `koanf:"password"`
	Creds         string        `koanf:"creds"`
	Stream        string        `koanf:"stream"`
	Subject       string        `koanf:"subject"`
	Durable       string        `koanf:"durable"`
	CreateStream  bool          `koanf:"create_stream"`
	FetchWait     time.Duration `koanf:"fetch_wait"`
	OutputSubject string        `koanf:"output_subject"`
}

// Notify configures the side-channel notifier.
type Notify struct {
	Driver   string `koanf:"driver"`
	Subject  string `koanf:"subject"`
	URL      string `koanf:"url"`
	Topic    string `koanf:"topic"`
	QoS      int    `koanf:"qos"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Journal configures the optional outcome journal.
type Journal struct {
	Driver   string        `koanf:"driver"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
	Path     string        `koanf:"path"`
}

// Health configures the gRPC health endpoint. An empty Addr disables it.
type Health struct {
	Addr string `koanf:"addr"`
}

// Drivers accepted per section.
var (
	BusDrivers     = []string{"nats"}
	NotifyDrivers  = []string{"log", "nats", "mqtt"}
	JournalDrivers = []string{"none", "redis", "sqlite"}
)

// DefaultConnectTimeout bounds the per-request open and ping.
const DefaultConnectTimeout = 5 * time.Second

func defaults() map[string]any {
	return map[string]any{
		"log_level":          "info",
		"log_format":         "text",
		"bus.driver":         "nats",
		"bus.url":            "nats://127.0.0.1:4222",
		"bus.stream":         "SQLWORKER",
		"bus.subject":        "sqlworker.requests",
		"bus.durable":        "sqlworker",
		"bus.fetch_wait":     "5s",
		"bus.output_subject": "sqlworker.output",
		"notify.driver":      "log",
		"notify.subject":     "sqlworker.notify",
		"notify.topic":       "sqlworker/notify",
		"notify.client_id":   "sqlworker",
		"journal.driver":     "none",
		"journal.addr":       "127.0.0.1:6379",
		"journal.ttl":        "168h",
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"log-level":   "log_level",
	"log-format":  "log_format",
	"bus-url":     "bus.url",
	"health-addr": "health.addr",
	"journal":     "journal.driver",
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an explicit config file; when empty the XDG default is used if present.
	File string
	// EnvFile is an explicit .env file; when empty ./.env is used if present.
	EnvFile string
	// Flags are the parsed command-line flags; only changed flags apply.
	Flags *pflag.FlagSet
}

// Load builds the configuration from every layer and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path, err := findConfigFile(opts.File)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. .env file, read without touching the process environment
	if err := loadDotEnv(k, opts.EnvFile); err != nil {
		return nil, err
	}

	// 4. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = path

	for name, db := range cfg.Databases {
		o, err := DecodeOptions(db.Kwargs)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", name, err)
		}
		db.Options = o
		cfg.Databases[name] = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns SQLWORKER_BUS__FETCH_WAIT into bus.fetch_wait.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	def, err := xdg.ConfigFile()
	if err != nil {
		return "", nil
	}
	if _, err := os.Stat(def); err == nil {
		return def, nil
	}
	return "", nil
}

func loadFile(k *koanf.Koanf, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var m map[string]any
		if _, err := toml.DecodeFile(path, &m); err != nil {
			return err
		}
		return k.Load(confmap.Provider(m, "."), nil)
	case ".yaml", ".yml", ".json", "":
		// JSON is a subset of YAML.
		return k.Load(file.Provider(path), yaml.Parser())
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func loadDotEnv(k *koanf.Koanf, explicit string) error {
	path := explicit
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("error reading env file %s: %w", path, err)
	}
	m := make(map[string]any)
	for key, v := range vars {
		if strings.HasPrefix(key, EnvPrefix) {
			m[envKey(key)] = v
		}
	}
	return k.Load(confmap.Provider(m, "."), nil)
}

// DecodeOptions decodes connection kwargs. Unknown keys are an error.
func DecodeOptions(kwargs map[string]any) (Options, error) {
	o := Options{ConnectTimeout: DefaultConnectTimeout}
	if len(kwargs) == 0 {
		return o, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &o,
	})
	if err != nil {
		return o, err
	}
	if err := dec.Decode(kwargs); err != nil {
		return o, fmt.Errorf("invalid kwargs: %w", err)
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	return o, nil
}

// Validate checks the configuration for errors that would otherwise surface
// only on the first request.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Databases) == 0 {
		errs = append(errs, errors.New("no databases configured"))
	}
	for _, name := range c.DatabaseNames() {
		uri := c.Databases[name].URI
		switch {
		case uri == "":
			errs = append(errs, fmt.Errorf("database %q: uri is required", name))
		case strings.HasPrefix(uri, KeyringPrefix):
			if strings.TrimPrefix(uri, KeyringPrefix) == "" {
				errs = append(errs, fmt.Errorf("database %q: keyring uri needs an entry name", name))
			}
		case dsn.DetectDBType(uri) == dsn.DBTypeUnknown:
			errs = append(errs, fmt.Errorf("database %q: unsupported connection uri", name))
		}
	}
	if !oneOf(c.Bus.Driver, BusDrivers) {
		errs = append(errs, fmt.Errorf("bus.driver %q: must be one of %s", c.Bus.Driver, strings.Join(BusDrivers, ", ")))
	}
	if !oneOf(c.Notify.Driver, NotifyDrivers) {
		errs = append(errs, fmt.Errorf("notify.driver %q: must be one of %s", c.Notify.Driver, strings.Join(NotifyDrivers, ", ")))
	}
	if c.Notify.QoS < 0 || c.Notify.QoS > 2 {
		errs = append(errs, fmt.Errorf("notify.qos %d: must be 0, 1 or 2", c.Notify.QoS))
	}
	if !oneOf(c.Journal.Driver, JournalDrivers) {
		errs = append(errs, fmt.Errorf("journal.driver %q: must be one of %s", c.Journal.Driver, strings.Join(JournalDrivers, ", ")))
	}
	return errors.Join(errs...)
}

// DatabaseNames returns the configured database names in sorted order.
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
