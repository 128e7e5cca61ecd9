// Package config loads knolsched settings from, in increasing precedence,
// flag defaults, a YAML file, KNOLSCHED_* environment variables and
// explicitly set command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knolsched/internal/fsrs"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: KNOLSCHED_FSRS__REQUEST_RETENTION=0.85.
const EnvPrefix = "KNOLSCHED_"

// Config is the complete application configuration.
type Config struct {
	DB       string `koanf:"db" validate:"required"`
	Addr     string `koanf:"addr" validate:"required,hostname_port"`
	ReposDir string `koanf:"repos_dir" validate:"required"`
	Log      Log    `koanf:"log"`
	FSRS     FSRS   `koanf:"fsrs"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// FSRS holds scheduler overrides. Zero values fall back to the scheduler's
// defaults, and an empty weight list means the default weights.
type FSRS struct {
	RequestRetention float64   `koanf:"request_retention" validate:"gt=0,lt=1"`
	MaximumInterval  int       `koanf:"maximum_interval" validate:"gte=1"`
	EasyBonus        float64   `koanf:"easy_bonus" validate:"gte=1"`
	HardFactor       float64   `koanf:"hard_factor" validate:"gt=0"`
	Weights          []float64 `koanf:"weights" validate:"omitempty,len=13"`
}

// Flags returns a flag set declaring every configuration key with its
// default value.
func Flags(name string) *pflag.FlagSet {
	def := fsrs.DefaultParameters()
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.StringP("config", "c", "", "Path to a YAML configuration file")
	f.String("db", "knolsched.db", "Path to the SQLite database file")
	f.String("addr", "localhost:8080", "Listen address for serve")
	f.String("repos_dir", "repos", "Directory for cloned git sources")
	f.String("log.level", "info", "Log level: debug, info, warn or error")
	f.String("log.format", "text", "Log format: text or json")
	f.Float64("fsrs.request_retention", def.RequestRetention, "Target probability of recall")
	f.Int("fsrs.maximum_interval", def.MaximumInterval, "Longest interval in days")
	f.Float64("fsrs.easy_bonus", def.EasyBonus, "Multiplier applied to Easy intervals")
	f.Float64("fsrs.hard_factor", def.HardFactor, "Multiplier applied to Hard intervals")
	return f
}

// Load builds the configuration from a parsed flag set.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags override everything when set and supply defaults otherwise.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Parameters converts the FSRS section into scheduler parameters.
func (c *Config) Parameters() (fsrs.Parameters, error) {
	p := fsrs.Parameters{
		RequestRetention: c.FSRS.RequestRetention,
		MaximumInterval:  c.FSRS.MaximumInterval,
		EasyBonus:        c.FSRS.EasyBonus,
		HardFactor:       c.FSRS.HardFactor,
	}
	if len(c.FSRS.Weights) > 0 {
		w, err := fsrs.WeightsFromSlice(c.FSRS.Weights)
		if err != nil {
			return p, err
		}
		p.W = w
	}
	return p, nil
}

// NewLogger builds the slog logger described by the Log section.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
