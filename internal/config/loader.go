// Package config loads probe run configuration from a YAML file and
// TLSPROBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/internal/scenario"
)

// GetBoolEnv returns a boolean environment variable value with a default.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Environment variable names for configuration.
const (
	EnvPrefix    = "TLSPROBE"
	EnvOuterLoop = "TLSPROBE_OUTERLOOP"
	EnvLogLevel  = "TLSPROBE_LOG_LEVEL"
	EnvLogFormat = "TLSPROBE_LOG_FORMAT"
	EnvTimeout   = "TLSPROBE_TIMEOUT"
)

// Defaults.
const (
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultTimeout   = scenario.DefaultTimeout
)

// ErrConfigNotFound is returned when an explicitly named file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Configuration is a probe run.
type Configuration struct {
	LogLevel  string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"duration"`
	// OuterLoop enables the plan's remotes.
	OuterLoop bool `mapstructure:"outerloop" yaml:"outerloop"`

	Scenarios []scenario.Scenario `mapstructure:"scenarios" yaml:"scenarios" validate:"dive"`
	Remotes   []scenario.Remote   `mapstructure:"remotes" yaml:"remotes" validate:"dive"`
}

// Plan returns the configured scenarios and remotes.
func (c *Configuration) Plan() scenario.Plan {
	return scenario.Plan{Scenarios: c.Scenarios, Remotes: c.Remotes}
}

// HasPlan reports whether the configuration names any scenario or remote.
func (c *Configuration) HasPlan() bool {
	return len(c.Scenarios) > 0 || len(c.Remotes) > 0
}

// OuterLoopEnabled reports whether TLSPROBE_OUTERLOOP asks for remote probes.
func OuterLoopEnabled() bool {
	return GetBoolEnv(EnvOuterLoop, false)
}

// GetDefault returns a configuration with sensible defaults and no plan.
func GetDefault() *Configuration {
	return &Configuration{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Timeout:   DefaultTimeout,
	}
}

// Load reads path (optional) and the environment. An empty path yields the
// defaults overlaid with the environment.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := GetDefault()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("timeout", defaults.Timeout.String())
	v.SetDefault("outerloop", false)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("failed to stat configuration file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	defaultExpectations(cfg)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := domain.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DecodeHook composes the hooks needed for probe configuration.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		domain.ProtocolSetDecodeHook(),
		kindDecodeHook(),
		classDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func kindDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(certs.Kind("")) {
			return data, nil
		}
		return certs.ParseKind(data.(string))
	}
}

func classDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(coreErrors.Class("")) {
			return data, nil
		}
		return coreErrors.ParseClass(data.(string))
	}
}

// defaultExpectations fills in success for entries without an expect key;
// decode hooks never see absent keys.
func defaultExpectations(cfg *Configuration) {
	for i := range cfg.Scenarios {
		if cfg.Scenarios[i].Expect == "" {
			cfg.Scenarios[i].Expect = coreErrors.ClassNone
		}
	}
	for i := range cfg.Remotes {
		if cfg.Remotes[i].Expect == "" {
			cfg.Remotes[i].Expect = coreErrors.ClassNone
		}
	}
}
