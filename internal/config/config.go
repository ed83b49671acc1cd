// Package config loads gradbridge settings from defaults, an optional YAML
// file, GRADBRIDGE_* environment variables and bound command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. GRADBRIDGE_FIT_STEPS.
const EnvPrefix = "GRADBRIDGE"

// Config is the full configuration tree.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Model   ModelConfig   `mapstructure:"model"`
	Fit     FitConfig     `mapstructure:"fit"`
	Prior   PriorConfig   `mapstructure:"prior"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DataConfig holds the paired observations bound as aux data.
type DataConfig struct {
	X []float64 `mapstructure:"x"`
	Y []float64 `mapstructure:"y"`
}

// ModelConfig selects the model.
type ModelConfig struct {
	// Name is one of linear, gaussian, polynomial.
	Name string `mapstructure:"name"`
	// Degree is the polynomial degree; ignored by other models.
	Degree int `mapstructure:"degree"`
}

// FitConfig controls the host engine.
type FitConfig struct {
	// Method is one of lbfgs, gd, sgd, adam.
	Method string `mapstructure:"method"`
	// Steps bounds the number of iterations per chain.
	Steps int `mapstructure:"steps"`
	// LR is the learning rate for sgd and adam.
	LR float64 `mapstructure:"lr"`
	// Momentum applies to sgd.
	Momentum float64 `mapstructure:"momentum"`
	// Chains is the number of independent chains run in parallel.
	Chains int `mapstructure:"chains"`
	// Init is the flat starting point; empty means all zeros.
	Init []float64 `mapstructure:"init"`
	// Jitter is the standard deviation of the per-chain perturbation of Init.
	Jitter float64 `mapstructure:"jitter"`
	// Seed seeds the jitter.
	Seed uint64 `mapstructure:"seed"`
}

// PriorConfig sets an isotropic Gaussian prior on every parameter.
type PriorConfig struct {
	// Sigma is the prior standard deviation; 0 disables the prior.
	Sigma float64 `mapstructure:"sigma"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `mapstructure:"addr"`
}

// Default returns the default configuration: the line model over
// x = [1,2,3], y = [2,4,6] fitted with L-BFGS.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			X: []float64{1, 2, 3},
			Y: []float64{2, 4, 6},
		},
		Model: ModelConfig{
			Name:   "linear",
			Degree: 2,
		},
		Fit: FitConfig{
			Method:   "lbfgs",
			Steps:    200,
			LR:       0.05,
			Momentum: 0.9,
			Chains:   1,
			Jitter:   0,
			Seed:     1,
		},
		Prior: PriorConfig{
			Sigma: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("data.x", defaults.Data.X)
	v.SetDefault("data.y", defaults.Data.Y)

	v.SetDefault("model.name", defaults.Model.Name)
	v.SetDefault("model.degree", defaults.Model.Degree)

	v.SetDefault("fit.method", defaults.Fit.Method)
	v.SetDefault("fit.steps", defaults.Fit.Steps)
	v.SetDefault("fit.lr", defaults.Fit.LR)
	v.SetDefault("fit.momentum", defaults.Fit.Momentum)
	v.SetDefault("fit.chains", defaults.Fit.Chains)
	v.SetDefault("fit.init", defaults.Fit.Init)
	v.SetDefault("fit.jitter", defaults.Fit.Jitter)
	v.SetDefault("fit.seed", defaults.Fit.Seed)

	v.SetDefault("prior.sigma", defaults.Prior.Sigma)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Setup prepares v: defaults, environment binding and, when path is set, the
// config file.
func Setup(v *viper.Viper, path string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}
