// Package cli implements the gradbridge command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/born-ml/gradbridge/internal/config"
	"github.com/born-ml/gradbridge/internal/logging"
)

// app is the state shared by every subcommand of one command tree.
type app struct {
	v       *viper.Viper
	version string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the command tree. Each call has its own viper
// instance, so trees never share configuration.
func NewRootCommand(version string) *cobra.Command {
	a := &app{v: viper.New(), version: version}

	root := &cobra.Command{
		Use:   "gradbridge",
		Short: "Evaluate and fit autodiff models through a differentiable bridge op",
		Long: `gradbridge wraps a model written against the autodiff engine as a single
node of a host computation graph. The node returns the model's scalar output
and its gradient with respect to every parameter, which host engines use to
optimise the log-density.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (YAML)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	a.bind(root, "log.level", "log-level")
	a.bind(root, "log.format", "log-format")

	root.AddCommand(a.versionCommand(), a.evalCommand(), a.fitCommand())
	return root
}

// bind ties a flag on cmd to a config key. Persistent flags are looked up
// first so root flags bind the same way as local ones.
func (a *app) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	_ = a.v.BindPFlag(key, f)
}

// load reads configuration and builds the logger before any subcommand runs.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if err := config.Setup(a.v, path); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := overrideSlices(cmd, cfg); err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// overrideSlices applies float slice flags after decoding; viper hands
// these flags back as their string form, which does not decode into a slice.
func overrideSlices(cmd *cobra.Command, cfg *config.Config) error {
	targets := map[string]*[]float64{
		"x":    &cfg.Data.X,
		"y":    &cfg.Data.Y,
		"init": &cfg.Fit.Init,
	}
	for name, dst := range targets {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		vals, err := cmd.Flags().GetFloat64Slice(name)
		if err != nil {
			return err
		}
		*dst = vals
	}
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "gradbridge %s\n", a.version)
			return err
		},
	}
}

// dataFlags registers the model and data flags shared by eval and fit.
func (a *app) dataFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("model", "", "model: linear, gaussian, polynomial")
	flags.Int("degree", 0, "polynomial degree")
	flags.Float64Slice("x", nil, "x observations")
	flags.Float64Slice("y", nil, "y observations")
	a.bind(cmd, "model.name", "model")
	a.bind(cmd, "model.degree", "degree")
}
