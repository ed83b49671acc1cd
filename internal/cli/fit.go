package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/born-ml/gradbridge/internal/checkpoint"
	"github.com/born-ml/gradbridge/internal/fit"
	"github.com/born-ml/gradbridge/internal/metrics"
)

func (a *app) fitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Maximise the host log-density with independent chains",
		Long: `Fit builds one model, bridge op and host graph per chain and runs the chains
concurrently. Each chain prints the best point it reached and the log-density
there. With --metrics-addr set, Prometheus metrics are served on /metrics for
the duration of the run.`,
		Example: `  gradbridge fit --chains 4 --jitter 0.5
  gradbridge fit --model gaussian --method adam --lr 0.05 --steps 2000`,
		Args: cobra.NoArgs,
		RunE: a.runFit,
	}
	a.dataFlags(cmd)

	flags := cmd.Flags()
	flags.String("method", "", "optimizer: lbfgs, gd, sgd, adam")
	flags.Int("steps", 0, "iterations per chain")
	flags.Float64("lr", 0, "learning rate for sgd and adam")
	flags.Float64("momentum", 0, "sgd momentum")
	flags.Int("chains", 0, "number of independent chains")
	flags.Float64Slice("init", nil, "flat starting point")
	flags.Float64("jitter", 0, "stddev of the per-chain start perturbation")
	flags.Uint64("seed", 0, "jitter seed")
	flags.Float64("prior-sigma", 0, "Gaussian prior stddev on every parameter (0 disables)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("save", "", "write the best chain's parameters to this SafeTensors file")

	for key, flag := range map[string]string{
		"fit.method":   "method",
		"fit.steps":    "steps",
		"fit.lr":       "lr",
		"fit.momentum": "momentum",
		"fit.chains":   "chains",
		"fit.jitter":   "jitter",
		"fit.seed":     "seed",
		"prior.sigma":  "prior-sigma",
		"metrics.addr": "metrics-addr",
	} {
		a.bind(cmd, key, flag)
	}
	return cmd
}

func (a *app) runFit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := a.cfg
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	if cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Addr, reg, a.logger)
		if err != nil {
			return err
		}
		a.logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		defer shutdown()
	}

	build := fit.NewBuilder(fit.ModelSpec{
		Model:      cfg.Model.Name,
		Degree:     cfg.Model.Degree,
		X:          cfg.Data.X,
		Y:          cfg.Data.Y,
		PriorSigma: cfg.Prior.Sigma,
		Logger:     a.logger,
		Metrics:    metrics.NewBridge(reg),
	})
	settings := fit.Settings{
		Method:   cfg.Fit.Method,
		Steps:    cfg.Fit.Steps,
		LR:       cfg.Fit.LR,
		Momentum: cfg.Fit.Momentum,
		Chains:   cfg.Fit.Chains,
		Init:     cfg.Fit.Init,
		Jitter:   cfg.Fit.Jitter,
		Seed:     cfg.Fit.Seed,
	}

	results, err := fit.RunChains(ctx, settings, build,
		fit.WithLogger(a.logger),
		fit.WithMetrics(metrics.NewFit(reg)))
	if perr := printResults(cmd.OutOrStdout(), results); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}

	path, err := cmd.Flags().GetString("save")
	if err != nil || path == "" {
		return err
	}
	best := fit.Best(results)
	if best == nil {
		return errors.New("no chain finished; nothing to save")
	}
	if err := checkpoint.Save(path, resultTensors(best), map[string]string{
		"model":       cfg.Model.Name,
		"method":      cfg.Fit.Method,
		"chain_id":    best.ID,
		"log_density": strconv.FormatFloat(best.LogDensity, 'g', -1, 64),
	}); err != nil {
		return err
	}
	a.logger.Info("saved parameters", "path", path, "chain", best.Chain)
	return nil
}

// resultTensors cuts a chain's flat point back into named parameters.
func resultTensors(res *fit.Result) []checkpoint.Tensor {
	out := make([]checkpoint.Tensor, len(res.Params))
	for i, p := range res.Params {
		out[i] = checkpoint.Tensor{
			Name:  p.Name,
			Shape: p.Shape,
			Data:  slices.Clone(res.X[p.Offset : p.Offset+p.Size()]),
		}
	}
	return out
}

// serveMetrics starts /metrics on addr and returns a function that stops it.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printResults(w io.Writer, results []*fit.Result) error {
	for _, res := range results {
		if res == nil {
			continue
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "chain %d %s log_density=%.6g iterations=%d evaluations=%d",
			res.Chain, res.Status, res.LogDensity, res.Iterations, res.Evaluations)
		for i, name := range res.Names {
			if i < len(res.X) {
				fmt.Fprintf(&sb, " %s=%.6g", name, res.X[i])
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
