package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/checkpoint"
	"github.com/born-ml/gradbridge/internal/fit"
	"github.com/born-ml/gradbridge/internal/models"
	"github.com/born-ml/gradbridge/internal/nn"
	"github.com/born-ml/gradbridge/internal/tensor"
)

func (a *app) evalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the model once and print its value and gradients",
		Long: `Evaluate binds the configured model and data into a bridge op, evaluates it
at the flat parameter vector given by --at (all zeros when omitted) and prints
the scalar output followed by the gradient of every parameter.`,
		Example: `  gradbridge eval --at 0,0
  gradbridge eval --model polynomial --degree 2 --at 1,0,1`,
		Args: cobra.NoArgs,
		RunE: a.runEval,
	}
	a.dataFlags(cmd)
	cmd.Flags().Float64Slice("at", nil, "flat parameter vector")
	cmd.Flags().String("load", "", "read parameter values from a SafeTensors file written by fit --save")
	cmd.MarkFlagsMutuallyExclusive("at", "load")
	return cmd
}

func (a *app) runEval(cmd *cobra.Command, _ []string) error {
	at, err := cmd.Flags().GetFloat64Slice("at")
	if err != nil {
		return err
	}

	backend := autodiff.New(cpu.New())
	model, err := models.New(a.cfg.Model.Name, a.cfg.Model.Degree, backend)
	if err != nil {
		return err
	}
	aux, err := models.RegressionData(a.cfg.Data.X, a.cfg.Data.Y, backend)
	if err != nil {
		return err
	}
	op, err := bridge.New[fit.Backend](backend, model, model.Parameters(), aux,
		bridge.WithName(a.cfg.Model.Name),
		bridge.WithLogger(a.logger))
	if err != nil {
		return err
	}

	var values [][]float64
	if path, _ := cmd.Flags().GetString("load"); path != "" {
		values, err = loadValues(path, op.Params())
	} else {
		values, err = splitFlat(at, op.Params())
	}
	if err != nil {
		return err
	}
	ev, err := op.Evaluate(values)
	if err != nil {
		return err
	}
	return printEvaluation(cmd.OutOrStdout(), op.Params(), ev)
}

// splitFlat cuts a flat vector into one slice per parameter. An empty vector
// means all zeros.
func splitFlat[B tensor.Backend](flat []float64, params []*nn.Parameter[B]) ([][]float64, error) {
	total := 0
	for _, p := range params {
		total += p.Shape().NumElements()
	}
	if len(flat) == 0 {
		flat = make([]float64, total)
	}
	if len(flat) != total {
		return nil, fmt.Errorf("%w: --at has %d values, model has %d", bridge.ErrArityMismatch, len(flat), total)
	}

	out := make([][]float64, len(params))
	off := 0
	for i, p := range params {
		n := p.Shape().NumElements()
		out[i] = flat[off : off+n]
		off += n
	}
	return out, nil
}

// loadValues reads one slice per parameter from a checkpoint, matching by name.
func loadValues[B tensor.Backend](path string, params []*nn.Parameter[B]) ([][]float64, error) {
	f, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(params))
	for i, p := range params {
		t, ok := f.Get(p.Name())
		if !ok {
			return nil, fmt.Errorf("%w: %s has no parameter %q", bridge.ErrArityMismatch, path, p.Name())
		}
		out[i] = t.Data
	}
	return out, nil
}

func printEvaluation[B tensor.Backend](w io.Writer, params []*nn.Parameter[B], ev *bridge.Evaluation) error {
	if _, err := fmt.Fprintf(w, "value %g\n", ev.Value); err != nil {
		return err
	}
	for i, p := range params {
		g := ev.Grads[i]
		var err error
		if len(g) == 1 {
			_, err = fmt.Fprintf(w, "grad %s %g\n", p.Name(), g[0])
		} else {
			_, err = fmt.Fprintf(w, "grad %s %v\n", p.Name(), g)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
