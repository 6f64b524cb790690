package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/surveyrecon/internal/recipe"
	"github.com/dshills/surveyrecon/internal/reconcile"
	"github.com/dshills/surveyrecon/internal/render"
	"github.com/dshills/surveyrecon/internal/store"
	"github.com/dshills/surveyrecon/internal/survey"
)

// exitError carries a process exit code other than the default 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newApp().rootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// app holds state shared by every subcommand.
type app struct {
	verbose bool
	log     *zap.Logger
}

func newApp() *app { return &app{} }

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "surveyrecon",
		Short:         "Rebuild survey reports from raw exports and reconcile them with published summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.log != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			a.log, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log reconciliation decisions at debug level")

	root.AddCommand(a.buildCmd(), a.verifyCmd(), a.historyCmd())
	return root
}

func (a *app) buildCmd() *cobra.Command {
	var (
		recipePath string
		format     string
		out        string
		save       bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a survey report from the recipe's export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			rn, err := a.build(recipePath)
			if err != nil {
				return err
			}

			var output []byte
			if format == "json" {
				output, err = render.RenderJSON(&rn.report)
				if err != nil {
					return err
				}
				output = append(output, '\n')
			} else {
				output = []byte(render.RenderMarkdown(&rn.report))
			}
			if err := writeOutput(cmd.OutOrStdout(), out, output); err != nil {
				return err
			}

			if !save {
				return nil
			}
			return a.save(cmd.Context(), rn.recipe, rn.report)
		},
	}
	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "recipe file (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: json or markdown")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to a file instead of stdout")
	cmd.Flags().BoolVar(&save, "save", false, "save the report to the recipe's snapshot store")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

// run is a built report with the inputs it came from.
type run struct {
	recipe *recipe.Recipe
	fa     *reconcile.FullAnswers
	report survey.Report
}

// build loads the recipe at path and builds its report.
func (a *app) build(path string) (run, error) {
	r, err := recipe.Load(path)
	if err != nil {
		return run{}, err
	}
	fa, err := r.Open(a.log)
	if err != nil {
		return run{}, err
	}
	report, err := r.Build(fa, a.log)
	if err != nil {
		return run{}, err
	}
	return run{recipe: r, fa: fa, report: report}, nil
}

func (a *app) save(ctx context.Context, r *recipe.Recipe, report survey.Report) error {
	if r.Store == "" {
		return fmt.Errorf("--save: recipe has no store (set store or %s)", recipe.EnvStore)
	}
	s, err := store.Open(ctx, r.Store, a.log)
	if err != nil {
		return err
	}
	defer s.Close()
	_, err = s.Save(ctx, report)
	return err
}

func checkFormat(format string) error {
	switch format {
	case "json", "markdown":
		return nil
	}
	return fmt.Errorf("unknown format %q (available: json, markdown)", format)
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
