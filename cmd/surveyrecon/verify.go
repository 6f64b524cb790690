package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/surveyrecon/internal/recipe"
	"github.com/dshills/surveyrecon/internal/render"
	"github.com/dshills/surveyrecon/internal/store"
	"github.com/dshills/surveyrecon/internal/survey"
	"github.com/dshills/surveyrecon/internal/verify"
)

// Baselines accepted by --against besides a snapshot ID.
const (
	againstSummary = "summary"
	againstLatest  = "latest"
)

func (a *app) verifyCmd() *cobra.Command {
	var (
		recipePath   string
		format       string
		out          string
		failOn       string
		against      string
		strict       bool
		ignoreCounts bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare a built report with the published summary or a saved snapshot",
		Long: `Builds the report described by the recipe and compares it question by
question with a baseline: the recipe's summary (default), the latest saved
snapshot for the recipe's year, or a snapshot ID.

Exits 2 when --fail-on is set and the verdict is at least that severe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			var threshold verify.Verdict
			if failOn != "" {
				var err error
				if threshold, err = verify.ParseVerdict(failOn); err != nil {
					return fmt.Errorf("--fail-on: %w", err)
				}
			}

			rn, err := a.build(recipePath)
			if err != nil {
				return err
			}
			baseline, err := a.baseline(cmd.Context(), rn, against)
			if err != nil {
				return err
			}
			res, err := verify.Compare(rn.report, baseline, verify.Options{IgnoreCounts: ignoreCounts, Strict: strict})
			if err != nil {
				return err
			}
			a.log.Info("verification complete",
				zap.String("against", against),
				zap.String("verdict", string(res.Summary.Verdict)),
				zap.Int("score", res.Summary.Score))

			var output []byte
			if format == "json" {
				output, err = render.RenderVerifyJSON(&res)
				if err != nil {
					return err
				}
				output = append(output, '\n')
			} else {
				output = []byte(render.RenderVerifyMarkdown(&res))
			}
			if err := writeOutput(cmd.OutOrStdout(), out, output); err != nil {
				return err
			}

			if threshold != "" && verify.VerdictOrdinal(res.Summary.Verdict) >= verify.VerdictOrdinal(threshold) {
				return &exitError{code: 2, err: fmt.Errorf("verdict %s meets --fail-on %s", res.Summary.Verdict, threshold)}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "recipe file (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: json or markdown")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to a file instead of stdout")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit 2 at this verdict or worse: ALIGNED, PARTIALLY_ALIGNED, DRIFT_DETECTED")
	cmd.Flags().StringVar(&against, "against", againstSummary, "baseline: summary, latest, or a snapshot ID")
	cmd.Flags().BoolVar(&strict, "strict", false, "raise every finding's severity one level")
	cmd.Flags().BoolVar(&ignoreCounts, "ignore-counts", false, "compare labels only")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func (a *app) baseline(ctx context.Context, rn run, against string) (survey.Report, error) {
	if against == againstSummary {
		summary, ok := rn.fa.Summary()
		if !ok {
			return survey.Report{}, fmt.Errorf("--against summary: recipe has no summary")
		}
		return summary, nil
	}
	r := rn.recipe
	if r.Store == "" {
		return survey.Report{}, fmt.Errorf("--against %s: recipe has no store (set store or %s)", against, recipe.EnvStore)
	}
	s, err := store.Open(ctx, r.Store, a.log)
	if err != nil {
		return survey.Report{}, err
	}
	defer s.Close()

	var snap store.Snapshot
	if against == againstLatest {
		snap, err = s.Latest(ctx, rn.report.Year)
	} else {
		snap, err = s.Get(ctx, against)
	}
	if err != nil {
		return survey.Report{}, fmt.Errorf("--against %s: %w", against, err)
	}
	a.log.Debug("comparing against snapshot", zap.String("id", snap.ID), zap.Time("created_at", snap.CreatedAt))
	return snap.Report, nil
}
