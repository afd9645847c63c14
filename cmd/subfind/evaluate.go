package main

import (
	"fmt"

	"recipe-substitutes/internal/core/evaluation"
	"recipe-substitutes/internal/core/pipeline"

	"github.com/spf13/cobra"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var mode, pairsPath, outputPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compute the mean reciprocal rank of known substitution pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.cfg.Evaluation.Mode
			}
			if pairsPath == "" {
				pairsPath = a.cfg.Evaluation.PairsPath
			}
			if outputPath == "" {
				outputPath = a.cfg.Evaluation.OutputPath
			}

			m, err := evaluation.ParseMode(mode)
			if err != nil {
				return err
			}
			pairs, err := evaluation.LoadPairs(pairsPath)
			if err != nil {
				return err
			}
			r, _, err := pipeline.LoadRanker(a.cfg.Snapshot.Path, a.cfg.Ranking.CacheSize)
			if err != nil {
				return err
			}

			report, err := evaluation.NewEvaluator(r, m).Evaluate(pairs)
			if err != nil {
				return err
			}
			if err := evaluation.WriteReport(outputPath, report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evaluated %d pairs (%s): MRR %.6g, report written to %s\n",
				len(report.Scores), m, report.MRR, outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "avg or min (default evaluation.mode)")
	cmd.Flags().StringVar(&pairsPath, "pairs", "", "annotation or pairs file (default evaluation.pairs_path)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "report file (default evaluation.output_path)")
	return cmd
}
