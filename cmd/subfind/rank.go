package main

import (
	"fmt"

	"recipe-substitutes/internal/core/pipeline"
	"recipe-substitutes/internal/core/ranking"
	"recipe-substitutes/internal/core/vocab"

	"github.com/spf13/cobra"
)

func newRankCmd(a *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "rank <ingredient> [candidate]",
		Short: "Show substitution candidates from the last snapshot",
		Long: `With one ingredient, print its top candidates. With two, print the
1-indexed rank of the candidate among the first ingredient's substitutes.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				n = a.cfg.Ranking.TopN
			}
			r, snap, err := pipeline.LoadRanker(a.cfg.Snapshot.Path, a.cfg.Ranking.CacheSize)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ingredient := vocab.Normalize(args[0])
			if len(args) == 2 {
				candidate := vocab.Normalize(args[1])
				rank, err := r.Rank(ingredient, candidate)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Rank of %s for %s is %d\n", candidate, ingredient, rank)
				return nil
			}

			cands, err := r.TopN(ingredient, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Snapshot %s (%s, %d recipes)\n", snap.Header.RunID, snap.Header.Method, snap.Header.Recipes)
			printNeighborhoods(out, []ranking.Neighborhood{{Ingredient: ingredient, Candidates: cands}})
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "top", "n", 0, "number of candidates (default ranking.top_n)")
	return cmd
}
