package main

import (
	"fmt"
	"io"

	"recipe-substitutes/internal/core/pipeline"
	"recipe-substitutes/internal/core/ranking"
	"recipe-substitutes/internal/pkg/common"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		query   string
		size    int
		method  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the association matrix and candidate lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("query") {
				a.cfg.Corpus.Query = query
			}
			if size > 0 {
				a.cfg.Corpus.Size = size
			}
			if method != "" {
				a.cfg.Similarity.Method = method
			}
			if workers > 0 {
				a.cfg.Accumulator.Workers = workers
			}

			ctx := cmd.Context()
			p, err := pipeline.New(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %d recipes, %d ingredients\n", common.ShortRunID(res.RunID), len(res.Recipes), p.Vocabulary().Len())
			printNeighborhoods(out, res.Neighborhoods)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "pasta, fish, pizza, burger, cake, salad, random or a query string")
	cmd.Flags().IntVarP(&size, "size", "n", 0, "number of recipes to fetch")
	cmd.Flags().StringVarP(&method, "method", "m", "", "intersection, ratio, cosine or tfidf")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel accumulation workers")
	return cmd
}

func printNeighborhoods(w io.Writer, lists []ranking.Neighborhood) {
	for _, n := range lists {
		if n.Count > 0 {
			fmt.Fprintf(w, "\n%s (%d recipes)\n", n.Ingredient, n.Count)
		} else {
			fmt.Fprintf(w, "\n%s\n", n.Ingredient)
		}
		for i, c := range n.Candidates {
			fmt.Fprintf(w, "%3d. %-30s %.6g\n", i+1, c.Ingredient, c.Score)
		}
	}
}
