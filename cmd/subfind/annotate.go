package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"recipe-substitutes/internal/core/annotation"
	"recipe-substitutes/internal/core/evaluation"
	"recipe-substitutes/internal/core/pipeline"
	"recipe-substitutes/internal/pkg/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newAnnotateCmd(a *app) *cobra.Command {
	var (
		outputPath     string
		topPairs       int
		enough         int
		fromCandidates bool
	)
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Label substitution pairs interactively",
		Long: `By default, compute recipe similarity for the configured corpus query, then
walk the most similar recipe pairs and ask whether each pair of differing
ingredients is a valid substitution. Confirmed pairs are appended to the
annotation file (annotation.output_path).

With --from-candidates, review the candidate lists stored by the last run
instead and append confirmed pairs as "a <---> b" lines to
annotation.pairs_output_path.

Rejected pairs are appended to annotation.false_pairs_path. Pairs already in
the output file or the rejected file are not asked again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				outputPath = a.cfg.Annotation.OutputPath
				if fromCandidates {
					outputPath = a.cfg.Annotation.PairsOutputPath
				}
			}
			if topPairs <= 0 {
				topPairs = a.cfg.Annotation.TopPairs
			}
			if enough <= 0 {
				enough = a.cfg.Annotation.Enough
			}

			ctx := cmd.Context()
			p, err := pipeline.New(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			ann := annotation.NewAnnotator(cmd.InOrStdin(), cmd.OutOrStdout(), enough)
			if ann.True, err = preloadKnown(outputPath); err != nil {
				return err
			}
			falsePath := a.cfg.Annotation.FalsePairsPath
			if ann.False, err = preloadKnown(falsePath); err != nil {
				return err
			}

			f, err := openAppend(outputPath)
			if err != nil {
				return err
			}
			defer f.Close()

			rejected, err := openAppend(falsePath)
			if err != nil {
				return err
			}
			defer rejected.Close()
			ann.Rejected = rejected

			var res *annotation.Result
			if fromCandidates {
				key := pipeline.StoreKey(p.Query())
				lists, err := p.Store().Load(ctx, key)
				if err != nil {
					return fmt.Errorf("load candidate lists %q (run `subfind run` first): %w", key, err)
				}
				res, err = ann.Review(lists, f)
				if err != nil {
					return err
				}
			} else {
				_, recipes, err := p.LoadCorpus(ctx)
				if err != nil {
					return err
				}
				sim, err := p.Similarity(recipes)
				if err != nil {
					return err
				}
				res, err = ann.Run(recipes, sim.Matrix, topPairs, f)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %d new pairs to %s\n", len(res.Added), outputPath)
			if len(res.Rejected) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected %d pairs, recorded in %s\n", len(res.Rejected), falsePath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default from annotation config)")
	cmd.Flags().IntVar(&topPairs, "top-pairs", 0, "number of most similar recipe pairs to walk")
	cmd.Flags().IntVar(&enough, "enough", 0, "stop asking after this many confirmed pairs")
	cmd.Flags().BoolVar(&fromCandidates, "from-candidates", false, "review the stored candidate lists instead of recipe pairs")
	return cmd
}

// preloadKnown 讀入先前標註過的替代對，避免重複詢問；檔案不存在時為空集合
func preloadKnown(path string) (common.PairSet, error) {
	pairs, err := evaluation.LoadPairs(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(common.PairSet), nil
	}
	if err != nil {
		return nil, err
	}
	known := common.NewPairSet(pairs)
	common.LogInfo("已載入既有標註", zap.String("path", path), zap.Int("pairs", len(known)))
	return known, nil
}

func openAppend(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, common.NewIOError(common.StageAnnotate, "create dir for "+path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, common.NewIOError(common.StageAnnotate, "open "+path, err)
	}
	return f, nil
}
