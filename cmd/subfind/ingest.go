package main

import (
	"fmt"
	"os"
	"time"

	"recipe-substitutes/internal/core/corpus"
	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		target  string
		reduced bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the Recipe1M corpus into a search index",
		Long: `Read corpus.recipes_path (a file or a directory of fragments), normalize
ingredients against the vocabulary and write the recipes to the local bleve
index (corpus.index_path) or to Elasticsearch (search.url / search.index).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = a.cfg.Corpus.Source
				if target == "file" {
					target = "bleve"
				}
			}

			v, err := vocab.Load(a.cfg.Corpus.VocabularyPath)
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := loadCorpus(a.cfg.Corpus.RecipesPath, v, corpus.LoadOptions{Reduced: reduced})
			common.LogStage(common.StageCorpus, time.Since(start), err, zap.String("path", a.cfg.Corpus.RecipesPath))
			if err != nil {
				return err
			}
			if len(res.Missing) > 0 {
				common.LogInfo("未匹配的食材",
					zap.Int("distinct", len(res.Missing)),
					zap.Any("top", corpus.TopMissing(res.Missing, 20)),
				)
			}

			ctx := cmd.Context()
			switch target {
			case "bleve":
				ix, err := corpus.OpenIndex(a.cfg.Corpus.IndexPath, v)
				if err != nil {
					return err
				}
				defer ix.Close()
				if err := ix.Put(ctx, res.Recipes); err != nil {
					return err
				}
				count, err := ix.Count()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d recipes into %s (%d total)\n", len(res.Recipes), a.cfg.Corpus.IndexPath, count)
			case "elasticsearch":
				es := corpus.NewElasticSource(a.cfg.Search.URL, a.cfg.Search.Index, a.cfg.Search.Timeout, v)
				if err := es.Reindex(ctx, res.Recipes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d recipes into %s/%s\n", len(res.Recipes), a.cfg.Search.URL, a.cfg.Search.Index)
			default:
				return fmt.Errorf("unknown ingest target %q", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "bleve or elasticsearch (default from corpus.source)")
	cmd.Flags().BoolVar(&reduced, "reduced", false, "drop url and original ingredient lines")
	return cmd
}

func loadCorpus(path string, v *vocab.Vocabulary, opts corpus.LoadOptions) (*corpus.LoadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "stat "+path, err)
	}
	if info.IsDir() {
		return corpus.LoadDir(path, v, opts)
	}
	return corpus.LoadFile(path, v, opts)
}
