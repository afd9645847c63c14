package main

import (
	"fmt"

	"recipe-substitutes/internal/infrastructure/config"
	"recipe-substitutes/internal/pkg/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app 各子命令共用的設定
type app struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "subfind",
		Short: "Mine ingredient substitutes from recipe similarity",
		Long: `subfind finds ingredient substitutes in a recipe corpus.

Similar recipes that differ in a few ingredients are evidence that those
ingredients can replace each other. subfind accumulates that evidence over a
corpus, normalizes it and ranks substitution candidates.

Examples:
  subfind ingest                     # build the local search index
  subfind run                        # compute and snapshot the association matrix
  subfind rank butter                # top candidates for butter
  subfind rank butter margarine      # rank of margarine among butter's candidates
  subfind evaluate --mode min        # MRR over annotated pairs
  subfind annotate                   # label substitution pairs interactively`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			common.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./subfind.yaml)")

	root.AddCommand(
		newIngestCmd(a),
		newRunCmd(a),
		newRankCmd(a),
		newEvaluateCmd(a),
		newAnnotateCmd(a),
	)
	return root
}

// load 載入設定並初始化 logger
func (a *app) load() error {
	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := common.InitLogger(cfg.LogLevel, cfg.LogMode, cfg.LogDir); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg

	common.LogDebug("載入設定",
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("source", cfg.Corpus.Source),
		zap.String("method", cfg.Similarity.Method),
	)
	return nil
}
