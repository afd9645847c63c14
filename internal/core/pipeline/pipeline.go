package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-substitutes/internal/core/cooccur"
	"recipe-substitutes/internal/core/corpus"
	"recipe-substitutes/internal/core/pmi"
	"recipe-substitutes/internal/core/ranking"
	"recipe-substitutes/internal/core/similarity"
	"recipe-substitutes/internal/core/snapshot"
	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/infrastructure/config"
	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Pipeline 一次批次執行：語料 → 相似度 → 共現 → 正規化 → 排名
type Pipeline struct {
	cfg    *config.Config
	vocab  *vocab.Vocabulary
	source corpus.Source
	store  ranking.CandidateStore

	closers []func() error
}

// Result 批次執行結果
type Result struct {
	RunID         string
	Query         corpus.Query
	Recipes       []common.Recipe
	Similarity    *similarity.Result
	Cooccurrence  *mat.Dense
	Association   *mat.Dense
	Ranker        *ranking.Ranker
	Neighborhoods []ranking.Neighborhood
	Snapshot      *snapshot.Snapshot
}

// New 依設定載入詞彙表並建立語料來源與候選清單儲存
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	start := beginStage(common.StageVocabulary)
	v, err := vocab.Load(cfg.Corpus.VocabularyPath)
	common.LogStage(common.StageVocabulary, time.Since(start), err, zap.String("path", cfg.Corpus.VocabularyPath))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, vocab: v}

	source, closeSource, err := OpenSource(cfg, v)
	if err != nil {
		return nil, err
	}
	p.source = source
	if closeSource != nil {
		p.closers = append(p.closers, closeSource)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.store = store
	p.closers = append(p.closers, store.Close)

	return p, nil
}

// NewWith 以既有元件組成管線
func NewWith(cfg *config.Config, v *vocab.Vocabulary, source corpus.Source, store ranking.CandidateStore) *Pipeline {
	return &Pipeline{cfg: cfg, vocab: v, source: source, store: store}
}

// OpenSource 依 corpus.source 建立語料來源；回傳的 close 可能為 nil
func OpenSource(cfg *config.Config, v *vocab.Vocabulary) (corpus.Source, func() error, error) {
	switch cfg.Corpus.Source {
	case "file":
		return &corpus.FileSource{Path: cfg.Corpus.RecipesPath, Vocab: v}, nil, nil
	case "bleve":
		ix, err := corpus.OpenIndex(cfg.Corpus.IndexPath, v)
		if err != nil {
			return nil, nil, err
		}
		return ix, ix.Close, nil
	case "elasticsearch":
		return corpus.NewElasticSource(cfg.Search.URL, cfg.Search.Index, cfg.Search.Timeout, v), nil, nil
	}
	return nil, nil, common.NewInvalidInputError(common.StageCorpus, fmt.Sprintf("unknown corpus source %q", cfg.Corpus.Source))
}

// OpenStore 依 store.backend 建立候選清單儲存
func OpenStore(ctx context.Context, cfg *config.Config) (ranking.CandidateStore, error) {
	switch cfg.Store.Backend {
	case "file":
		return ranking.NewFileStore(cfg.Store.Path), nil
	case "redis":
		return ranking.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.TTL)
	}
	return nil, common.NewInvalidInputError(common.StageRanking, fmt.Sprintf("unknown store backend %q", cfg.Store.Backend))
}

// Vocabulary 詞彙表
func (p *Pipeline) Vocabulary() *vocab.Vocabulary {
	return p.vocab
}

// Store 候選清單儲存
func (p *Pipeline) Store() ranking.CandidateStore {
	return p.store
}

// Close 釋放來源與儲存
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Query 設定的語料查詢
func (p *Pipeline) Query() corpus.Query {
	return corpus.ParseQuery(p.cfg.Corpus.Query)
}

// LoadCorpus 依設定查詢語料，並補上缺少的指示向量
func (p *Pipeline) LoadCorpus(ctx context.Context) (corpus.Query, []common.Recipe, error) {
	q := p.Query()

	start := beginStage(common.StageCorpus)
	recipes, err := p.source.Recipes(ctx, q, p.cfg.Corpus.Size)
	if err == nil {
		corpus.AttachIndicators(recipes, p.vocab)
	}
	common.LogStage(common.StageCorpus, time.Since(start), err,
		zap.String("source", p.cfg.Corpus.Source),
		zap.String("query", q.Name),
		zap.Int("recipes", len(recipes)),
	)
	if err != nil {
		return q, nil, err
	}
	return q, recipes, nil
}

// Similarity 以設定的方式計算相似度矩陣
func (p *Pipeline) Similarity(recipes []common.Recipe) (*similarity.Result, error) {
	method, err := similarity.ParseMethod(p.cfg.Similarity.Method)
	if err != nil {
		return nil, err
	}
	start := beginStage(common.StageSimilarity)
	res, err := similarity.NewEngine(method).Compute(recipes)
	common.LogStage(common.StageSimilarity, time.Since(start), err,
		zap.String("method", string(method)),
		zap.Int("recipes", len(recipes)),
	)
	return res, err
}

// Run 執行完整批次並儲存候選清單與快照
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := common.GenerateUUID()
	runStart := time.Now()
	common.LogInfo(common.MsgRunStarted,
		zap.String("run_id", runID),
		zap.String("method", p.cfg.Similarity.Method),
		zap.Int("workers", p.cfg.Accumulator.Workers),
	)

	res := &Result{RunID: runID}
	var err error

	res.Query, res.Recipes, err = p.LoadCorpus(ctx)
	if err != nil {
		return nil, err
	}

	res.Similarity, err = p.Similarity(res.Recipes)
	if err != nil {
		return nil, err
	}

	start := beginStage(common.StageAccumulate)
	acc := cooccur.NewAccumulator(p.vocab, p.cfg.Accumulator.Workers)
	res.Cooccurrence, err = acc.Accumulate(ctx, res.Recipes, res.Similarity.Matrix)
	common.LogStage(common.StageAccumulate, time.Since(start), err,
		zap.Int("recipes", len(res.Recipes)),
		zap.Int("vocabulary", p.vocab.Len()),
		zap.Int("workers", p.cfg.Accumulator.Workers),
	)
	if err != nil {
		return nil, err
	}

	start = beginStage(common.StageNormalize)
	res.Association, err = pmi.Normalize(res.Cooccurrence)
	common.LogStage(common.StageNormalize, time.Since(start), err, zap.Int("vocabulary", p.vocab.Len()))
	if err != nil {
		return nil, err
	}
	common.LogDebug("關聯分數最高的食材對", zap.Strings("pairs", cooccur.TopPairs(res.Association, p.vocab, 50)))

	start = beginStage(common.StageRanking)
	res.Ranker, res.Neighborhoods, err = p.rank(res.Association, res.Recipes)
	common.LogStage(common.StageRanking, time.Since(start), err, zap.Int("lists", len(res.Neighborhoods)))
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		if err := p.store.Save(ctx, StoreKey(res.Query), res.Neighborhoods); err != nil {
			return nil, fmt.Errorf("save candidate lists: %w", err)
		}
	}

	res.Snapshot = &snapshot.Snapshot{
		Header: snapshot.Header{
			RunID:      runID,
			Method:     p.cfg.Similarity.Method,
			CreatedAt:  time.Now().UTC(),
			Recipes:    len(res.Recipes),
			Vocabulary: p.vocab.Terms(),
		},
		Association: res.Association,
	}
	if p.cfg.Snapshot.Path != "" {
		start = beginStage(common.StageSnapshot)
		err = snapshot.Save(p.cfg.Snapshot.Path, res.Snapshot)
		common.LogStage(common.StageSnapshot, time.Since(start), err, zap.String("path", p.cfg.Snapshot.Path))
		if err != nil {
			return nil, err
		}
	}

	common.LogInfo(common.MsgRunFinished,
		zap.String("run_id", runID),
		zap.Duration("耗時", time.Since(runStart)),
	)
	return res, nil
}

func (p *Pipeline) rank(assoc *mat.Dense, recipes []common.Recipe) (*ranking.Ranker, []ranking.Neighborhood, error) {
	cache, err := ranking.NewRankCache(p.cfg.Ranking.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	r, err := ranking.NewRanker(assoc, p.vocab, cache)
	if err != nil {
		return nil, nil, err
	}

	var lists []ranking.Neighborhood
	if len(p.cfg.Ranking.Custom) > 0 {
		terms := make([]string, len(p.cfg.Ranking.Custom))
		for i, t := range p.cfg.Ranking.Custom {
			terms[i] = vocab.Normalize(t)
		}
		lists, err = r.Neighborhoods(terms, p.cfg.Ranking.TopN)
	} else {
		lists, err = r.CommonNeighborhoods(recipes, p.cfg.Ranking.Common, p.cfg.Ranking.TopN)
	}
	if err != nil {
		return nil, nil, err
	}
	return r, lists, nil
}

func beginStage(stage string) time.Time {
	common.LogInfo(common.MsgStageStarted, zap.String("stage", stage))
	return time.Now()
}

// StoreKey 候選清單的儲存鍵
func StoreKey(q corpus.Query) string {
	if q.Name == "" {
		return "all"
	}
	return q.Name
}

// LoadRanker 從快照建立排名器
func LoadRanker(path string, cacheSize int) (*ranking.Ranker, *snapshot.Snapshot, error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return nil, nil, err
	}
	cache, err := ranking.NewRankCache(cacheSize)
	if err != nil {
		return nil, nil, err
	}
	r, err := ranking.NewRanker(snap.Association, snap.Vocab(), cache)
	if err != nil {
		return nil, nil, err
	}
	return r, snap, nil
}
