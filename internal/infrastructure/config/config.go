package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Corpus      CorpusConfig      `mapstructure:"corpus"`
	Search      SearchConfig      `mapstructure:"search"`
	Similarity  SimilarityConfig  `mapstructure:"similarity"`
	Accumulator AccumulatorConfig `mapstructure:"accumulator"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Evaluation  EvaluationConfig  `mapstructure:"evaluation"`
	Annotation  AnnotationConfig  `mapstructure:"annotation"`
	Store       StoreConfig       `mapstructure:"store"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	LogLevel    string            `mapstructure:"log_level"`
	LogMode     string            `mapstructure:"log_mode"`
	LogDir      string            `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// CorpusConfig 語料來源設定
type CorpusConfig struct {
	RecipesPath    string `mapstructure:"recipes_path"`
	VocabularyPath string `mapstructure:"vocabulary_path"`
	Source         string `mapstructure:"source"`
	IndexPath      string `mapstructure:"index_path"`
	Query          string `mapstructure:"query"`
	Size           int    `mapstructure:"size"`
}

// SearchConfig 遠端搜尋索引（Elasticsearch）設定
type SearchConfig struct {
	URL     string        `mapstructure:"url"`
	Index   string        `mapstructure:"index"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SimilarityConfig 食譜相似度設定
type SimilarityConfig struct {
	Method string `mapstructure:"method"`
}

// AccumulatorConfig 平行累加設定
type AccumulatorConfig struct {
	Workers int `mapstructure:"workers"`
}

// RankingConfig 排名設定
type RankingConfig struct {
	TopN      int      `mapstructure:"top_n"`
	CacheSize int      `mapstructure:"cache_size"`
	Common    int      `mapstructure:"common"`
	Custom    []string `mapstructure:"custom"`
}

// EvaluationConfig 評估設定
type EvaluationConfig struct {
	Mode       string `mapstructure:"mode"`
	PairsPath  string `mapstructure:"pairs_path"`
	OutputPath string `mapstructure:"output_path"`
}

// AnnotationConfig 標註設定
type AnnotationConfig struct {
	OutputPath      string `mapstructure:"output_path"`
	PairsOutputPath string `mapstructure:"pairs_output_path"`
	FalsePairsPath  string `mapstructure:"false_pairs_path"`
	TopPairs        int    `mapstructure:"top_pairs"`
	Enough          int    `mapstructure:"enough"`
}

// StoreConfig 候選清單儲存設定
type StoreConfig struct {
	Backend   string        `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// SnapshotConfig 矩陣快照設定
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

var (
	validSources = map[string]bool{"file": true, "bleve": true, "elasticsearch": true}
	validMethods = map[string]bool{"intersection": true, "ratio": true, "cosine": true, "tfidf": true}
	validModes   = map[string]bool{"avg": true, "min": true}
	validStores  = map[string]bool{"file": true, "redis": true}
)

// LoadConfig 載入設定；configFile 為空時只讀取 .env、subfind.yaml 與環境變數
func LoadConfig(configFile string) (*Config, error) {
	// .env 不存在時略過
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SUBFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("log_mode", "LOG_MODE")
	v.BindEnv("store.redis_addr", "REDIS_ADDR")
	v.BindEnv("search.url", "ELASTICSEARCH_URL")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("subfind")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "subfind")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_mode", "")
	v.SetDefault("log_dir", "logs")

	v.SetDefault("corpus.recipes_path", "raw_data/recipes.json")
	v.SetDefault("corpus.vocabulary_path", "raw_data/dbpedia_ingredients.txt")
	v.SetDefault("corpus.source", "file")
	v.SetDefault("corpus.index_path", "data/recipes.bleve")
	v.SetDefault("corpus.query", "")
	v.SetDefault("corpus.size", 100)

	v.SetDefault("search.url", "http://127.0.0.1:9200")
	v.SetDefault("search.index", "reduced_all_recipes")
	v.SetDefault("search.timeout", "100s")

	v.SetDefault("similarity.method", "tfidf")

	v.SetDefault("accumulator.workers", 10)

	v.SetDefault("ranking.top_n", 20)
	v.SetDefault("ranking.cache_size", 1024)
	v.SetDefault("ranking.common", 10)
	v.SetDefault("ranking.custom", []string{})

	v.SetDefault("evaluation.mode", "avg")
	v.SetDefault("evaluation.pairs_path", "results/annotations.txt")
	v.SetDefault("evaluation.output_path", "results/evaluation.txt")

	v.SetDefault("annotation.output_path", "results/annotations.txt")
	v.SetDefault("annotation.pairs_output_path", "results/true_pairs.txt")
	v.SetDefault("annotation.false_pairs_path", "results/false_pairs.txt")
	v.SetDefault("annotation.top_pairs", 50)
	v.SetDefault("annotation.enough", 20)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "results/candidates.json")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.ttl", "24h")

	v.SetDefault("snapshot.path", "data/association.snap")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	config.Similarity.Method = strings.ToLower(config.Similarity.Method)
	config.Evaluation.Mode = strings.ToLower(config.Evaluation.Mode)
	config.Corpus.Source = strings.ToLower(config.Corpus.Source)
	config.Store.Backend = strings.ToLower(config.Store.Backend)

	if !validSources[config.Corpus.Source] {
		return fmt.Errorf("unknown corpus source %q", config.Corpus.Source)
	}
	if config.Corpus.Size <= 0 || config.Corpus.Size > 10000 {
		return fmt.Errorf("corpus size must be in [1, 10000], got %d", config.Corpus.Size)
	}
	if !validMethods[config.Similarity.Method] {
		return fmt.Errorf("unknown similarity method %q", config.Similarity.Method)
	}
	if config.Accumulator.Workers <= 0 {
		return fmt.Errorf("invalid accumulator workers")
	}
	if config.Ranking.TopN <= 0 {
		return fmt.Errorf("invalid ranking top_n")
	}
	if config.Ranking.CacheSize <= 0 {
		return fmt.Errorf("invalid ranking cache size")
	}
	if !validModes[config.Evaluation.Mode] {
		return fmt.Errorf("unknown evaluation mode %q", config.Evaluation.Mode)
	}
	if config.Annotation.Enough <= 0 || config.Annotation.TopPairs <= 0 {
		return fmt.Errorf("invalid annotation limits")
	}
	if !validStores[config.Store.Backend] {
		return fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
	if config.Store.Backend == "redis" && config.Store.RedisAddr == "" {
		return fmt.Errorf("redis store requires redis_addr")
	}

	return nil
}
