package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"recipe-substitutes/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// CandidateStore 候選清單儲存，供標註工具讀取
type CandidateStore interface {
	Save(ctx context.Context, key string, lists []Neighborhood) error
	Load(ctx context.Context, key string) ([]Neighborhood, error)
	Close() error
}

// ErrNotFound 找不到候選清單
var ErrNotFound = errors.New("candidate list not found")

// FileStore 以 JSON 檔儲存候選清單
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore 創建檔案儲存
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) read() (map[string][]Neighborhood, error) {
	all := make(map[string][]Neighborhood)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, common.NewIOError(common.StageRanking, "read "+s.path, err)
	}
	if err := common.ParseJSONBytes(data, &all); err != nil {
		return nil, common.NewIOError(common.StageRanking, "parse "+s.path, err)
	}
	return all, nil
}

// Save 儲存候選清單
func (s *FileStore) Save(ctx context.Context, key string, lists []Neighborhood) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	all[key] = lists

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return common.NewIOError(common.StageRanking, "create dir for "+s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return common.NewIOError(common.StageRanking, "write "+s.path, err)
	}
	return nil
}

// Load 讀取候選清單
func (s *FileStore) Load(ctx context.Context, key string) ([]Neighborhood, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	lists, ok := all[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return lists, nil
}

// Close 無需釋放資源
func (s *FileStore) Close() error {
	return nil
}

// RedisStore 以 Redis 儲存候選清單
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 創建 Redis 儲存並測試連線
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Save 儲存候選清單
func (s *RedisStore) Save(ctx context.Context, key string, lists []Neighborhood) error {
	data, err := json.Marshal(lists)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set candidates: %w", err)
	}
	return nil
}

// Load 讀取候選清單
func (s *RedisStore) Load(ctx context.Context, key string) ([]Neighborhood, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get candidates: %w", err)
	}

	var lists []Neighborhood
	if err := json.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidates: %w", err)
	}
	return lists, nil
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// redisKey 生成儲存鍵
func redisKey(key string) string {
	return fmt.Sprintf("subfind:candidates:%s", key)
}
