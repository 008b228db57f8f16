package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/nulzo/atlas-api/internal/store"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is shared by every backend.
var ErrNotFound = store.ErrNotFound

// Store persists raw setting values by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}

// NewSQLStore keeps settings in the local sqlite database.
func NewSQLStore(repo store.Repository) Store {
	return repo.Settings()
}

type redisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore keeps settings in a single Redis hash so every replica sees
// the same values.
func NewRedisStore(rdb *redis.Client, key string) Store {
	return &redisStore{rdb: rdb, key: key}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.HSet(ctx, s.key, key, value).Err()
}

func (s *redisStore) All(ctx context.Context) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, s.key).Result()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.HDel(ctx, s.key, key).Err()
}

type fileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore keeps settings in a YAML document. Writes replace the file
// atomically.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", s.path, err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (s *fileStore) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *fileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *fileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = value
	return s.write(values)
}

func (s *fileStore) All(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}
	return maps.Clone(values), nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.write(values)
}
