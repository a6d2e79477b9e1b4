package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TIANLI0/StrokeCut/config"
	"github.com/TIANLI0/StrokeCut/model"
	"github.com/TIANLI0/StrokeCut/utils"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save 缓存抠图PNG
func (s *RedisService) Save(ctx context.Context, name string, data []byte) error {
	return s.client.Set(ctx, "cutout:"+name, data, s.ttl).Err()
}

// Load 读取缓存的抠图PNG，未命中返回 nil, nil
func (s *RedisService) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, "cutout:"+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// GetCutResult 从缓存获取抠图结果
func (s *RedisService) GetCutResult(ctx context.Context, key string) (*model.CutResult, error) {
	data, err := s.client.Get(ctx, "cut:"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result model.CutResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal cut result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetCutResult 设置抠图结果到缓存
func (s *RedisService) SetCutResult(ctx context.Context, key string, result *model.CutResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, "cut:"+key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
