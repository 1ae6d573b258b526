package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
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

// GetReplacement 从缓存获取背景替换结果
func (s *RedisService) GetReplacement(ctx context.Context, key string) (*model.EmbeddedImage, error) {
	data, err := s.client.Get(ctx, "replace:"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var img model.EmbeddedImage
	if err := json.Unmarshal(data, &img); err != nil {
		utils.Logger.Error("failed to unmarshal replacement",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &img, nil
}

// SetReplacement 写入背景替换结果
func (s *RedisService) SetReplacement(ctx context.Context, key string, img model.EmbeddedImage) error {
	data, err := json.Marshal(img)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, "replace:"+key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
