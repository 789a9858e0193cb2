package service

import (
	"context"
	"time"

	"github.com/between2058/Phidias/config"
	"github.com/redis/go-redis/v9"
)

// RedisService 生成结果缓存，key 为请求内容 MD5
// Redis 不可用时缓存整体停用，生成功能不受影响
type RedisService struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
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
	err := s.client.Ping(ctx).Err()
	s.enabled = err == nil
	return err
}

// GetGLB 从缓存获取生成结果，未命中返回 nil
func (s *RedisService) GetGLB(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, nil
	}
	data, err := s.client.Get(ctx, "glb:"+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}
	return data, nil
}

// SetGLB 写入生成结果缓存
func (s *RedisService) SetGLB(ctx context.Context, key string, data []byte) error {
	if !s.enabled {
		return nil
	}
	return s.client.Set(ctx, "glb:"+key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
