package service

import (
	"context"

	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
)

// BackgroundReplacer 把图片主体放到纯色背景上，返回新图片
type BackgroundReplacer interface {
	ReplaceBackground(ctx context.Context, img model.EmbeddedImage, color model.BackgroundColor) (model.EmbeddedImage, error)
}

// ReplacementCache 背景替换结果缓存，未命中时返回 nil, nil
type ReplacementCache interface {
	GetReplacement(ctx context.Context, key string) (*model.EmbeddedImage, error)
	SetReplacement(ctx context.Context, key string, img model.EmbeddedImage) error
}

// CachedReplacer 相同图片和颜色的替换结果直接从缓存返回
type CachedReplacer struct {
	inner BackgroundReplacer
	cache ReplacementCache
}

func NewCachedReplacer(inner BackgroundReplacer, cache ReplacementCache) *CachedReplacer {
	return &CachedReplacer{inner: inner, cache: cache}
}

func (r *CachedReplacer) ReplaceBackground(ctx context.Context, img model.EmbeddedImage, color model.BackgroundColor) (model.EmbeddedImage, error) {
	if r.cache == nil {
		return r.inner.ReplaceBackground(ctx, img, color)
	}

	key := utils.BytesMD5(img.Data) + ":" + color.String()

	cached, err := r.cache.GetReplacement(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.String("cache_key", key), zap.Error(err))
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", key))
		return *cached, nil
	}

	result, err := r.inner.ReplaceBackground(ctx, img, color)
	if err != nil {
		return model.EmbeddedImage{}, err
	}

	if err := r.cache.SetReplacement(ctx, key, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.String("cache_key", key), zap.Error(err))
	}
	return result, nil
}
