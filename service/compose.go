package service

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
)

// Composer 负责生成固定尺寸的证件照
type Composer struct {
	width   int
	height  int
	quality int
}

func NewComposer(cfg *config.PhotoConfig) *Composer {
	return &Composer{
		width:   cfg.Width,
		height:  cfg.Height,
		quality: cfg.Quality,
	}
}

func (c *Composer) Size() (int, int) {
	return c.width, c.height
}

// ComposeBytes 解码图片字节后合成
func (c *Composer) ComposeBytes(data []byte, crop model.CropRegion, bg model.BackgroundColor, filters model.FilterSettings) ([]byte, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return c.Compose(img, crop, bg, filters)
}

// Compose 先用背景色填满画布，再把裁剪区域缩放铺满画布并应用滤镜后叠加，最后编码为 JPEG。
// 背景填充不受滤镜影响。
func (c *Composer) Compose(src image.Image, crop model.CropRegion, bg model.BackgroundColor, filters model.FilterSettings) ([]byte, error) {
	if c.width <= 0 || c.height <= 0 || c.quality < 1 || c.quality > 100 {
		return nil, fmt.Errorf("%w: %dx%d at quality %d", ErrCanvas, c.width, c.height, c.quality)
	}

	fill, err := bg.NRGBA()
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	rect := crop.Rect().Add(bounds.Min)
	if crop.X < 0 || crop.Y < 0 || crop.Width <= 0 || crop.Height <= 0 || !rect.In(bounds) {
		return nil, fmt.Errorf("%w: %+v within %dx%d", ErrCropOutOfBounds, crop, bounds.Dx(), bounds.Dy())
	}

	canvas := imaging.New(c.width, c.height, fill)

	region := imaging.Crop(src, rect)
	scaled := imaging.Resize(region, c.width, c.height, imaging.Linear)
	filtered := applyFilters(scaled, filters)

	out := imaging.Overlay(canvas, filtered, image.Pt(0, 0), 1.0)

	data, err := encodeJPEG(out, c.quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanvas, err)
	}
	return data, nil
}
