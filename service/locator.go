package service

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// SubjectLocator 定位图片中的主体区域，坐标相对图片左上角
type SubjectLocator interface {
	LocateSubject(img image.Image) (image.Rectangle, error)
}

// SmartcropLocator 基于显著性分析选择 7:9 的最佳区域
type SmartcropLocator struct {
	analyzer smartcrop.Analyzer
}

func NewSmartcropLocator() *SmartcropLocator {
	return &SmartcropLocator{
		analyzer: smartcrop.NewAnalyzer(&resizer{resampler: imaging.Lanczos}),
	}
}

func (l *SmartcropLocator) LocateSubject(img image.Image) (image.Rectangle, error) {
	bounds := img.Bounds()
	if baseUnits(bounds.Dx(), bounds.Dy()) < 1 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, bounds.Dx(), bounds.Dy())
	}

	best, err := l.analyzer.FindBestCrop(img, AspectWidth, AspectHeight)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("finding best crop: %w", err)
	}
	return best, nil
}

type resizer struct {
	resampler imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.resampler)
}
