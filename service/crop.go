package service

import (
	"fmt"
	"image"
	"math"

	"github.com/mahdichowdhury714-hub/passportkit/model"
)

// 护照照片 3.5:4.5 即 7:9
const (
	AspectWidth  = 7
	AspectHeight = 9

	MinZoom = 1.0
	MaxZoom = 3.0
)

// baseUnits 缩放为 1 时能放下的最大 7:9 区域，以 7x9 为一个单位
func baseUnits(width, height int) float64 {
	return math.Min(float64(width)/AspectWidth, float64(height)/AspectHeight)
}

// DeriveCrop 根据缩放和平移计算裁剪区域。
// 区域宽高严格为 7k x 9k，平移量会被限制在图片范围内，返回实际生效的平移。
func DeriveCrop(width, height int, zoom float64, pan model.Pan) (model.CropRegion, model.Pan, error) {
	if math.IsNaN(zoom) || zoom < MinZoom || zoom > MaxZoom {
		return model.CropRegion{}, model.Pan{}, fmt.Errorf("%w: %v", ErrInvalidZoom, zoom)
	}

	k := int(math.Floor(baseUnits(width, height)/zoom + 1e-9))
	if k < 1 {
		return model.CropRegion{}, model.Pan{}, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, width, height)
	}

	cw, ch := AspectWidth*k, AspectHeight*k
	cx, cy := (width-cw)/2, (height-ch)/2

	x := clampInt(cx+pan.X, 0, width-cw)
	y := clampInt(cy+pan.Y, 0, height-ch)

	return model.CropRegion{X: x, Y: y, Width: cw, Height: ch}, model.Pan{X: x - cx, Y: y - cy}, nil
}

// DefaultCrop 缩放为 1 且居中的裁剪区域
func DefaultCrop(width, height int) (model.CropRegion, error) {
	crop, _, err := DeriveCrop(width, height, MinZoom, model.Pan{})
	return crop, err
}

// FrameSubject 计算能完整容纳主体区域的缩放和平移，主体位于裁剪区域中心
func FrameSubject(width, height int, subject image.Rectangle) (float64, model.Pan, error) {
	base := baseUnits(width, height)
	if base < 1 {
		return 0, model.Pan{}, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, width, height)
	}

	subject = subject.Intersect(image.Rect(0, 0, width, height))
	if subject.Empty() {
		return MinZoom, model.Pan{}, nil
	}

	need := math.Ceil(math.Max(float64(subject.Dx())/AspectWidth, float64(subject.Dy())/AspectHeight))
	k := math.Max(need, math.Ceil(base/MaxZoom))
	k = math.Max(1, math.Min(k, math.Floor(base)))

	zoom := math.Min(MaxZoom, math.Max(MinZoom, base/k))

	cw, ch := AspectWidth*int(k), AspectHeight*int(k)
	centerX := (subject.Min.X + subject.Max.X) / 2
	centerY := (subject.Min.Y + subject.Max.Y) / 2

	pan := model.Pan{
		X: centerX - cw/2 - (width-cw)/2,
		Y: centerY - ch/2 - (height-ch)/2,
	}
	return zoom, pan, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
