package service

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/mahdichowdhury714-hub/passportkit/model"
)

// transferTable 构建亮度、对比度查找表，与 CSS brightness() contrast() 滤镜一致：
// 先线性缩放亮度，再以中灰为支点缩放对比度，每一步都截断到 [0,255]
func transferTable(f model.FilterSettings) [256]uint8 {
	var lut [256]uint8
	b := float64(f.Brightness) / 100
	c := float64(f.Contrast) / 100
	for i := range lut {
		v := clamp255(float64(i) * b)
		v = clamp255((v-127.5)*c + 127.5)
		lut[i] = uint8(math.Round(v))
	}
	return lut
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// applyFilters 对非预乘颜色分量应用查找表，透明度保持不变
func applyFilters(img image.Image, f model.FilterSettings) *image.NRGBA {
	if f.IsIdentity() {
		return imaging.Clone(img)
	}
	lut := transferTable(f)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}
