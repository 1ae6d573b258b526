package service

import (
	"image"

	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mahdichowdhury714-hub/passportkit/model"
)

// DominantBackdrop 统计画面上部五分之一的主色，证件照中这部分通常是背景
func DominantBackdrop(img image.Image) model.BackgroundColor {
	b := img.Bounds()
	band := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+max(1, b.Dy()/5)))

	c, ok := colorful.MakeColor(dominantcolor.Find(band))
	if !ok {
		return ""
	}
	return model.BackgroundColor(c.Clamped().Hex())
}
