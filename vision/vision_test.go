package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadAndShoulders(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 1200)
	face := image.Rect(400, 300, 600, 500)

	subject := headAndShoulders(face, bounds)

	assert.True(t, face.In(subject))
	assert.Equal(t, 200, subject.Min.Y)
	assert.Equal(t, 620, subject.Max.Y)
	assert.Equal(t, 310, subject.Min.X)
	assert.Equal(t, 690, subject.Max.X)
}

func TestHeadAndShouldersClipped(t *testing.T) {
	bounds := image.Rect(0, 0, 300, 300)
	subject := headAndShoulders(image.Rect(0, 0, 200, 200), bounds)
	assert.True(t, subject.In(bounds))
	assert.Equal(t, 0, subject.Min.Y)
}

func TestCompositeOnColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(2, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 0})
	src.SetNRGBA(3, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	mask := image.NewGray(image.Rect(0, 0, 4, 1))
	mask.SetGray(0, 0, color.Gray{Y: 255})
	mask.SetGray(2, 0, color.Gray{Y: 255})

	fill := color.NRGBA{R: 0, G: 0x73, B: 0xe6, A: 255}
	out := compositeOnColor(src, mask, fill)

	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, fill, out.NRGBAAt(1, 0))
	assert.Equal(t, fill, out.NRGBAAt(2, 0))
	assert.Equal(t, fill, out.NRGBAAt(3, 0))
}

func TestBlend(t *testing.T) {
	got := blend(color.NRGBA{R: 255, G: 0, B: 100, A: 128}, color.NRGBA{R: 0, G: 255, B: 100, A: 255})
	assert.Equal(t, color.NRGBA{R: 128, G: 127, B: 100, A: 255}, got)
}
