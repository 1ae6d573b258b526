package service

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 220, G: 20, B: 30, A: 255}

func TestComposeOutputSize(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	src := solidImage(700, 900, red)

	for _, zoom := range []float64{1, 1.37, 2, 3} {
		crop, _, err := DeriveCrop(700, 900, zoom, model.Pan{X: 40, Y: -25})
		require.NoError(t, err)

		out, err := c.Compose(src, crop, model.DefaultBackgroundColor, model.DefaultFilters())
		require.NoError(t, err)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 413, cfg.Width)
		assert.Equal(t, 531, cfg.Height)
	}
}

func TestComposeDeterministic(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	data := encodePNG(t, solidImage(140, 180, red))
	crop := model.CropRegion{X: 0, Y: 0, Width: 140, Height: 180}
	filters := model.FilterSettings{Brightness: 120, Contrast: 80}

	first, err := c.ComposeBytes(data, crop, "#0073e6", filters)
	require.NoError(t, err)
	second, err := c.ComposeBytes(data, crop, "#0073e6", filters)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComposeTransparentSourceShowsBackground(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	crop := model.CropRegion{X: 0, Y: 0, Width: 1, Height: 1}
	want := color.NRGBA{R: 0x00, G: 0x73, B: 0xe6, A: 0xff}

	for _, filters := range []model.FilterSettings{model.DefaultFilters(), {Brightness: 50, Contrast: 150}} {
		out, err := c.Compose(src, crop, "#0073e6", filters)
		require.NoError(t, err)

		img := decodeJPEG(t, out)
		b := img.Bounds()
		for _, p := range []image.Point{
			{b.Min.X, b.Min.Y},
			{b.Max.X - 1, b.Min.Y},
			{b.Min.X, b.Max.Y - 1},
			{b.Max.X - 1, b.Max.Y - 1},
			{b.Dx() / 2, b.Dy() / 2},
		} {
			assertNear(t, want, img.At(p.X, p.Y), 4)
		}
	}
}

func TestComposeDrawsCropRegion(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	blue := color.NRGBA{R: 20, G: 40, B: 210, A: 255}

	src := solidImage(140, 90, red)
	for y := 0; y < 90; y++ {
		for x := 70; x < 140; x++ {
			src.SetNRGBA(x, y, blue)
		}
	}

	out, err := c.Compose(src, model.CropRegion{X: 70, Y: 0, Width: 70, Height: 90}, model.DefaultBackgroundColor, model.DefaultFilters())
	require.NoError(t, err)

	img := decodeJPEG(t, out)
	assertNear(t, blue, img.At(206, 265), 6)
	assertNear(t, blue, img.At(20, 20), 6)
}

func TestComposeAppliesFilters(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	gray := color.NRGBA{R: 100, G: 100, B: 100, A: 255}
	src := solidImage(70, 90, gray)
	crop := model.CropRegion{Width: 70, Height: 90}

	out, err := c.Compose(src, crop, model.DefaultBackgroundColor, model.FilterSettings{Brightness: 150, Contrast: 100})
	require.NoError(t, err)
	assertNear(t, color.NRGBA{R: 150, G: 150, B: 150, A: 255}, decodeJPEG(t, out).At(200, 260), 3)
}

func TestComposeRejectsOutOfBoundsCrop(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	src := solidImage(70, 90, red)

	for _, crop := range []model.CropRegion{
		{X: 1, Y: 0, Width: 70, Height: 90},
		{X: 0, Y: 0, Width: 70, Height: 91},
		{X: -1, Y: 0, Width: 7, Height: 9},
		{X: 0, Y: 0, Width: 0, Height: 0},
	} {
		_, err := c.Compose(src, crop, model.DefaultBackgroundColor, model.DefaultFilters())
		assert.ErrorIs(t, err, ErrCropOutOfBounds, "%+v", crop)
	}
}

func TestComposeBytesDecodeError(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	_, err := c.ComposeBytes([]byte("not an image"), model.CropRegion{Width: 7, Height: 9}, model.DefaultBackgroundColor, model.DefaultFilters())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestComposeCanvasError(t *testing.T) {
	c := NewComposer(&config.PhotoConfig{Width: 0, Height: 531, Quality: 95})
	_, err := c.Compose(solidImage(7, 9, red), model.CropRegion{Width: 7, Height: 9}, model.DefaultBackgroundColor, model.DefaultFilters())
	assert.ErrorIs(t, err, ErrCanvas)
}

func TestComposeInvalidColor(t *testing.T) {
	c := NewComposer(testPhotoConfig())
	_, err := c.Compose(solidImage(7, 9, red), model.CropRegion{Width: 7, Height: 9}, "white", model.DefaultFilters())
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestTransferTableIdentity(t *testing.T) {
	lut := transferTable(model.DefaultFilters())
	for i := range lut {
		require.Equal(t, uint8(i), lut[i])
	}
}

func TestTransferTable(t *testing.T) {
	bright := transferTable(model.FilterSettings{Brightness: 150, Contrast: 100})
	assert.Equal(t, uint8(150), bright[100])
	assert.Equal(t, uint8(255), bright[200])
	assert.Equal(t, uint8(0), bright[0])

	dim := transferTable(model.FilterSettings{Brightness: 50, Contrast: 100})
	assert.Equal(t, uint8(128), dim[255])
	assert.Equal(t, uint8(50), dim[100])

	flat := transferTable(model.FilterSettings{Brightness: 100, Contrast: 50})
	assert.Equal(t, uint8(64), flat[0])
	assert.Equal(t, uint8(191), flat[255])

	steep := transferTable(model.FilterSettings{Brightness: 100, Contrast: 150})
	assert.Equal(t, uint8(0), steep[20])
	assert.Equal(t, uint8(255), steep[240])
	assert.Equal(t, uint8(128), steep[128])
}

func TestApplyFiltersKeepsAlpha(t *testing.T) {
	src := solidImage(2, 2, color.NRGBA{R: 100, G: 50, B: 200, A: 77})
	out := applyFilters(src, model.FilterSettings{Brightness: 150, Contrast: 100})
	assert.Equal(t, color.NRGBA{R: 150, G: 75, B: 255, A: 77}, out.NRGBAAt(1, 1))

	same := applyFilters(src, model.DefaultFilters())
	assert.Equal(t, src.Pix, same.Pix)
}

func TestDominantBackdrop(t *testing.T) {
	img := solidImage(70, 90, color.NRGBA{R: 0x00, G: 0x73, B: 0xe6, A: 255})
	// 下半部分是人像，不参与统计
	for y := 45; y < 90; y++ {
		for x := 0; x < 70; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}

	got, err := colorful.Hex(DominantBackdrop(img).String())
	require.NoError(t, err)
	want, _ := colorful.Hex("#0073e6")
	assert.Less(t, got.DistanceLab(want), 0.02)
}
