package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/stretchr/testify/require"
)

func testPhotoConfig() *config.PhotoConfig {
	return &config.PhotoConfig{
		Width:             413,
		Height:            531,
		Quality:           95,
		Filename:          "passport-photo.jpg",
		DefaultBackground: "#ffffff",
	}
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// assertNear 比较 JPEG 解码后的像素，允许有损压缩带来的误差
func assertNear(t *testing.T, want color.NRGBA, got color.Color, tolerance int) {
	t.Helper()
	r, g, b, _ := got.RGBA()
	diff := func(a uint8, b uint32) int {
		d := int(a) - int(b>>8)
		if d < 0 {
			d = -d
		}
		return d
	}
	if diff(want.R, r) > tolerance || diff(want.G, g) > tolerance || diff(want.B, b) > tolerance {
		t.Fatalf("pixel %v not within %d of %v", got, tolerance, want)
	}
}

type fakeReplacer struct {
	fn    func(ctx context.Context, img model.EmbeddedImage, color model.BackgroundColor) (model.EmbeddedImage, error)
	calls int
}

func (f *fakeReplacer) ReplaceBackground(ctx context.Context, img model.EmbeddedImage, color model.BackgroundColor) (model.EmbeddedImage, error) {
	f.calls++
	return f.fn(ctx, img, color)
}

type fakeLocator struct {
	rect image.Rectangle
	err  error
}

func (f fakeLocator) LocateSubject(image.Image) (image.Rectangle, error) {
	return f.rect, f.err
}

func newTestEditor(replacer BackgroundReplacer) *Editor {
	return &Editor{
		Composer:     NewComposer(testPhotoConfig()),
		Replacer:     replacer,
		Locator:      NewSmartcropLocator(),
		AllowedTypes: []string{MimePNG, MimeJPEG, MimeWEBP},
		DefaultColor: model.DefaultBackgroundColor,
	}
}
