package model

import (
	"image"

	"github.com/mahdichowdhury714-hub/passportkit/utils"
)

// EmbeddedImage 带媒体类型的可嵌入图片
type EmbeddedImage struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// DataURL 返回 data URL 表示
func (img EmbeddedImage) DataURL() string {
	return utils.EncodeDataURL(img.MimeType, img.Data)
}

// CropRegion 源图像素坐标下的裁剪区域
type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// FilterSettings 亮度和对比度百分比，100 表示不变
type FilterSettings struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
}

const (
	MinFilterPercent     = 50
	MaxFilterPercent     = 150
	DefaultFilterPercent = 100
)

func DefaultFilters() FilterSettings {
	return FilterSettings{Brightness: DefaultFilterPercent, Contrast: DefaultFilterPercent}
}

func (f FilterSettings) IsIdentity() bool {
	return f.Brightness == DefaultFilterPercent && f.Contrast == DefaultFilterPercent
}

func (f FilterSettings) Valid() bool {
	return f.Brightness >= MinFilterPercent && f.Brightness <= MaxFilterPercent &&
		f.Contrast >= MinFilterPercent && f.Contrast <= MaxFilterPercent
}

// Pan 相对居中位置的偏移，单位为源图像素
type Pan struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ImageInfo 当前工作图片的元数据
type ImageInfo struct {
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	// Backdrop 上传图片现有背景的主色
	Backdrop BackgroundColor `json:"backdrop,omitempty"`
}
