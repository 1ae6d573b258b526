package service

import (
	"errors"

	"github.com/mahdichowdhury714-hub/passportkit/model"
)

var (
	// ErrDecode 图片字节无法解码
	ErrDecode = errors.New("image could not be decoded")
	// ErrCanvas 无法分配输出画布
	ErrCanvas = errors.New("drawing surface unavailable")
	// ErrCropOutOfBounds 裁剪区域超出源图范围
	ErrCropOutOfBounds = errors.New("crop region out of image bounds")
	// ErrNoImageInResponse 远程服务返回成功但不含图片
	ErrNoImageInResponse = errors.New("no image part found in response")
	// ErrService 远程服务调用失败
	ErrService = errors.New("background replacement service failed")
	// ErrBusy 已有操作在进行中，本次触发不生效
	ErrBusy = errors.New("another operation is in progress")
	// ErrNoImage 会话尚未上传图片
	ErrNoImage = errors.New("no image loaded")

	ErrImageTooSmall   = errors.New("image too small for a passport crop")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrInvalidFilter   = errors.New("brightness and contrast must be between 50 and 150")
	ErrInvalidZoom     = errors.New("zoom must be between 1 and 3")
	ErrInvalidColor    = model.ErrInvalidColor
)

// 面向用户的提示
const (
	ExportFailedMessage  = "Failed to generate image. Please try again."
	ReplaceFailedMessage = "Failed to change background. Please try again."
)
