package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/model"
	"github.com/mahdichowdhury714-hub/passportkit/service"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GrabCutReplacer 在本地用 GrabCut 分割人像，再把人像放到纯色背景上
type GrabCutReplacer struct {
	iterations         int
	borderSize         int
	maxDimension       int
	semaphore          chan struct{}
	queueTimeout       time.Duration
	complexityAnalyzer *ComplexityAnalyzer
	saliencyDetector   *SaliencyDetector
	maskProcessor      *MaskProcessor
	portraitDetector   *PortraitDetector
}

func NewGrabCutReplacer(cfg *config.GrabCutConfig, detector *PortraitDetector) *GrabCutReplacer {
	return &GrabCutReplacer{
		iterations:         cfg.Iterations,
		borderSize:         cfg.BorderSize,
		maxDimension:       cfg.MaxDimension,
		semaphore:          make(chan struct{}, max(1, cfg.MaxConcurrent)),
		queueTimeout:       time.Duration(cfg.QueueTimeout) * time.Second,
		complexityAnalyzer: NewComplexityAnalyzer(detector),
		saliencyDetector:   NewSaliencyDetector(),
		maskProcessor:      NewMaskProcessor(),
		portraitDetector:   detector,
	}
}

// ReplaceBackground 实现 service.BackgroundReplacer
func (s *GrabCutReplacer) ReplaceBackground(ctx context.Context, img model.EmbeddedImage, bg model.BackgroundColor) (model.EmbeddedImage, error) {
	fill, err := bg.NRGBA()
	if err != nil {
		return model.EmbeddedImage{}, err
	}

	// 并发控制
	queueCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-queueCtx.Done():
		return model.EmbeddedImage{}, fmt.Errorf("%w: segmentation queue is full", service.ErrService)
	}

	startTime := time.Now()

	src, err := service.DecodeImage(img.Data)
	if err != nil {
		return model.EmbeddedImage{}, err
	}

	mat, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return model.EmbeddedImage{}, fmt.Errorf("%w: %v", service.ErrDecode, err)
	}
	defer mat.Close()

	fgMask := s.segment(&mat)
	defer fgMask.Close()

	maskImg, err := fgMask.ToImage()
	if err != nil {
		return model.EmbeddedImage{}, fmt.Errorf("%w: %v", service.ErrService, err)
	}
	gray, ok := maskImg.(*image.Gray)
	if !ok {
		return model.EmbeddedImage{}, fmt.Errorf("%w: unexpected mask type %T", service.ErrService, maskImg)
	}

	out := compositeOnColor(src, gray, fill)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return model.EmbeddedImage{}, fmt.Errorf("%w: %v", service.ErrService, err)
	}

	utils.Logger.Info("background replaced locally",
		zap.String("color", bg.String()),
		zap.Int("width", mat.Cols()),
		zap.Int("height", mat.Rows()),
		zap.Duration("duration", time.Since(startTime)))

	return model.EmbeddedImage{MimeType: service.MimeJPEG, Data: buf.Bytes()}, nil
}

// segment 返回与原图同尺寸的前景掩码，前景为 255
func (s *GrabCutReplacer) segment(img *gocv.Mat) gocv.Mat {
	width := img.Cols()
	height := img.Rows()

	scaledImg, scale := s.smartResize(img, s.maxDimension)
	defer scaledImg.Close()

	scaledWidth := scaledImg.Cols()
	scaledHeight := scaledImg.Rows()

	complexity := s.complexityAnalyzer.Analyze(&scaledImg)
	utils.Logger.Debug("background analyzed",
		zap.String("level", complexity.Level),
		zap.Float64("edge_density", complexity.EdgeDensity),
		zap.Bool("is_portrait", complexity.IsPortrait))

	var mask gocv.Mat
	switch complexity.Level {
	case LevelPlain:
		// 纯色背景：矩形初始化即可，矩形延伸到底边以包含肩部
		border := max(s.borderSize, int(float64(scaledWidth)*0.05))
		initRect := image.Rect(border, border, scaledWidth-border, scaledHeight)
		mask = gocv.NewMat()
		s.grabCut(&scaledImg, &mask, initRect, s.iterations, gocv.GCInitWithRect)
	case LevelCluttered:
		// 杂乱背景的显著性图噪声多，只取最大显著区域的外接矩形
		saliencyMap := s.saliencyDetector.Detect(&scaledImg)
		defer saliencyMap.Close()

		initRect := s.saliencyDetector.ExtractRect(&saliencyMap, scaledWidth, scaledHeight)
		mask = gocv.NewMat()
		s.grabCut(&scaledImg, &mask, initRect, s.iterations+2, gocv.GCInitWithRect)
	default:
		saliencyMap := s.saliencyDetector.Detect(&scaledImg)
		defer saliencyMap.Close()

		mask = s.saliencyDetector.CreateMask(&saliencyMap, scaledWidth, scaledHeight)
		s.grabCut(&scaledImg, &mask, image.Rectangle{}, s.iterations, gocv.GCInitWithMask)
	}
	defer mask.Close()

	fgMask := s.maskProcessor.ExtractForeground(&mask)

	if complexity.IsPortrait {
		enhanced := s.portraitDetector.EnhancePortraitMask(&fgMask, &scaledImg)
		fgMask.Close()
		fgMask = enhanced
	}

	kernelSize := 3
	if complexity.Level != LevelPlain {
		kernelSize = 5
	}
	optimized := s.maskProcessor.MorphologyOptimize(&fgMask, kernelSize)
	fgMask.Close()
	fgMask = optimized

	refined := s.maskProcessor.RefineEdges(&fgMask)
	fgMask.Close()
	fgMask = refined

	// 还原到原始尺寸
	if scale != 1.0 {
		resized := gocv.NewMat()
		gocv.Resize(fgMask, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
		gocv.Threshold(resized, &resized, 127, 255, gocv.ThresholdBinary)
		fgMask.Close()
		fgMask = resized
	}

	largest := s.maskProcessor.KeepLargest(&fgMask)
	fgMask.Close()

	return largest
}

func (s *GrabCutReplacer) grabCut(img, mask *gocv.Mat, rect image.Rectangle, iterations int, mode gocv.GrabCutMode) {
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(*img, mask, rect, &bgdModel, &fgdModel, iterations, mode)
}

// smartResize 缩放到最长边不超过 maxSize，返回缩放比例
func (s *GrabCutReplacer) smartResize(img *gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img.Clone(), 1.0
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized, scale
}

// compositeOnColor 掩码内保留原图像素，掩码外填充纯色
func compositeOnColor(src image.Image, mask *image.Gray, fill color.NRGBA) *image.NRGBA {
	out := imaging.Clone(src)
	b := out.Bounds()
	mb := mask.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if x < mb.Dx() && y < mb.Dy() && mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y > 127 {
				// 半透明前景也需要铺在背景色上
				if c := out.NRGBAAt(x, y); c.A < 255 {
					out.SetNRGBA(x, y, blend(c, fill))
				}
				continue
			}
			out.SetNRGBA(x, y, fill)
		}
	}
	return out
}

func blend(c, fill color.NRGBA) color.NRGBA {
	a := uint32(c.A)
	mix := func(fg, bg uint8) uint8 {
		return uint8((uint32(fg)*a + uint32(bg)*(255-a) + 127) / 255)
	}
	return color.NRGBA{R: mix(c.R, fill.R), G: mix(c.G, fill.G), B: mix(c.B, fill.B), A: 255}
}
