package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// GrabCut 掩码取值
const (
	gcBackground         = 0
	gcForeground         = 1
	gcProbableBackground = 2
	gcProbableForeground = 3
)

// SaliencyDetector 负责检测图像的显著性区域
type SaliencyDetector struct{}

func NewSaliencyDetector() *SaliencyDetector {
	return &SaliencyDetector{}
}

// Detect 以梯度强度近似显著性，Otsu 阈值二值化
func (sd *SaliencyDetector) Detect(img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	gradY := gocv.NewMat()
	defer gradX.Close()
	defer gradY.Close()

	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absGradX := gocv.NewMat()
	absGradY := gocv.NewMat()
	defer absGradX.Close()
	defer absGradY.Close()

	gocv.ConvertScaleAbs(gradX, &absGradX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absGradY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absGradX, 0.5, absGradY, 0.5, 0, &gradient)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Point{X: 21, Y: 21}, 0, 0, gocv.BorderDefault)

	saliency := gocv.NewMat()
	gocv.Threshold(blurred, &saliency, 0, 255, gocv.ThresholdOtsu)

	return saliency
}

// ExtractRect 取最大显著区域的外接矩形。人像通常被画面底边截断，矩形总是延伸到底边。
func (sd *SaliencyDetector) ExtractRect(saliency *gocv.Mat, width, height int) image.Rectangle {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 21, Y: 21})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	border := int(float64(width) * 0.1)
	if contours.Size() == 0 {
		return image.Rect(border, border, width-border, height)
	}

	var maxRect image.Rectangle
	maxArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > maxArea {
			maxArea = area
			maxRect = gocv.BoundingRect(contours.At(i))
		}
	}

	padding := int(float64(maxRect.Dx()) * 0.05)
	maxRect.Min.X = max(1, maxRect.Min.X-padding)
	maxRect.Min.Y = max(1, maxRect.Min.Y-padding)
	maxRect.Max.X = min(width-1, maxRect.Max.X+padding)
	maxRect.Max.Y = height

	return maxRect
}

// CreateMask 根据显著性图创建 GrabCut 初始掩码：
// 上、左、右边框为确定背景，显著区域为可能前景，其余为可能背景
func (sd *SaliencyDetector) CreateMask(saliency *gocv.Mat, width, height int) gocv.Mat {
	mask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
	mask.SetTo(gocv.NewScalar(gcProbableBackground, 0, 0, 0))

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 11, Y: 11})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if dilated.GetUCharAt(y, x) > 128 {
				mask.SetUCharAt(y, x, gcProbableForeground)
			}
		}
	}

	borderSize := max(1, int(float64(width)*0.03))
	bg := color.RGBA{R: gcBackground}
	gocv.Rectangle(&mask, image.Rect(0, 0, width, borderSize), bg, -1)
	gocv.Rectangle(&mask, image.Rect(0, 0, borderSize, height), bg, -1)
	gocv.Rectangle(&mask, image.Rect(width-borderSize, 0, width, height), bg, -1)

	return mask
}
