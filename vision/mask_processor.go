package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// MaskProcessor 负责处理前景掩码
type MaskProcessor struct{}

func NewMaskProcessor() *MaskProcessor {
	return &MaskProcessor{}
}

// ExtractForeground 确定前景和可能前景合并为 255，其余为 0
func (mp *MaskProcessor) ExtractForeground(mask *gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	defer fg.Close()
	fgValue := gocv.NewMatFromScalar(gocv.Scalar{Val1: gcForeground}, gocv.MatTypeCV8U)
	defer fgValue.Close()
	gocv.Compare(*mask, fgValue, &fg, gocv.CompareEQ)

	probable := gocv.NewMat()
	defer probable.Close()
	prValue := gocv.NewMatFromScalar(gocv.Scalar{Val1: gcProbableForeground}, gocv.MatTypeCV8U)
	defer prValue.Close()
	gocv.Compare(*mask, prValue, &probable, gocv.CompareEQ)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fg, probable, &combined)

	return combined
}

// MorphologyOptimize 开运算去噪点，闭运算填小洞
func (mp *MaskProcessor) MorphologyOptimize(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)

	return closed
}

// RefineEdges 平滑掩码边缘，头发等细节略向外扩
func (mp *MaskProcessor) RefineEdges(mask *gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 2, Y: 2})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*mask, &dilated, kernel)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(dilated, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)

	final := gocv.NewMat()
	gocv.Threshold(blurred, &final, 127, 255, gocv.ThresholdBinary)

	return final
}

// KeepLargest 只保留最大的连通区域，即证件照中的人
func (mp *MaskProcessor) KeepLargest(mask *gocv.Mat) gocv.Mat {
	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return mask.Clone()
	}

	maxArea := 0.0
	maxIndex := 0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > maxArea {
			maxArea = area
			maxIndex = i
		}
	}

	largest := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)
	largest.SetTo(gocv.NewScalar(0, 0, 0, 0))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.DrawContours(&largest, contours, maxIndex, white, -1)

	return largest
}
