package vision

import (
	"fmt"
	"image"

	"github.com/mahdichowdhury714-hub/passportkit/config"
	"github.com/mahdichowdhury714-hub/passportkit/service"
	"github.com/mahdichowdhury714-hub/passportkit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// PortraitDetector 负责检测人像特征，并为自动构图定位头肩区域
type PortraitDetector struct {
	cascadeFile string
	fallback    service.SubjectLocator
}

func NewPortraitDetector(cfg *config.DetectConfig, fallback service.SubjectLocator) *PortraitDetector {
	return &PortraitDetector{
		cascadeFile: cfg.CascadeFile,
		fallback:    fallback,
	}
}

// DetectSkin 检测图像中的皮肤区域
func (pd *PortraitDetector) DetectSkin(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	lower := gocv.Scalar{Val1: 0, Val2: 133, Val3: 77, Val4: 0}
	upper := gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255}

	skinMask := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, lower, upper, &skinMask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()

	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphOpen, kernel)

	return skinMask
}

// DetectFace 检测人脸位置，级联文件不可用时返回 nil
func (pd *PortraitDetector) DetectFace(img *gocv.Mat) []image.Rectangle {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	classifier := gocv.NewCascadeClassifier()
	defer classifier.Close()

	if !classifier.Load(pd.cascadeFile) {
		utils.Logger.Warn("failed to load face cascade", zap.String("file", pd.cascadeFile))
		return nil
	}

	return classifier.DetectMultiScale(gray)
}

// IsPortrait 皮肤像素占比超过 15% 视为人像
func (pd *PortraitDetector) IsPortrait(img *gocv.Mat) bool {
	skinMask := pd.DetectSkin(img)
	defer skinMask.Close()

	totalPixels := float64(img.Rows() * img.Cols())
	skinPixels := float64(gocv.CountNonZero(skinMask))

	return skinPixels/totalPixels > 0.15
}

// EnhancePortraitMask 用膨胀后的皮肤区域补全前景掩码
func (pd *PortraitDetector) EnhancePortraitMask(originalMask, img *gocv.Mat) gocv.Mat {
	skinMask := pd.DetectSkin(img)
	defer skinMask.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 15, Y: 15})
	defer kernel.Close()

	dilatedSkin := gocv.NewMat()
	defer dilatedSkin.Close()
	gocv.Dilate(skinMask, &dilatedSkin, kernel)

	enhanced := gocv.NewMat()
	gocv.BitwiseOr(*originalMask, dilatedSkin, &enhanced)

	return enhanced
}

// LocateSubject 以最大人脸推算头肩区域；没有检测到人脸时交给备用定位器
func (pd *PortraitDetector) LocateSubject(img image.Image) (image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %v", service.ErrDecode, err)
	}
	defer mat.Close()

	faces := pd.DetectFace(&mat)
	if len(faces) == 0 {
		if pd.fallback == nil {
			return img.Bounds(), nil
		}
		utils.Logger.Debug("no face detected, using fallback locator")
		return pd.fallback.LocateSubject(img)
	}

	face := faces[0]
	for _, f := range faces[1:] {
		if f.Dx()*f.Dy() > face.Dx()*face.Dy() {
			face = f
		}
	}

	utils.Logger.Debug("face detected",
		zap.Int("faces", len(faces)),
		zap.Any("face", face))

	return headAndShoulders(face, img.Bounds()), nil
}

// headAndShoulders 由人脸框推算证件照需要的头肩区域：
// 上方留出头发和头顶空白，下方包含肩部
func headAndShoulders(face, bounds image.Rectangle) image.Rectangle {
	fw, fh := face.Dx(), face.Dy()
	cx := (face.Min.X + face.Max.X) / 2

	subject := image.Rect(
		cx-fw*19/20,
		face.Min.Y-fh/2,
		cx+fw*19/20,
		face.Max.Y+fh*3/5,
	)
	return subject.Intersect(bounds)
}
