package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// 背景复杂度等级
const (
	LevelPlain     = "plain"
	LevelMedium    = "medium"
	LevelCluttered = "cluttered"
)

// ComplexityAnalyzer 分析人像背景的复杂度，决定分割的迭代次数
type ComplexityAnalyzer struct {
	portraitDetector *PortraitDetector
}

type ComplexityInfo struct {
	Level         string
	EdgeDensity   float64
	ColorVariance float64
	IsPortrait    bool
}

func NewComplexityAnalyzer(detector *PortraitDetector) *ComplexityAnalyzer {
	return &ComplexityAnalyzer{portraitDetector: detector}
}

// Analyze 只统计画面上部五分之一，证件照中这部分几乎全是背景
func (ca *ComplexityAnalyzer) Analyze(img *gocv.Mat) ComplexityInfo {
	band := img.Region(image.Rect(0, 0, img.Cols(), max(1, img.Rows()/5)))
	defer band.Close()

	edgeDensity := ca.calculateEdgeDensity(&band)
	colorVariance := ca.calculateColorVariance(&band)

	level := LevelMedium
	switch {
	case edgeDensity < 0.02 && colorVariance < 20:
		level = LevelPlain
	case edgeDensity > 0.1 || colorVariance > 50:
		level = LevelCluttered
	}

	return ComplexityInfo{
		Level:         level,
		EdgeDensity:   edgeDensity,
		ColorVariance: colorVariance,
		IsPortrait:    ca.portraitDetector.IsPortrait(img),
	}
}

func (ca *ComplexityAnalyzer) calculateEdgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	return float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())
}

// calculateColorVariance Lab 空间各通道标准差的均值
func (ca *ComplexityAnalyzer) calculateColorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	variance := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		variance += stddev.GetDoubleAt(i, 0)
	}

	return variance / float64(stddev.Rows())
}
