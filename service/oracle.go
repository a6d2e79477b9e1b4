package service

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Oracle 迭代前景/背景分割。mask 原地修改，每个像素被重新赋为四种 Label 之一；
// 确定前景/背景像素作为硬约束保留。
type Oracle interface {
	Refine(img gocv.Mat, mask *gocv.Mat, rect image.Rectangle, iterations int) error
}

// GrabCutOracle 基于 OpenCV GrabCut 的实现
type GrabCutOracle struct{}

func NewGrabCutOracle() *GrabCutOracle {
	return &GrabCutOracle{}
}

func (o *GrabCutOracle) Refine(img gocv.Mat, mask *gocv.Mat, rect image.Rectangle, iterations int) error {
	if img.Empty() {
		return errors.New("image is empty")
	}
	if img.Type() != gocv.MatTypeCV8UC3 {
		return errors.Errorf("image must be 8-bit 3-channel, got type %v", img.Type())
	}
	if mask == nil || mask.Empty() {
		return errors.New("mask is empty")
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return errors.Errorf("mask must be 8-bit single channel, got type %v", mask.Type())
	}
	if mask.Rows() != img.Rows() || mask.Cols() != img.Cols() {
		return errors.Errorf("mask %dx%d does not match image %dx%d",
			mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
	}
	if iterations <= 0 {
		return errors.Errorf("iterations must be positive, got %d", iterations)
	}

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(img, mask, rect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithMask)
	return nil
}
