package service

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Label GrabCut 掩码取值
type Label uint8

const (
	LabelBackground         Label = 0
	LabelForeground         Label = 1
	LabelProbableBackground Label = 2
	LabelProbableForeground Label = 3
)

const (
	// 外圈光晕比笔画宽出的像素
	haloExtra = 8
	// 内圈收窄的像素
	innerShrink = 10
)

func labelColor(l Label) color.RGBA {
	v := uint8(l)
	return color.RGBA{R: v, G: v, B: v, A: v}
}

func labelScalar(l Label) gocv.Scalar {
	return gocv.NewScalar(float64(l), 0, 0, 0)
}

// MaskBuilder 根据笔画生成四级种子掩码
type MaskBuilder struct {
	lineWidth int
}

func NewMaskBuilder(lineWidth int) *MaskBuilder {
	return &MaskBuilder{lineWidth: lineWidth}
}

// Build 在 size 大小的区域内绘制种子掩码，points 为区域局部坐标。
// 笔画总是按闭合折线处理，后绘制的层覆盖先绘制的层。
func (mb *MaskBuilder) Build(points []image.Point, size image.Point) (gocv.Mat, error) {
	if len(points) == 0 {
		return gocv.Mat{}, ErrEmptyStroke
	}
	if size.X <= 0 || size.Y <= 0 {
		return gocv.Mat{}, errors.Wrapf(ErrInvalidRegion, "mask size %v", size)
	}

	mask := gocv.NewMatWithSizeFromScalar(labelScalar(LabelBackground), size.Y, size.X, gocv.MatTypeCV8UC1)

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{points})
	defer pv.Close()

	gocv.Polylines(&mask, pv, true, labelColor(LabelProbableBackground), mb.lineWidth+haloExtra)
	gocv.Polylines(&mask, pv, true, labelColor(LabelProbableForeground), mb.lineWidth)
	gocv.FillPoly(&mask, pv, labelColor(LabelForeground))
	if w := mb.lineWidth - innerShrink; w > 0 {
		gocv.Polylines(&mask, pv, true, labelColor(LabelProbableForeground), w)
	}

	return mask, nil
}

// KeptMask 前景与可能前景两次比较后按位或，结果为 0/255 的二值掩码
func KeptMask(mask gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	defer fg.Close()
	gocv.InRangeWithScalar(mask, labelScalar(LabelForeground), labelScalar(LabelForeground), &fg)

	prFg := gocv.NewMat()
	defer prFg.Close()
	gocv.InRangeWithScalar(mask, labelScalar(LabelProbableForeground), labelScalar(LabelProbableForeground), &prFg)

	kept := gocv.NewMat()
	gocv.BitwiseOr(fg, prFg, &kept)
	return kept
}

// hasBothSeeds 掩码中是否同时存在前景类和背景类种子
func hasBothSeeds(mask gocv.Mat) bool {
	kept := KeptMask(mask)
	defer kept.Close()

	fg := gocv.CountNonZero(kept)
	return fg > 0 && fg < mask.Rows()*mask.Cols()
}
