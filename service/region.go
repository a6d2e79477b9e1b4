package service

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"github.com/TIANLI0/StrokeCut/model"
)

// BoundingBox 笔画的包围盒，随笔画点增量扩展
type BoundingBox struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

func pointBox(p model.Point) BoundingBox {
	return BoundingBox{Left: p.X, Top: p.Y, Right: p.X, Bottom: p.Y}
}

func (b BoundingBox) extend(p model.Point) BoundingBox {
	b.Left = math.Min(b.Left, p.X)
	b.Top = math.Min(b.Top, p.Y)
	b.Right = math.Max(b.Right, p.X)
	b.Bottom = math.Max(b.Bottom, p.Y)
	return b
}

// Empty 面积为零或为负
func (b BoundingBox) Empty() bool {
	return b.Right <= b.Left || b.Bottom <= b.Top
}

// NewCropRegion 将包围盒向四周扩展半个线宽并裁剪到图像范围内
func NewCropRegion(box BoundingBox, lineWidth int, bounds image.Rectangle) (image.Rectangle, error) {
	if box.Empty() {
		return image.Rectangle{}, errors.Wrapf(ErrInvalidRegion, "bounding box %+v has no area", box)
	}

	outer := image.Rect(
		int(math.Floor(box.Left)), int(math.Floor(box.Top)),
		int(math.Ceil(box.Right)), int(math.Ceil(box.Bottom)),
	)
	if outer.Intersect(bounds).Empty() {
		return image.Rectangle{}, errors.Wrapf(ErrInvalidRegion, "bounding box %v lies outside image %v", outer, bounds)
	}

	half := float64(lineWidth) / 2
	region := image.Rect(
		int(math.Floor(box.Left-half)), int(math.Floor(box.Top-half)),
		int(math.Ceil(box.Right+half)), int(math.Ceil(box.Bottom+half)),
	).Intersect(bounds)
	if region.Empty() {
		return image.Rectangle{}, errors.Wrapf(ErrInvalidRegion, "crop region %v is empty", region)
	}

	return region, nil
}

// ToLocal 把图像坐标平移到裁剪区域的局部坐标
func ToLocal(points []model.Point, origin image.Point) []image.Point {
	local := make([]image.Point, len(points))
	for i, p := range points {
		local[i] = image.Point{
			X: int(math.Round(p.X)) - origin.X,
			Y: int(math.Round(p.Y)) - origin.Y,
		}
	}
	return local
}
