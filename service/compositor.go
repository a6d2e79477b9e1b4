package service

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// 连通域统计矩阵中面积所在的列
const ccStatArea = 4

// Cutout 合成结果，所有坐标均为工作照片坐标
type Cutout struct {
	// Image BGRA，大小与裁剪区域一致
	Image gocv.Mat
	// Mask 最终二值掩码 0/255
	Mask         gocv.Mat
	Outline      []image.Point
	OpaquePixels int
	Region       image.Rectangle
}

func (c *Cutout) Close() {
	c.Image.Close()
	c.Mask.Close()
}

// ResultCompositor 把细化后的掩码转换为透明背景的抠图
type ResultCompositor struct {
	keepLargestOnly bool
}

func NewResultCompositor(keepLargestOnly bool) *ResultCompositor {
	return &ResultCompositor{keepLargestOnly: keepLargestOnly}
}

// Composite 只读取 crop，不修改工作照片
func (rc *ResultCompositor) Composite(refined, crop gocv.Mat, region image.Rectangle) (*Cutout, error) {
	if refined.Rows() != crop.Rows() || refined.Cols() != crop.Cols() {
		return nil, errors.Errorf("mask %dx%d does not match crop %dx%d",
			refined.Cols(), refined.Rows(), crop.Cols(), crop.Rows())
	}
	if crop.Channels() != 3 {
		return nil, errors.Errorf("crop must have 3 channels, got %d", crop.Channels())
	}

	kept := KeptMask(refined)
	outline, component := largestRegion(kept)
	if rc.keepLargestOnly {
		kept.Close()
		kept = component
	} else {
		component.Close()
	}

	for i := range outline {
		outline[i] = outline[i].Add(region.Min)
	}

	return &Cutout{
		Image:        withAlpha(crop, kept),
		Mask:         kept,
		Outline:      outline,
		OpaquePixels: gocv.CountNonZero(kept),
		Region:       region,
	}, nil
}

// largestRegion 选出面积最大的连通域，面积相同时取扫描顺序中先出现的，
// 返回它的外轮廓和 0/255 掩码。没有前景时轮廓为空、掩码全零。
func largestRegion(kept gocv.Mat) ([]image.Point, gocv.Mat) {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(kept, &labels, &stats, &centroids)

	best, bestArea := 0, 0
	var bestFirst image.Point
	for l := 1; l < n; l++ {
		area := int(stats.GetIntAt(l, ccStatArea))
		if area == 0 || area < bestArea {
			continue
		}
		first := firstPixel(labels, stats, l)
		if area > bestArea || scanBefore(first, bestFirst) {
			best, bestArea, bestFirst = l, area, first
		}
	}

	if best == 0 {
		return nil, gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), kept.Rows(), kept.Cols(), gocv.MatTypeCV8UC1)
	}

	component := gocv.NewMat()
	value := gocv.NewScalar(float64(best), 0, 0, 0)
	gocv.InRangeWithScalar(labels, value, value, &component)

	contours := gocv.FindContours(component, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return nil, component
	}

	idx, maxArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			idx, maxArea = i, area
		}
	}

	return contours.At(idx).ToPoints(), component
}

// firstPixel 连通域在光栅扫描中的第一个像素，位于其包围盒顶行
func firstPixel(labels, stats gocv.Mat, l int) image.Point {
	left := int(stats.GetIntAt(l, 0))
	top := int(stats.GetIntAt(l, 1))
	width := int(stats.GetIntAt(l, 2))
	for x := left; x < left+width; x++ {
		if int(labels.GetIntAt(top, x)) == l {
			return image.Pt(x, top)
		}
	}
	return image.Pt(left, top)
}

func scanBefore(a, b image.Point) bool {
	return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
}

// withAlpha 复制 crop 的颜色通道，alpha 取自 kept
func withAlpha(crop, kept gocv.Mat) gocv.Mat {
	bgra := gocv.NewMat()
	gocv.CvtColor(crop, &bgra, gocv.ColorBGRToBGRA)

	channels := gocv.Split(bgra)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	channels[3].Close()
	channels[3] = kept.Clone()

	gocv.Merge(channels, &bgra)
	return bgra
}
