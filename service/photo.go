package service

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DecodePhoto 解码工作照片并缩放到 targetSize 以内，targetSize<=0 表示不缩放
func DecodePhoto(data []byte, targetSize int) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "decode photo")
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, errors.New("failed to decode photo")
	}
	if targetSize <= 0 {
		return img, nil
	}

	resized := smartResize(&img, targetSize)
	img.Close()
	return resized, nil
}

// smartResize 智能缩放图像以适应最大尺寸
func smartResize(img *gocv.Mat, maxSize int) gocv.Mat {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxDim <= maxSize {
		return img.Clone()
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized
}
