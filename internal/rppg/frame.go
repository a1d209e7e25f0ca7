package rppg

import "image"

// ImageFrame 将标准库 image.Image 适配为 Frame
//
// 采集端把解码后的帧交给估计流水线时使用；测试里也用它构造合成帧。
type ImageFrame struct {
	img image.Image
}

// NewImageFrame 包装一个解码后的图像帧
func NewImageFrame(img image.Image) *ImageFrame {
	return &ImageFrame{img: img}
}

func (f *ImageFrame) Bounds() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

func (f *ImageFrame) RGBAt(x, y int) (float64, float64, float64, bool) {
	b := f.img.Bounds()
	if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
		return 0, 0, 0, false
	}
	r, g, bl, _ := f.img.At(b.Min.X+x, b.Min.Y+y).RGBA()
	// RGBA 返回 16 位通道，缩到 0–255
	return float64(r >> 8), float64(g >> 8), float64(bl >> 8), true
}
