// Package rppg 实现远程光电容积脉搏波（remote photoplethysmography）生命体征估计。
//
// 输入为外部人脸关键点检测器产生的归一化 2D 关键点序列，以及摄像头帧的
// ROI（前额区域）颜色通道强度。核心是时域近似的信号处理流水线：
// 去趋势 + 滑动平均（带通近似）、峰值/搏动间隔检测、以及两种估计器变体
// （逐帧连续估计 / 固定时长批量估计）。
//
// 注意：本包是实验性质的演示实现，不是医疗设备。派生指标（血压、血红蛋白、
// HRV 等）是公开记录的启发式占位公式，不是真实生理测量。
package rppg

import "math"

// 人脸关键点索引（MediaPipe FaceMesh 约定，归一化坐标）
const (
	// ForeheadLandmark 前额中心附近的关键点，用于 ROI 像素采样
	ForeheadLandmark = 10

	// 左眼轮廓六点（EAR 计算）
	leftEyeOuter   = 33  // p1 水平外角
	leftEyeTop1    = 160 // p2
	leftEyeTop2    = 158 // p3
	leftEyeInner   = 133 // p4 水平内角
	leftEyeBottom2 = 153 // p5
	leftEyeBottom1 = 144 // p6

	// MinLandmarks EAR/ROI 计算需要的最小关键点数量
	MinLandmarks = 161
)

// EyeClosedThreshold EAR 低于该值视为"闭眼"
const EyeClosedThreshold = 0.25

// ROI 采样补丁边长（像素）
const roiPatchSize = 20

// 皮肤判定启发式：红通道相对绿通道的优势比与亮度下限。
// 批量变体用它决定一帧样本是否进入信号窗口。
const (
	skinRedDominance   = 1.0
	skinBrightnessMin  = 40.0
	channelIntensityMax = 255.0
)

// Landmark 归一化到 [0,1] 的 2D 人脸关键点
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame 可按像素寻址的视频帧
//
// RGBAt 读取失败（如跨域污染的画布）时 ok 为 false，调用方按 0 信号处理。
type Frame interface {
	Bounds() (width, height int)
	RGBAt(x, y int) (r, g, b float64, ok bool)
}

func distance(a, b Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EyeAspectRatio 计算眼睛纵横比（EAR）
//
// EAR = (垂直距离1 + 垂直距离2) / (2 * 水平距离)，无量纲，
// 对关键点坐标的统一缩放不变。关键点不足时返回 0。
func EyeAspectRatio(landmarks []Landmark) float64 {
	if len(landmarks) < MinLandmarks {
		return 0
	}

	vertical1 := distance(landmarks[leftEyeTop1], landmarks[leftEyeBottom1])
	vertical2 := distance(landmarks[leftEyeTop2], landmarks[leftEyeBottom2])
	horizontal := distance(landmarks[leftEyeOuter], landmarks[leftEyeInner])

	if horizontal == 0 {
		return 0
	}
	return (vertical1 + vertical2) / (2 * horizontal)
}

// ExtractChannelSignal 从前额 ROI 提取绿通道平均强度
//
// 将前额关键点映射到像素坐标，以其为中心取固定大小的方形补丁，
// 返回补丁内绿通道的平均值（绿通道对脉搏信号最敏感）。
// 补丁原点会被钳制在帧边界内；像素读取失败返回 0，不报错。
func ExtractChannelSignal(frame Frame, landmarks []Landmark) float64 {
	if frame == nil || len(landmarks) <= ForeheadLandmark {
		return 0
	}

	width, height := frame.Bounds()
	if width < roiPatchSize || height < roiPatchSize {
		return 0
	}

	cx := int(landmarks[ForeheadLandmark].X * float64(width))
	cy := int(landmarks[ForeheadLandmark].Y * float64(height))

	// 补丁原点钳制在帧内
	x0 := clampInt(cx-roiPatchSize/2, 0, width-roiPatchSize)
	y0 := clampInt(cy-roiPatchSize/2, 0, height-roiPatchSize)

	var sum float64
	var count int
	for y := y0; y < y0+roiPatchSize; y++ {
		for x := x0; x < x0+roiPatchSize; x++ {
			_, g, _, ok := frame.RGBAt(x, y)
			if !ok {
				return 0
			}
			sum += g
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// AcceptSkinSample 批量变体的皮肤判定门控
//
// 红通道均值需不低于绿通道（血液灌注的肤色特征），且亮度不低于下限，
// 否则该帧样本不进入信号窗口。这是低层启发式，不是人脸检测。
func AcceptSkinSample(meanRed, meanGreen, brightness float64) bool {
	if meanGreen <= 0 || meanRed <= 0 {
		return false
	}
	if brightness < skinBrightnessMin {
		return false
	}
	return meanRed >= meanGreen*skinRedDominance
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
