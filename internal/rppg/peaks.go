package rppg

import "math"

// 不应期：两个候选峰之间至少间隔 15 个样本。
// 按 30 fps 采样约等于 120 bpm 的生理上限。
const refractorySamples = 15

// 无峰或噪声底为零时的信噪比回退值（dB），避免 log(0)
const fallbackSNR = 5.0

// PeakResult 峰值/搏动间隔检测结果
type PeakResult struct {
	Peaks      []int   // 峰值样本下标（升序）
	Intervals  []int   // 相邻峰之间的样本距离（IBI，帧数）
	MaxPeak    float64 // 最大峰值幅度
	NoiseFloor float64 // 噪声底（信号绝对值均值）
	SNR        float64 // 20·log10(maxPeak/noiseFloor)，无峰时为回退值
}

// MeanInterval 平均搏动间隔（帧数），无间隔时返回 0
func (r PeakResult) MeanInterval() float64 {
	if len(r.Intervals) == 0 {
		return 0
	}
	sum := 0
	for _, iv := range r.Intervals {
		sum += iv
	}
	return float64(sum) / float64(len(r.Intervals))
}

// DetectPeaks 扫描条理后的信号，检测局部极大值并计算搏动间隔
//
// 候选峰要求：不在首尾、幅度大于 0、严格大于两侧相邻样本；
// 且距上一个已接受的峰至少 refractorySamples 个样本（去抖）。
func DetectPeaks(signal []float64) PeakResult {
	result := PeakResult{}

	var noiseSum float64
	for _, v := range signal {
		noiseSum += math.Abs(v)
	}
	if len(signal) > 0 {
		result.NoiseFloor = noiseSum / float64(len(signal))
	}

	lastPeak := -refractorySamples
	for i := 1; i < len(signal)-1; i++ {
		v := signal[i]
		if v <= 0 || v <= signal[i-1] || v <= signal[i+1] {
			continue
		}
		if i-lastPeak < refractorySamples {
			continue
		}
		if len(result.Peaks) > 0 {
			result.Intervals = append(result.Intervals, i-lastPeak)
		}
		result.Peaks = append(result.Peaks, i)
		lastPeak = i
		if v > result.MaxPeak {
			result.MaxPeak = v
		}
	}

	if result.MaxPeak > 0 && result.NoiseFloor > 0 {
		result.SNR = 20 * math.Log10(result.MaxPeak/result.NoiseFloor)
	} else {
		result.SNR = fallbackSNR
	}

	return result
}
