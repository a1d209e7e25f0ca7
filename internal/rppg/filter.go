package rppg

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// ErrSignalTooShort 信号条理需要至少 3 个样本
var ErrSignalTooShort = errors.New("rppg: signal too short to condition")

// 去趋势的对称局部均值窗口半径（±7 样本）
const detrendHalfWindow = 7

// Condition 对原始信号做两级带通近似
//
// 1. 去趋势：每个样本减去 ±7 样本（两端截断）的局部均值，近似高通，
//    去除光照漂移等慢变基线；
// 2. 平滑：3 点滑动平均，近似低通，去除高频噪声。
//
// 输出长度为输入长度减 2（平滑丢弃两端样本）。这是对真实 Butterworth
// 带通（典型脉搏频带 0.7–3.5 Hz）的有意简化，不是缺陷。
func Condition(raw []float64) ([]float64, error) {
	n := len(raw)
	if n < 3 {
		return nil, ErrSignalTooShort
	}

	// 去趋势
	detrended := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i - detrendHalfWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + detrendHalfWindow + 1
		if hi > n {
			hi = n
		}
		detrended[i] = raw[i] - stat.Mean(raw[lo:hi], nil)
	}

	// 3 点滑动平均
	smoothed := make([]float64, n-2)
	for i := 1; i < n-1; i++ {
		smoothed[i-1] = (detrended[i-1] + detrended[i] + detrended[i+1]) / 3
	}

	return smoothed, nil
}
