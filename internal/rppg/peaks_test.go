package rppg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPeaks_SyntheticSinusoid(t *testing.T) {
	// sample_i = sin(2π·i/20)，200 个样本 → 约 10 个峰（±1 边缘效应）
	signal := make([]float64, 200)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * float64(i) / 20)
	}

	result := DetectPeaks(signal)
	assert.InDelta(t, 10, len(result.Peaks), 1)

	// 周期 20 的正弦，搏动间隔应恒为 20
	for _, iv := range result.Intervals {
		assert.Equal(t, 20, iv)
	}
	assert.InDelta(t, 20.0, result.MeanInterval(), 1e-9)
}

func TestDetectPeaks_RefractoryDebounce(t *testing.T) {
	// 周期 12 的正弦：峰间隔 12 < 不应期 15，每隔一个候选峰被去抖吞掉
	signal := make([]float64, 120)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * float64(i) / 12)
	}

	result := DetectPeaks(signal)
	require.NotEmpty(t, result.Intervals)
	for _, iv := range result.Intervals {
		assert.GreaterOrEqual(t, iv, refractorySamples)
	}
}

func TestDetectPeaks_FlatSignalUsesFallbackSNR(t *testing.T) {
	result := DetectPeaks(make([]float64, 50))
	assert.Empty(t, result.Peaks)
	assert.Empty(t, result.Intervals)
	assert.Equal(t, fallbackSNR, result.SNR)
}

func TestDetectPeaks_NegativePeaksIgnored(t *testing.T) {
	// 全负信号没有候选峰（要求幅度 > 0）
	signal := make([]float64, 60)
	for i := range signal {
		signal[i] = -1 + 0.5*math.Sin(2*math.Pi*float64(i)/20)
	}
	result := DetectPeaks(signal)
	assert.Empty(t, result.Peaks)
}

func TestDetectPeaks_SNRIsLogRatio(t *testing.T) {
	signal := make([]float64, 120)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * float64(i) / 24)
	}
	result := DetectPeaks(signal)
	require.Greater(t, result.MaxPeak, 0.0)
	require.Greater(t, result.NoiseFloor, 0.0)
	expected := 20 * math.Log10(result.MaxPeak/result.NoiseFloor)
	assert.InDelta(t, expected, result.SNR, 1e-9)
}
