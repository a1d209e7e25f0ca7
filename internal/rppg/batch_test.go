package rppg

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedPeriodic 喂入周期为 period 帧的合成脉搏信号（通过皮肤判定门控）
func feedPeriodic(est *BatchEstimator, frames int, period float64) {
	for i := 0; i < frames; i++ {
		// 0.3 帧相位偏移让峰值落在采样点之间，避免对称样本并列最大
		green := 120 + 5*math.Sin(2*math.Pi*(float64(i)+0.3)/period)
		est.Feed(FrameSample{
			Green:      green,
			Red:        green * 1.15,
			Brightness: 110,
		})
	}
}

func TestBatch_RecoversKnownPeriod(t *testing.T) {
	// 周期 P 帧、30 fps 的理想周期信号，心率应落在 60·30/P ±5 bpm
	for _, period := range []float64{20, 25, 30} {
		est := NewBatchEstimator(rand.New(rand.NewSource(1)))
		feedPeriodic(est, 900, period)

		snap, err := est.Finalize()
		require.NoError(t, err)

		expected := 60 * AssumedFPS / period
		assert.InDelta(t, expected, float64(snap.HeartRate), 5, "period=%v", period)
	}
}

func TestBatch_HeartRateBandsPerLadder(t *testing.T) {
	// IBI 路径结果必须落在 [40,200]
	est := NewBatchEstimator(rand.New(rand.NewSource(2)))
	feedPeriodic(est, 900, 22)
	snap, err := est.Finalize()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snap.HeartRate, 40)
	assert.LessOrEqual(t, snap.HeartRate, 200)
}

func TestBatch_FallbackOnFlatSignal(t *testing.T) {
	// 无峰信号：阶梯落到固定回退值 72
	est := NewBatchEstimator(rand.New(rand.NewSource(3)))
	for i := 0; i < 300; i++ {
		est.Feed(FrameSample{Green: 120, Red: 140, Brightness: 110})
	}
	snap, err := est.Finalize()
	require.NoError(t, err)
	assert.Equal(t, fallbackHeartRate, snap.HeartRate)
}

func TestBatch_FallbackOnEmptyBuffer(t *testing.T) {
	est := NewBatchEstimator(rand.New(rand.NewSource(4)))
	snap, err := est.Finalize()
	require.NoError(t, err)
	assert.Equal(t, fallbackHeartRate, snap.HeartRate)
	assert.Equal(t, fallbackSNR, snap.SNR)
}

func TestBatch_SkinGateRejectsNonSkinFrames(t *testing.T) {
	est := NewBatchEstimator(rand.New(rand.NewSource(5)))

	// 绿色占优（非肤色）与低亮度帧不进入窗口
	est.Feed(FrameSample{Green: 200, Red: 100, Brightness: 110})
	est.Feed(FrameSample{Green: 120, Red: 140, Brightness: 5})
	assert.Equal(t, 0, est.SampleCount())

	est.Feed(FrameSample{Green: 120, Red: 140, Brightness: 110})
	assert.Equal(t, 1, est.SampleCount())
}

func TestBatch_WindowCappedAtCapacity(t *testing.T) {
	est := NewBatchEstimator(rand.New(rand.NewSource(6)))
	feedPeriodic(est, BatchCapacity+500, 20)
	assert.Equal(t, BatchCapacity, est.SampleCount())
}

func TestBatch_DerivedVitalsPlausible(t *testing.T) {
	est := NewBatchEstimator(rand.New(rand.NewSource(7)))
	feedPeriodic(est, 900, 24)

	snap, err := est.Finalize()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snap.SpO2, 94)
	assert.LessOrEqual(t, snap.SpO2, 99)
	assert.Contains(t, []string{"Optimal", "Moderate", "Elevated"}, snap.StressCategory)
	assert.InDelta(t, float64(snap.HeartRate)/4.4, float64(snap.RespiratoryRate), 1)
	assert.GreaterOrEqual(t, snap.Systolic, 90)
	assert.LessOrEqual(t, snap.Systolic, 180)
	assert.GreaterOrEqual(t, snap.Diastolic, 60)
	assert.LessOrEqual(t, snap.Diastolic, 120)
	assert.Regexp(t, `^\d+/\d+$`, snap.BloodPressure)
	assert.Greater(t, snap.Hemoglobin, 11.0)
	assert.Less(t, snap.Hemoglobin, 16.0)
	assert.Greater(t, snap.Temperature, 35.5)
	assert.Less(t, snap.Temperature, 37.5)
}

func TestBatch_DeterministicWithFixedSeed(t *testing.T) {
	run := func() VitalsSnapshot {
		est := NewBatchEstimator(rand.New(rand.NewSource(42)))
		feedPeriodic(est, 600, 24)
		snap, err := est.Finalize()
		require.NoError(t, err)
		return snap
	}
	assert.Equal(t, run(), run())
}

func TestBatch_FeedNeverEmitsSnapshot(t *testing.T) {
	est := NewBatchEstimator(rand.New(rand.NewSource(8)))
	for i := 0; i < 50; i++ {
		_, ok := est.Feed(FrameSample{Green: 120, Red: 140, Brightness: 110})
		assert.False(t, ok)
	}
}
