package scan

import (
	"math/rand"
	"testing"

	"github.com/madhesh935/HS---Health-Smart/internal/rppg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchSession(targetFrames int) *Session {
	est := rppg.NewBatchEstimator(rand.New(rand.NewSource(1)))
	return NewSession("scan-1", "patient-1", ModeBatch, est, targetFrames)
}

func continuousSession(targetFrames int) *Session {
	est := rppg.NewContinuousEstimator(40, rand.New(rand.NewSource(1)))
	return NewSession("scan-1", "patient-1", ModeContinuous, est, targetFrames)
}

func sampleWithFace() rppg.FrameSample {
	return rppg.FrameSample{
		Landmarks:  syntheticFace(),
		Green:      120,
		Red:        135,
		Brightness: 105,
	}
}

func TestSession_TransitionsAreMonotonic(t *testing.T) {
	s := batchSession(10)
	assert.Equal(t, StateInit, s.State())

	_, _, err := s.HandleSample(sampleWithFace())
	require.NoError(t, err)
	assert.Equal(t, StateScanning, s.State())

	prevProgress := s.Progress()
	for i := 0; i < 9; i++ {
		_, _, err := s.HandleSample(sampleWithFace())
		require.NoError(t, err)
		p := s.Progress()
		assert.GreaterOrEqual(t, p, prevProgress)
		prevProgress = p
	}

	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, 100.0, s.Progress())
}

func TestSession_NoSamplingAfterComplete(t *testing.T) {
	s := batchSession(3)
	for i := 0; i < 3; i++ {
		_, _, err := s.HandleSample(sampleWithFace())
		require.NoError(t, err)
	}
	require.Equal(t, StateComplete, s.State())

	_, _, err := s.HandleSample(sampleWithFace())
	assert.ErrorIs(t, err, ErrSessionComplete)
}

func TestSession_ContinuousSkipsNoFaceWithoutProgress(t *testing.T) {
	s := continuousSession(10)

	_, _, err := s.HandleSample(sampleWithFace())
	require.NoError(t, err)
	after := s.Progress()

	// 无人脸帧：不推进度
	_, ok, err := s.HandleSample(rppg.FrameSample{Green: 120})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, after, s.Progress())
}

func TestSession_BatchProgressAdvancesRegardlessOfGate(t *testing.T) {
	s := batchSession(10)

	// 批量模式按帧推进度（恒定帧率近似真实时间），
	// 即使样本被皮肤判定门控拒收
	_, _, err := s.HandleSample(rppg.FrameSample{Green: 200, Red: 100, Brightness: 5})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, s.Progress(), 1e-9)
}

func TestSession_FailedIsTerminalAndDistinct(t *testing.T) {
	s := batchSession(10)
	_, _, err := s.HandleSample(sampleWithFace())
	require.NoError(t, err)

	s.Fail("camera unavailable")
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, "camera unavailable", s.FailCause())

	_, _, err = s.HandleSample(sampleWithFace())
	assert.ErrorIs(t, err, ErrSessionComplete)

	// FAILED 不会被后续 Fail 或采样改写
	s.Fail("other")
	assert.Equal(t, "camera unavailable", s.FailCause())
}

func TestSession_ConfirmFlow(t *testing.T) {
	s := batchSession(5)

	// 未完成不可确认
	_, err := s.Confirm()
	assert.ErrorIs(t, err, ErrNotComplete)

	for i := 0; i < 5; i++ {
		_, _, err := s.HandleSample(sampleWithFace())
		require.NoError(t, err)
	}
	require.Equal(t, StateComplete, s.State())

	result, err := s.Confirm()
	require.NoError(t, err)
	assert.NotZero(t, result.HeartRate)

	// 只能确认一次
	_, err = s.Confirm()
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestSession_ContinuousEmitsLiveSnapshots(t *testing.T) {
	s := continuousSession(100)

	snap, ok, err := s.HandleSample(sampleWithFace())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, snap.HeartRate, 55)
	assert.LessOrEqual(t, snap.HeartRate, 100)

	latest, has := s.Latest()
	assert.True(t, has)
	assert.Equal(t, snap, latest)
}

func TestSession_CompletesAtExactTargetFrameCount(t *testing.T) {
	// 100/target 除不尽的帧数：第 target 帧必须恰好转 COMPLETE，
	// 不能因浮点累加卡在 99.99… 的 SCANNING
	for _, target := range []int{105, 300, 1050} {
		s := batchSession(target)
		for i := 0; i < target-1; i++ {
			_, _, err := s.HandleSample(sampleWithFace())
			require.NoError(t, err)
		}
		require.Equal(t, StateScanning, s.State(), "target=%d", target)
		assert.Less(t, s.Progress(), 100.0, "target=%d", target)

		_, _, err := s.HandleSample(sampleWithFace())
		require.NoError(t, err)
		assert.Equal(t, StateComplete, s.State(), "target=%d", target)
		assert.Equal(t, 100.0, s.Progress(), "target=%d", target)
	}
}
