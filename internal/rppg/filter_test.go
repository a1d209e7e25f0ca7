package rppg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondition_OutputLength(t *testing.T) {
	for _, n := range []int{3, 10, 100, 1050} {
		raw := make([]float64, n)
		for i := range raw {
			raw[i] = float64(i % 7)
		}
		out, err := Condition(raw)
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, out, n-2, "n=%d", n)
	}
}

func TestCondition_TooShort(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		_, err := Condition(make([]float64, n))
		assert.ErrorIs(t, err, ErrSignalTooShort, "n=%d", n)
	}
}

func TestCondition_RemovesConstantBaseline(t *testing.T) {
	raw := make([]float64, 60)
	for i := range raw {
		raw[i] = 128.0
	}
	out, err := Condition(raw)
	require.NoError(t, err)
	for i, v := range out {
		assert.InDelta(t, 0.0, v, 1e-9, "index=%d", i)
	}
}

func TestCondition_RemovesSlowDrift(t *testing.T) {
	// 慢速线性漂移（模拟光照变化）应被去趋势大幅削减
	raw := make([]float64, 200)
	for i := range raw {
		raw[i] = 100 + 0.5*float64(i) + 3*math.Sin(2*math.Pi*float64(i)/20)
	}
	out, err := Condition(raw)
	require.NoError(t, err)

	// 中段（避开窗口截断的边缘）幅度应接近纯正弦分量，不含漂移
	for i := 20; i < len(out)-20; i++ {
		assert.Less(t, math.Abs(out[i]), 5.0, "index=%d", i)
	}
}
