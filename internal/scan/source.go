package scan

import (
	"context"
	"io"
	"math"
	"math/rand"
	"sync"

	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
)

// FrameSource 帧样本来源（摄像头采集端的抽象）
//
// Next 按到达顺序逐帧返回样本，源耗尽时返回 io.EOF。
// Close 释放底层设备资源，必须在会话的每条退出路径上调用。
type FrameSource interface {
	Next(ctx context.Context) (rppg.FrameSample, error)
	Close() error
}

// SyntheticSource 合成数据帧源
//
// 摄像头不可用时的显式回退模式：生成带噪声的周期性脉搏样信号。
// 这是用户可见的明确选择，绝不静默替代真实设备。
type SyntheticSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	frame  int
	total  int
	period float64
	closed bool
}

// NewSyntheticSource 创建合成帧源
//
// period 为模拟脉搏周期（帧数，30 fps 下 25 帧约对应 72 bpm），
// total 为产出的总帧数，seed 固定时输出可复现。
func NewSyntheticSource(total int, period float64, seed int64) *SyntheticSource {
	if period <= 0 {
		period = 25
	}
	return &SyntheticSource{
		rng:    rand.New(rand.NewSource(seed)),
		total:  total,
		period: period,
	}
}

// Next 生成下一帧合成样本
func (s *SyntheticSource) Next(ctx context.Context) (rppg.FrameSample, error) {
	if err := ctx.Err(); err != nil {
		return rppg.FrameSample{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rppg.FrameSample{}, io.EOF
	}
	if s.frame >= s.total {
		return rppg.FrameSample{}, io.EOF
	}

	i := float64(s.frame)
	s.frame++

	green := 120 + 4*math.Sin(2*math.Pi*(i+0.3)/s.period) + s.rng.Float64()*0.5
	return rppg.FrameSample{
		Landmarks:   syntheticFace(),
		TimestampMS: int64(i * 1000 / rppg.AssumedFPS),
		Green:       green,
		Red:         green * 1.12,
		Brightness:  105,
	}, nil
}

// Close 标记源已释放；幂等
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed 源是否已释放（测试用）
func (s *SyntheticSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// syntheticFace 一组睁眼中性表情的关键点
func syntheticFace() []rppg.Landmark {
	pts := make([]rppg.Landmark, rppg.MinLandmarks)
	for i := range pts {
		pts[i] = rppg.Landmark{X: 0.5, Y: 0.5}
	}
	pts[rppg.ForeheadLandmark] = rppg.Landmark{X: 0.5, Y: 0.22}
	// 左眼六点：EAR ≈ 0.3（睁眼）
	pts[33] = rppg.Landmark{X: 0.30, Y: 0.40}
	pts[133] = rppg.Landmark{X: 0.40, Y: 0.40}
	pts[160] = rppg.Landmark{X: 0.33, Y: 0.385}
	pts[144] = rppg.Landmark{X: 0.33, Y: 0.415}
	pts[158] = rppg.Landmark{X: 0.37, Y: 0.385}
	pts[153] = rppg.Landmark{X: 0.37, Y: 0.415}
	return pts
}
