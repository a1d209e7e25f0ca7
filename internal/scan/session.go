// Package scan 管理一次生命体征扫描的会话状态与帧驱动编排。
//
// 会话状态机严格单向：INIT → SCANNING → COMPLETE，进度单调不减；
// 设备不可用进入独立的 FAILED 终态（区别于 COMPLETE）。COMPLETE 之后
// 不再接受任何采样，重新扫描必须构造新会话。
package scan

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
)

// State 扫描会话状态
type State int

const (
	StateInit State = iota
	StateScanning
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateScanning:
		return "SCANNING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Mode 扫描模式：连续实时估计 / 固定时长批量估计
type Mode string

const (
	ModeContinuous Mode = "continuous"
	ModeBatch      Mode = "batch"
)

var (
	// ErrSessionComplete 会话已结束（COMPLETE 或 FAILED），不再接受采样
	ErrSessionComplete = errors.New("scan: session already terminal")
	// ErrNotComplete 扫描尚未完成，没有可确认的结果
	ErrNotComplete = errors.New("scan: session not complete")
	// ErrAlreadyConfirmed 结果已确认保存过
	ErrAlreadyConfirmed = errors.New("scan: result already confirmed")
)

// Session 一次扫描会话
//
// 会话由单个帧循环驱动写入（单生产者），门户 HTTP 端只读状态，
// 用互斥锁保护两侧访问。
type Session struct {
	mu sync.Mutex

	ID        string
	PatientID string
	Mode      Mode

	state   State
	frames  int // 已处理帧数
	target  int // 计划处理的总帧数
	started time.Time

	estimator rppg.VitalEstimator
	latest    rppg.VitalsSnapshot
	hasLatest bool
	result    *rppg.VitalsSnapshot
	confirmed bool
	failCause string
}

// NewSession 创建扫描会话
//
// targetFrames 为本次扫描计划处理的总帧数（批量变体按 30 fps × 扫描秒数），
// 进度为已处理帧数占 targetFrames 的百分比。
func NewSession(id, patientID string, mode Mode, estimator rppg.VitalEstimator, targetFrames int) *Session {
	if targetFrames < 1 {
		targetFrames = 1
	}
	return &Session{
		ID:        id,
		PatientID: patientID,
		Mode:      mode,
		state:     StateInit,
		target:    targetFrames,
		estimator: estimator,
	}
}

// HandleSample 处理一帧样本
//
// 第一帧（摄像头就绪）触发 INIT→SCANNING。连续模式下未检测到人脸的帧
// 整帧跳过且不推进度；批量模式进度按帧推进（以恒定帧率近似真实时间），
// 样本是否进入窗口由估计器内部的皮肤判定门控决定。
// 进度到 100 时转入 COMPLETE 并产出最终结果；之后调用返回 ErrSessionComplete。
func (s *Session) HandleSample(sample rppg.FrameSample) (rppg.VitalsSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateComplete, StateFailed:
		return rppg.VitalsSnapshot{}, false, ErrSessionComplete
	case StateInit:
		s.state = StateScanning
		s.started = time.Now()
	}

	// 连续模式：无人脸帧跳过，不推进度
	if s.Mode == ModeContinuous && len(sample.Landmarks) == 0 {
		return s.latest, false, nil
	}

	snapshot, ok := s.estimator.Feed(sample)
	if ok {
		s.latest = snapshot
		s.hasLatest = true
	}

	// 进度按整数帧计数：第 target 帧必须恰好落到 100，
	// 浮点累加在 100/target 除不尽时永远到不了
	s.frames++
	if s.frames >= s.target {
		if err := s.complete(); err != nil {
			return s.latest, ok, err
		}
	}

	return s.latest, ok, nil
}

// complete 进度到达 100：产出最终结果并转入终态（持锁调用）
func (s *Session) complete() error {
	final, err := s.estimator.Finalize()
	if err != nil {
		return fmt.Errorf("finalize scan: %w", err)
	}
	s.result = &final
	s.state = StateComplete
	return nil
}

// Fail 设备失败等原因终止会话（终态，区别于 COMPLETE）
func (s *Session) Fail(cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete || s.state == StateFailed {
		return
	}
	s.state = StateFailed
	s.failCause = cause
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress 当前进度（0–100）
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames >= s.target {
		return 100
	}
	return 100 * float64(s.frames) / float64(s.target)
}

// FailCause 失败原因（仅 FAILED 态有意义）
func (s *Session) FailCause() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failCause
}

// Latest 最近一次实时快照（连续模式）
func (s *Session) Latest() (rppg.VitalsSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Result 最终结果（COMPLETE 之后可用）
func (s *Session) Result() (rppg.VitalsSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return rppg.VitalsSnapshot{}, false
	}
	return *s.result, true
}

// Confirm 用户显式确认结果用于保存报告
//
// 结果绝不自动提交：只有确认后才交给报告服务持久化，且只能确认一次。
func (s *Session) Confirm() (rppg.VitalsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete || s.result == nil {
		return rppg.VitalsSnapshot{}, ErrNotComplete
	}
	if s.confirmed {
		return rppg.VitalsSnapshot{}, ErrAlreadyConfirmed
	}
	s.confirmed = true
	return *s.result, nil
}
