package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rediscommon "github.com/madhesh935/HS---Health-Smart/internal/common/redis"
	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
	"github.com/madhesh935/HS---Health-Smart/internal/scan"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 扫描参数
const (
	// 批量模式默认扫描时长（秒），30 fps 下正好填满信号窗口
	defaultBatchSeconds = 35
	// 连续模式默认时长
	defaultContinuousSeconds = 30
	// VitalsStream 实时快照流（下游订阅：告警、趋势看板）
	VitalsStream = "vitals:stream"
)

var (
	// ErrScanActive 患者已有进行中的扫描
	ErrScanActive = errors.New("scan: patient already has an active scan")
	// ErrNoScan 患者没有进行中的扫描
	ErrNoScan = errors.New("scan: no active scan for patient")
)

// ScanStatus 扫描状态快照（门户轮询用）
type ScanStatus struct {
	SessionID string               `json:"session_id"`
	Mode      string               `json:"mode"`
	State     string               `json:"state"`
	Progress  float64              `json:"progress"`
	FailCause string               `json:"fail_cause,omitempty"`
	Latest    *rppg.VitalsSnapshot `json:"latest,omitempty"`
	Result    *rppg.VitalsSnapshot `json:"result,omitempty"`
}

// ScanService 扫描会话服务
//
// 每个患者同一时刻最多一个活跃会话。帧有两条来路：MQTT 消费者
// 按患者路由真实采集帧（HandleFrame），或摄像头不可用时由用户显式
// 选择合成回退（编排器协程驱动 SyntheticSource）。
type ScanService struct {
	mu       sync.Mutex
	sessions map[string]*scan.Session // patientID → 活跃会话

	patients *repository.PatientRepository
	reports  *ReportService
	vitals   *store.VitalsCache
	redis    *redis.Client
	logger   *zap.Logger
}

// NewScanService 创建扫描服务
func NewScanService(
	patients *repository.PatientRepository,
	reports *ReportService,
	vitals *store.VitalsCache,
	redisClient *redis.Client,
	logger *zap.Logger,
) *ScanService {
	return &ScanService{
		sessions: make(map[string]*scan.Session),
		patients: patients,
		reports:  reports,
		vitals:   vitals,
		redis:    redisClient,
		logger:   logger,
	}
}

// Start 为患者开启一次扫描
//
// synthetic 为 true 时走合成回退：后台协程驱动合成帧源直至会话结束。
// 否则会话挂起等待 MQTT 帧（摄像头采集端推送）。
func (s *ScanService) Start(ctx context.Context, patientID string, mode scan.Mode, durationSec int, synthetic bool) (*ScanStatus, error) {
	patient, err := s.patients.GetByID(patientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	if durationSec <= 0 {
		if mode == scan.ModeBatch {
			durationSec = defaultBatchSeconds
		} else {
			durationSec = defaultContinuousSeconds
		}
	}
	targetFrames := durationSec * int(rppg.AssumedFPS)

	session := scan.NewSession(uuid.NewString(), patientID, mode, newEstimator(mode, patient), targetFrames)

	s.mu.Lock()
	if existing, ok := s.sessions[patientID]; ok {
		state := existing.State()
		if state == scan.StateInit || state == scan.StateScanning {
			s.mu.Unlock()
			return nil, ErrScanActive
		}
		// 已终结的旧会话直接替换
	}
	s.sessions[patientID] = session
	s.mu.Unlock()

	s.logger.Info("Scan started",
		zap.String("session_id", session.ID),
		zap.String("patient_id", patientID),
		zap.String("mode", string(mode)),
		zap.Bool("synthetic", synthetic),
		zap.Int("target_frames", targetFrames),
	)

	if synthetic {
		source := scan.NewSyntheticSource(targetFrames, 25, time.Now().UnixNano())
		orch := scan.NewOrchestrator(session, source, s.logger, func(snapshot rppg.VitalsSnapshot) {
			s.publishLive(context.Background(), patientID, snapshot)
		})
		go func() {
			if _, err := orch.Run(context.Background()); err != nil {
				s.logger.Warn("Synthetic scan ended with error",
					zap.String("session_id", session.ID),
					zap.Error(err),
				)
			}
		}()
	}

	return s.statusOf(session), nil
}

// HandleFrame 处理一帧真实采集样本（由 MQTT 消费者调用）
func (s *ScanService) HandleFrame(ctx context.Context, patientID string, sample rppg.FrameSample) error {
	session, err := s.active(patientID)
	if err != nil {
		return err
	}

	snapshot, ok, err := session.HandleSample(sample)
	if errors.Is(err, scan.ErrSessionComplete) {
		return nil
	}
	if err != nil {
		session.Fail("estimation error")
		return err
	}
	if ok {
		s.publishLive(ctx, patientID, snapshot)
	}
	return nil
}

// Status 当前扫描状态
func (s *ScanService) Status(patientID string) (*ScanStatus, error) {
	s.mu.Lock()
	session, ok := s.sessions[patientID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoScan
	}
	return s.statusOf(session), nil
}

// Cancel 终止进行中的扫描
func (s *ScanService) Cancel(patientID, cause string) error {
	session, err := s.active(patientID)
	if err != nil {
		return err
	}
	if cause == "" {
		cause = "cancelled by user"
	}
	session.Fail(cause)
	return nil
}

// Confirm 用户确认扫描结果，保存为报告并关闭会话
func (s *ScanService) Confirm(patientID, notes string) (*models.Report, error) {
	s.mu.Lock()
	session, ok := s.sessions[patientID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoScan
	}

	result, err := session.Confirm()
	if err != nil {
		return nil, err
	}

	report, err := s.reports.SaveScanResult(patientID, result, notes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.sessions, patientID)
	s.mu.Unlock()
	return report, nil
}

// LiveVitals 读取患者实时快照（连续扫描期间有效）
func (s *ScanService) LiveVitals(ctx context.Context, patientID string) (rppg.VitalsSnapshot, error) {
	return s.vitals.GetLive(ctx, patientID)
}

// active 取患者的未终结会话
func (s *ScanService) active(patientID string) (*scan.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[patientID]
	if !ok {
		return nil, ErrNoScan
	}
	state := session.State()
	if state == scan.StateComplete || state == scan.StateFailed {
		return nil, ErrNoScan
	}
	return session, nil
}

// publishLive 刷新实时缓存并推流（缓存/推流失败只记日志，不打断扫描）
func (s *ScanService) publishLive(ctx context.Context, patientID string, snapshot rppg.VitalsSnapshot) {
	if err := s.vitals.SetLive(ctx, patientID, snapshot); err != nil {
		s.logger.Warn("Failed to cache live vitals",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
	}
	if s.redis != nil {
		payload := map[string]any{
			"patient_id": patientID,
			"snapshot":   snapshot,
		}
		if _, err := rediscommon.PublishJSONToStream(ctx, s.redis, VitalsStream, payload); err != nil {
			s.logger.Warn("Failed to publish vitals to stream",
				zap.String("patient_id", patientID),
				zap.Error(err),
			)
		}
	}
}

func (s *ScanService) statusOf(session *scan.Session) *ScanStatus {
	status := &ScanStatus{
		SessionID: session.ID,
		Mode:      string(session.Mode),
		State:     session.State().String(),
		Progress:  session.Progress(),
		FailCause: session.FailCause(),
	}
	if latest, ok := session.Latest(); ok {
		status.Latest = &latest
	}
	if result, ok := session.Result(); ok {
		status.Result = &result
	}
	return status
}

// newEstimator 按模式构造估计器
func newEstimator(mode scan.Mode, patient *models.Patient) rppg.VitalEstimator {
	if mode == scan.ModeContinuous {
		return rppg.NewContinuousEstimator(patient.Age, nil)
	}
	return rppg.NewBatchEstimator(nil)
}
