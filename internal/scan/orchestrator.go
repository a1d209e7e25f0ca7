package scan

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/madhesh935/HS---Health-Smart/internal/rppg"

	"go.uber.org/zap"
)

// SnapshotFunc 每处理一帧实时快照的回调（连续模式推送给 UI）
type SnapshotFunc func(snapshot rppg.VitalsSnapshot)

// Orchestrator 扫描编排器
//
// 单协程帧循环：从帧源逐帧拉取、同步喂给会话，任一时刻只有一帧在途，
// 帧严格按到达顺序处理。任何退出路径（自然完成、出错、上下文取消）
// 都会释放帧源；释放失败只记日志，绝不阻塞收尾。
type Orchestrator struct {
	session    *Session
	source     FrameSource
	logger     *zap.Logger
	onSnapshot SnapshotFunc
}

// NewOrchestrator 创建扫描编排器
func NewOrchestrator(session *Session, source FrameSource, logger *zap.Logger, onSnapshot SnapshotFunc) *Orchestrator {
	return &Orchestrator{
		session:    session,
		source:     source,
		logger:     logger,
		onSnapshot: onSnapshot,
	}
}

// Run 驱动帧循环直至会话结束
//
// 返回最终结果（COMPLETE）；上下文取消或源出错时会话转入 FAILED 并返回错误。
func (o *Orchestrator) Run(ctx context.Context) (rppg.VitalsSnapshot, error) {
	defer func() {
		if err := o.source.Close(); err != nil {
			// 资源释放失败记录但不向上传播：收尾必须完成
			o.logger.Warn("Failed to close frame source",
				zap.String("session_id", o.session.ID),
				zap.Error(err),
			)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			o.session.Fail("scan cancelled")
			return rppg.VitalsSnapshot{}, err
		}

		sample, err := o.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			o.session.Fail("frame source error")
			return rppg.VitalsSnapshot{}, fmt.Errorf("read frame: %w", err)
		}

		snapshot, ok, err := o.session.HandleSample(sample)
		if errors.Is(err, ErrSessionComplete) {
			break
		}
		if err != nil {
			o.session.Fail("estimation error")
			return rppg.VitalsSnapshot{}, err
		}
		if ok && o.onSnapshot != nil {
			o.onSnapshot(snapshot)
		}

		if o.session.State() == StateComplete {
			break
		}
	}

	result, found := o.session.Result()
	if !found {
		o.session.Fail("frame source exhausted before completion")
		return rppg.VitalsSnapshot{}, fmt.Errorf("scan ended without result: state=%s progress=%.1f",
			o.session.State(), o.session.Progress())
	}

	o.logger.Info("Scan completed",
		zap.String("session_id", o.session.ID),
		zap.String("patient_id", o.session.PatientID),
		zap.String("mode", string(o.session.Mode)),
		zap.Int("heart_rate", result.HeartRate),
	)
	return result, nil
}
