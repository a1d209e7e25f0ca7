// Package consumer MQTT 帧样本消费者
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqttcommon "github.com/madhesh935/HS---Health-Smart/internal/common/mqtt"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
	"github.com/madhesh935/HS---Health-Smart/internal/service"

	"go.uber.org/zap"
)

// Metrics 消费指标
type Metrics struct {
	mu sync.RWMutex

	FramesProcessed int64 // 处理的帧总数
	FramesSucceeded int64 // 成功喂入会话的帧数
	FramesSkipped   int64 // 跳过的帧数（无活跃扫描等）
	ErrorsParse     int64 // 解析错误
	ErrorsFeed      int64 // 会话处理错误
}

// Snapshot 指标快照（线程安全）
func (m *Metrics) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FramesProcessed: m.FramesProcessed,
		FramesSucceeded: m.FramesSucceeded,
		FramesSkipped:   m.FramesSkipped,
		ErrorsParse:     m.ErrorsParse,
		ErrorsFeed:      m.ErrorsFeed,
	}
}

func (m *Metrics) add(f func(*Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(m)
}

// FrameConsumer 帧样本 MQTT 消费者
//
// 采集端（患者浏览器/App 的摄像头管线）把逐帧样本发布到
// rppg/{mobile}/frames，这里按手机号解析患者并路由到活跃扫描会话。
// 帧按 MQTT 到达顺序处理，任一时刻只有一帧在途。
type FrameConsumer struct {
	mqttClient *mqttcommon.Client
	patients   *repository.PatientRepository
	scans      *service.ScanService
	topic      string
	logger     *zap.Logger
	metrics    Metrics
}

// NewFrameConsumer 创建帧消费者；topic 形如 "rppg/+/frames"
func NewFrameConsumer(
	mqttClient *mqttcommon.Client,
	patients *repository.PatientRepository,
	scans *service.ScanService,
	topic string,
	logger *zap.Logger,
) *FrameConsumer {
	return &FrameConsumer{
		mqttClient: mqttClient,
		patients:   patients,
		scans:      scans,
		topic:      topic,
		logger:     logger,
	}
}

// Start 启动消费者
func (c *FrameConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.topic, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to frame topic: %w", err)
	}

	c.logger.Info("Frame consumer started",
		zap.String("topic", c.topic),
	)
	return nil
}

// Stop 停止消费者
func (c *FrameConsumer) Stop() error {
	if err := c.mqttClient.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}
	c.logger.Info("Frame consumer stopped")
	return nil
}

// MetricsSnapshot 当前消费指标
func (c *FrameConsumer) MetricsSnapshot() Metrics {
	return c.metrics.Snapshot()
}

// handleMessage 处理一条帧消息
func (c *FrameConsumer) handleMessage(topic string, payload []byte) error {
	c.metrics.add(func(m *Metrics) { m.FramesProcessed++ })

	// 主题格式: rppg/{mobile}/frames
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		c.metrics.add(func(m *Metrics) { m.ErrorsParse++ })
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	mobile := parts[1]

	var sample rppg.FrameSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		c.metrics.add(func(m *Metrics) { m.ErrorsParse++ })
		c.logger.Error("Failed to unmarshal frame sample",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal frame sample: %w", err)
	}

	patient, err := c.patients.GetByMobile(mobile)
	if err != nil {
		c.metrics.add(func(m *Metrics) { m.FramesSkipped++ })
		c.logger.Warn("Frame from unknown mobile",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("patient not found for mobile")
	}

	err = c.scans.HandleFrame(context.Background(), patient.PatientID, sample)
	if err != nil {
		if err == service.ErrNoScan {
			// 扫描未开启或已结束：帧直接丢弃
			c.metrics.add(func(m *Metrics) { m.FramesSkipped++ })
			return nil
		}
		c.metrics.add(func(m *Metrics) { m.ErrorsFeed++ })
		return fmt.Errorf("handle frame: %w", err)
	}

	c.metrics.add(func(m *Metrics) { m.FramesSucceeded++ })
	return nil
}
