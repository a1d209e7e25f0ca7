package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
)

// 实时生命体征缓存
//
// 连续扫描每处理一帧就刷新一次：vitals:patient:<id>:live，
// 带短 TTL（扫描停止后自动消失），门户 UI 轮询读取。

const (
	liveVitalsKeyPrefix = "vitals:patient:"
	liveVitalsKeySuffix = ":live"
)

type liveVitals struct {
	Snapshot  rppg.VitalsSnapshot `json:"snapshot"`
	UpdatedAt int64               `json:"updated_at"`
}

// VitalsCache 实时快照缓存
type VitalsCache struct {
	kv  KV
	ttl time.Duration
}

// NewVitalsCache 创建实时快照缓存，ttl 建议秒级
func NewVitalsCache(kv KV, ttl time.Duration) *VitalsCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &VitalsCache{kv: kv, ttl: ttl}
}

// SetLive 刷新患者的实时快照
func (c *VitalsCache) SetLive(ctx context.Context, patientID string, snapshot rppg.VitalsSnapshot) error {
	raw, err := json.Marshal(liveVitals{
		Snapshot:  snapshot,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, liveVitalsKeyPrefix+patientID+liveVitalsKeySuffix, string(raw), c.ttl)
}

// GetLive 读取患者的实时快照；无活跃扫描时返回 ErrMiss
func (c *VitalsCache) GetLive(ctx context.Context, patientID string) (rppg.VitalsSnapshot, error) {
	raw, err := c.kv.Get(ctx, liveVitalsKeyPrefix+patientID+liveVitalsKeySuffix)
	if errors.Is(err, ErrMiss) {
		return rppg.VitalsSnapshot{}, ErrMiss
	}
	if err != nil {
		return rppg.VitalsSnapshot{}, fmt.Errorf("read live vitals: %w", err)
	}

	var rec liveVitals
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return rppg.VitalsSnapshot{}, fmt.Errorf("decode live vitals: %w", err)
	}
	return rec.Snapshot, nil
}
