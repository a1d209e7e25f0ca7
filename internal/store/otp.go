package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OTP 验证码存取
//
// 验证码按手机号落在 Redis：otp:code:<mobile>，带 TTL 与尝试次数上限。
// 码本体由 AuthService 生成，这里只负责存取与消耗。

var (
	// ErrCodeExpired 验证码不存在或已过期
	ErrCodeExpired = errors.New("otp: code expired or not requested")
	// ErrCodeMismatch 验证码不匹配
	ErrCodeMismatch = errors.New("otp: code mismatch")
	// ErrTooManyAttempts 超过尝试次数上限
	ErrTooManyAttempts = errors.New("otp: too many attempts")
)

const (
	otpKeyPrefix   = "otp:code:"
	otpMaxAttempts = 5
)

type otpRecord struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

// OTPStore Redis 支撑的验证码存储
type OTPStore struct {
	kv  KV
	ttl time.Duration
}

// NewOTPStore 创建验证码存储，ttl 为验证码有效期
func NewOTPStore(kv KV, ttl time.Duration) *OTPStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPStore{kv: kv, ttl: ttl}
}

// Save 保存一次新下发的验证码（重置尝试计数）
func (s *OTPStore) Save(ctx context.Context, mobile, code string) error {
	rec, err := json.Marshal(otpRecord{Code: code})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, otpKeyPrefix+mobile, string(rec), s.ttl)
}

// Verify 校验验证码
//
// 匹配成功即消耗（删除）；失败累加尝试计数，超限后作废。
func (s *OTPStore) Verify(ctx context.Context, mobile, code string) error {
	key := otpKeyPrefix + mobile

	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("read otp record: %w", err)
	}

	var rec otpRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("decode otp record: %w", err)
	}

	if rec.Attempts >= otpMaxAttempts {
		_ = s.kv.Del(ctx, key)
		return ErrTooManyAttempts
	}

	if rec.Code != code {
		rec.Attempts++
		if updated, err := json.Marshal(rec); err == nil {
			_ = s.kv.Set(ctx, key, string(updated), s.ttl)
		}
		return ErrCodeMismatch
	}

	// 一次性消耗
	_ = s.kv.Del(ctx, key)
	return nil
}
