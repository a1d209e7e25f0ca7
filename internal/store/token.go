package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrTokenInvalid 令牌不存在或已过期
var ErrTokenInvalid = errors.New("token: invalid or expired")

const tokenKeyPrefix = "auth:token:"

// Identity 登录身份（会话状态本体由外部存储承载，这里只是不透明令牌映射）
type Identity struct {
	SubjectID  string `json:"subject_id"` // 患者或员工 ID
	HospitalID string `json:"hospital_id"`
	Role       string `json:"role"` // "patient" | "staff"
}

// TokenStore Redis 支撑的不透明会话令牌存储
type TokenStore struct {
	kv  KV
	ttl time.Duration
}

// NewTokenStore 创建令牌存储，ttl 为会话有效期
func NewTokenStore(kv KV, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStore{kv: kv, ttl: ttl}
}

// Issue 为身份签发新令牌
func (s *TokenStore) Issue(ctx context.Context, identity Identity) (string, error) {
	token := uuid.NewString()
	raw, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, tokenKeyPrefix+token, string(raw), s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup 解析令牌对应的身份
func (s *TokenStore) Lookup(ctx context.Context, token string) (Identity, error) {
	raw, err := s.kv.Get(ctx, tokenKeyPrefix+token)
	if errors.Is(err, ErrMiss) {
		return Identity{}, ErrTokenInvalid
	}
	if err != nil {
		return Identity{}, err
	}

	var identity Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Revoke 注销令牌（登出）
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.kv.Del(ctx, tokenKeyPrefix+token)
}
