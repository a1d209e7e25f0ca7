package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	"go.uber.org/zap"
)

// ErrUnknownMobile 手机号未登记为患者
var ErrUnknownMobile = errors.New("auth: mobile not registered")

// SMSSender 验证码下发方
type SMSSender interface {
	SendCode(mobile, code string) error
}

// AuthService OTP 登录服务
//
// 登录流程：手机号请求验证码 → 短信网关下发 → 提交验证码换取
// 不透明会话令牌。验证码一次性消耗，令牌落 Redis 带 TTL。
type AuthService struct {
	otp      *store.OTPStore
	tokens   *store.TokenStore
	patients *repository.PatientRepository
	sms      SMSSender
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAuthService 创建登录服务
func NewAuthService(
	otp *store.OTPStore,
	tokens *store.TokenStore,
	patients *repository.PatientRepository,
	sms SMSSender,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		otp:      otp,
		tokens:   tokens,
		patients: patients,
		sms:      sms,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RequestCode 为已登记的手机号生成并下发验证码
func (s *AuthService) RequestCode(ctx context.Context, mobile string) error {
	if _, err := s.patients.GetByMobile(mobile); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownMobile
		}
		return fmt.Errorf("lookup patient: %w", err)
	}

	code := s.newCode()
	if err := s.otp.Save(ctx, mobile, code); err != nil {
		return fmt.Errorf("save otp code: %w", err)
	}

	if err := s.sms.SendCode(mobile, code); err != nil {
		return fmt.Errorf("send otp code: %w", err)
	}

	return nil
}

// VerifyCode 校验验证码并签发会话令牌
//
// 返回令牌与患者档案；验证码错误原样透出 store 层错误
// （ErrCodeExpired / ErrCodeMismatch / ErrTooManyAttempts）。
func (s *AuthService) VerifyCode(ctx context.Context, mobile, code string) (string, *models.Patient, error) {
	patient, err := s.patients.GetByMobile(mobile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrUnknownMobile
		}
		return "", nil, fmt.Errorf("lookup patient: %w", err)
	}

	if err := s.otp.Verify(ctx, mobile, code); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(ctx, store.Identity{
		SubjectID:  patient.PatientID,
		HospitalID: patient.HospitalID,
		Role:       "patient",
	})
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("Patient logged in",
		zap.String("patient_id", patient.PatientID),
		zap.String("hospital_id", patient.HospitalID),
	)
	return token, patient, nil
}

// Logout 注销会话令牌
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// newCode 生成 6 位数字验证码
func (s *AuthService) newCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%06d", s.rng.Intn(1000000))
}
