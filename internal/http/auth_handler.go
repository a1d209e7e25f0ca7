package httpapi

import (
	"errors"
	"net/http"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/service"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	"go.uber.org/zap"
)

// AuthHandler OTP 登录 Handler
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandler 创建登录 Handler
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// RequestCode 请求下发验证码
// POST /portal/api/v1/auth/request-code {mobile}
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mobile string `json:"mobile"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil || req.Mobile == "" {
		writeJSON(w, http.StatusBadRequest, Fail("mobile is required"))
		return
	}

	if err := h.auth.RequestCode(r.Context(), req.Mobile); err != nil {
		if errors.Is(err, service.ErrUnknownMobile) {
			writeJSON(w, http.StatusNotFound, Fail("mobile not registered"))
			return
		}
		h.logger.Error("Request code failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to send code"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"sent": true}))
}

// VerifyCode 校验验证码并签发令牌
// POST /portal/api/v1/auth/verify-code {mobile, code}
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mobile string `json:"mobile"`
		Code   string `json:"code"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil || req.Mobile == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, Fail("mobile and code are required"))
		return
	}

	token, patient, err := h.auth.VerifyCode(r.Context(), req.Mobile, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownMobile):
			writeJSON(w, http.StatusNotFound, Fail("mobile not registered"))
		case errors.Is(err, store.ErrCodeExpired):
			writeJSON(w, http.StatusUnauthorized, Fail("code expired, request a new one"))
		case errors.Is(err, store.ErrCodeMismatch):
			writeJSON(w, http.StatusUnauthorized, Fail("code mismatch"))
		case errors.Is(err, store.ErrTooManyAttempts):
			writeJSON(w, http.StatusUnauthorized, Fail("too many attempts, request a new code"))
		default:
			h.logger.Error("Verify code failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to verify code"))
		}
		return
	}

	writeJSON(w, http.StatusOK, Ok(struct {
		Token   string          `json:"token"`
		Patient *models.Patient `json:"patient"`
	}{Token: token, Patient: patient}))
}

// Logout 登出
// POST /portal/api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.Warn("Logout failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"logged_out": true}))
}
