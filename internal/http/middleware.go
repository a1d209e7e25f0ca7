package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/madhesh935/HS---Health-Smart/internal/store"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom 从请求上下文取登录身份
func IdentityFrom(r *http.Request) (store.Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(store.Identity)
	return identity, ok
}

// AuthMiddleware Bearer 令牌校验
//
// 令牌无效或缺失统一返回 HTTP 401 + code 60401，前端据此跳回登录页。
type AuthMiddleware struct {
	tokens *store.TokenStore
}

func NewAuthMiddleware(tokens *store.TokenStore) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Wrap 包装需要登录态的 handler
func (m *AuthMiddleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, TokenExpired())
			return
		}

		identity, err := m.tokens.Lookup(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, TokenExpired())
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
