// Package httpapi 门户 HTTP API
package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAuthRoutes 注册登录路由（无需登录态）
func (r *Router) RegisterAuthRoutes(a *AuthHandler) {
	r.Handle("/portal/api/v1/auth/request-code", postOnly(a.RequestCode))
	r.Handle("/portal/api/v1/auth/verify-code", postOnly(a.VerifyCode))
	r.Handle("/portal/api/v1/auth/logout", postOnly(a.Logout))
}

// RegisterPortalRoutes 注册需登录态的门户路由
func (r *Router) RegisterPortalRoutes(
	auth *AuthMiddleware,
	patients *PatientHandler,
	reports *ReportHandler,
	chat *ChatHandler,
	scans *ScanHandler,
) {
	// hospitals
	r.Handle("/portal/api/v1/hospitals", auth.Wrap(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			patients.ListHospitals(w, req)
		case http.MethodPost:
			patients.CreateHospital(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	// patients 子树
	r.Handle("/portal/api/v1/patients", auth.Wrap(patients.ServeHTTP))
	r.Handle("/portal/api/v1/patients/", auth.Wrap(patients.ServeHTTP))

	// reports 子树
	r.Handle("/portal/api/v1/reports", auth.Wrap(reports.ServeHTTP))
	r.Handle("/portal/api/v1/reports/", auth.Wrap(reports.ServeHTTP))

	// chat
	r.Handle("/portal/api/v1/chat", auth.Wrap(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			chat.List(w, req)
		case http.MethodPost:
			chat.Post(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	// scan
	r.Handle("/portal/api/v1/scan/start", auth.Wrap(postOnly(scans.Start)))
	r.Handle("/portal/api/v1/scan/status", auth.Wrap(getOnly(scans.Status)))
	r.Handle("/portal/api/v1/scan/cancel", auth.Wrap(postOnly(scans.Cancel)))
	r.Handle("/portal/api/v1/scan/confirm", auth.Wrap(postOnly(scans.Confirm)))
	r.Handle("/portal/api/v1/vitals/live", auth.Wrap(getOnly(scans.LiveVitals)))
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
