package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/service"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSMS struct {
	lastMobile string
	lastCode   string
}

func (f *fakeSMS) SendCode(mobile, code string) error {
	f.lastMobile = mobile
	f.lastCode = code
	return nil
}

type testEnv struct {
	router *Router
	mock   sqlmock.Sqlmock
	sms    *fakeSMS
	tokens *store.TokenStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	kv := store.NewRedisKV(redisClient)
	otp := store.NewOTPStore(kv, 5*time.Minute)
	tokens := store.NewTokenStore(kv, time.Hour)
	vitals := store.NewVitalsCache(kv, 10*time.Second)

	patientRepo := repository.NewPatientRepository(db, logger)
	hospitalRepo := repository.NewHospitalRepository(db, logger)
	reportRepo := repository.NewReportRepository(db, logger)
	chatRepo := repository.NewChatRepository(db, logger)

	sms := &fakeSMS{}
	authSvc := service.NewAuthService(otp, tokens, patientRepo, sms, logger)
	patientSvc := service.NewPatientService(patientRepo, hospitalRepo, logger)
	reportSvc := service.NewReportService(reportRepo, patientRepo, logger)
	chatSvc := service.NewChatService(chatRepo, patientRepo, nil, logger)
	scanSvc := service.NewScanService(patientRepo, reportSvc, vitals, redisClient, logger)

	router := NewRouter(logger)
	router.RegisterAuthRoutes(NewAuthHandler(authSvc, logger))
	router.RegisterPortalRoutes(
		NewAuthMiddleware(tokens),
		NewPatientHandler(patientSvc, hospitalRepo, logger),
		NewReportHandler(reportSvc, logger),
		NewChatHandler(chatSvc, logger),
		NewScanHandler(scanSvc, logger),
	)

	return &testEnv{router: router, mock: mock, sms: sms, tokens: tokens}
}

var testPatientCols = []string{
	"patient_id", "hospital_id", "first_name", "last_name", "mobile",
	"age", "gender", "surgery", "discharge_date", "modules", "created_at",
}

func patientRow() *sqlmock.Rows {
	return sqlmock.NewRows(testPatientCols).
		AddRow("p-001", "h-001", "Wei", "Chen", "13900000002",
			58, "male", "knee replacement", "2026-08-20",
			pq.StringArray{"scan_vitals", "daily_check"}, time.Now())
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult[T any](t *testing.T, rec *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var res Result[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestAuthFlow_RequestAndVerify(t *testing.T) {
	env := newTestEnv(t)

	// request-code 与 verify-code 各查一次患者
	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p(.|\n)+WHERE p.mobile = \\$1").
		WithArgs("13900000002").WillReturnRows(patientRow())
	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p(.|\n)+WHERE p.mobile = \\$1").
		WithArgs("13900000002").WillReturnRows(patientRow())

	rec := env.do(t, http.MethodPost, "/portal/api/v1/auth/request-code", "",
		map[string]string{"mobile": "13900000002"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "13900000002", env.sms.lastMobile)
	require.Len(t, env.sms.lastCode, 6)

	rec = env.do(t, http.MethodPost, "/portal/api/v1/auth/verify-code", "",
		map[string]string{"mobile": "13900000002", "code": env.sms.lastCode})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeResult[struct {
		Token string `json:"token"`
	}](t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.NotEmpty(t, res.Result.Token)
}

func TestAuthFlow_WrongCode(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p").
		WithArgs("13900000002").WillReturnRows(patientRow())
	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p").
		WithArgs("13900000002").WillReturnRows(patientRow())

	rec := env.do(t, http.MethodPost, "/portal/api/v1/auth/request-code", "",
		map[string]string{"mobile": "13900000002"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/portal/api/v1/auth/verify-code", "",
		map[string]string{"mobile": "13900000002", "code": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlow_UnknownMobile(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p").
		WithArgs("13900009999").
		WillReturnRows(sqlmock.NewRows(testPatientCols))

	rec := env.do(t, http.MethodPost, "/portal/api/v1/auth/request-code", "",
		map[string]string{"mobile": "13900009999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.sms.lastCode)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/portal/api/v1/scan/status", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	res := decodeResult[any](t, rec)
	assert.Equal(t, ResultTokenExpired, res.Code)
}

func TestAuthMiddleware_BadToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/portal/api/v1/scan/status", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// issueToken 直接签发患者令牌，跳过 OTP 流程
func (e *testEnv) issueToken(t *testing.T) string {
	t.Helper()
	token, err := e.tokens.Issue(context.Background(), store.Identity{
		SubjectID:  "p-001",
		HospitalID: "h-001",
		Role:       "patient",
	})
	require.NoError(t, err)
	return token
}

func TestScanHandler_SyntheticBatchFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	// start 查一次患者
	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRow())
	// confirm 再查一次患者，然后插入报告
	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRow())
	env.mock.ExpectExec("INSERT INTO reports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPost, "/portal/api/v1/scan/start", token,
		map[string]any{"mode": "batch", "duration_sec": 2, "synthetic": true})
	require.Equal(t, http.StatusOK, rec.Code)

	started := decodeResult[service.ScanStatus](t, rec)
	assert.NotEmpty(t, started.Result.SessionID)

	// 合成源在后台协程跑完 60 帧
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/portal/api/v1/scan/status", token, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		status := decodeResult[service.ScanStatus](t, rec)
		return status.Result.State == "COMPLETE"
	}, 5*time.Second, 20*time.Millisecond)

	rec = env.do(t, http.MethodPost, "/portal/api/v1/scan/confirm", token,
		map[string]string{"notes": "looks fine"})
	require.Equal(t, http.StatusOK, rec.Code)

	// 会话已关闭，再次确认返回 404
	rec = env.do(t, http.MethodPost, "/portal/api/v1/scan/confirm", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestScanHandler_ConfirmBeforeComplete(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p").
		WithArgs("p-001").WillReturnRows(patientRow())

	// 非合成模式：会话挂起等待 MQTT 帧，不会自行完成
	rec := env.do(t, http.MethodPost, "/portal/api/v1/scan/start", token,
		map[string]any{"mode": "continuous"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/portal/api/v1/scan/confirm", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScanHandler_DoubleStartConflicts(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p").
		WithArgs("p-001").WillReturnRows(patientRow())
	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p").
		WithArgs("p-001").WillReturnRows(patientRow())

	rec := env.do(t, http.MethodPost, "/portal/api/v1/scan/start", token,
		map[string]any{"mode": "continuous"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/portal/api/v1/scan/start", token,
		map[string]any{"mode": "continuous"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScanHandler_BadMode(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	rec := env.do(t, http.MethodPost, "/portal/api/v1/scan/start", token,
		map[string]any{"mode": "turbo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandler_CreatePayloadReport(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRow())
	env.mock.ExpectExec("INSERT INTO reports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPost, "/portal/api/v1/reports", token, map[string]any{
		"report_type": "daily_check",
		"payload":     map[string]string{"pain_level": "2", "wound_state": "dry"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReportHandler_RejectsScanType(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	rec := env.do(t, http.MethodPost, "/portal/api/v1/reports", token, map[string]any{
		"report_type": "scan_vitals",
	})
	// 扫描结果只能走确认流程入库
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_PatientMessage(t *testing.T) {
	env := newTestEnv(t)
	token := env.issueToken(t)

	env.mock.ExpectQuery("SELECT(.|\n)+FROM patients p(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRow())
	env.mock.ExpectExec("INSERT INTO chat_messages").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPost, "/portal/api/v1/chat", token,
		map[string]string{"body": "is mild swelling normal?"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}
