package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/assistant"
	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
	"github.com/madhesh935/HS---Health-Smart/internal/scan"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var patientCols = []string{
	"patient_id", "hospital_id", "first_name", "last_name", "mobile",
	"age", "gender", "surgery", "discharge_date", "modules", "created_at",
}

var reportCols = []string{
	"report_id", "patient_id", "hospital_id", "report_type",
	"vitals", "payload", "notes", "created_at",
}

func patientRowWithModules(modules ...string) *sqlmock.Rows {
	return sqlmock.NewRows(patientCols).
		AddRow("p-001", "h-001", "Wei", "Chen", "13900000002",
			58, "male", "knee replacement", "2026-08-20",
			pq.StringArray(modules), time.Now())
}

func newMockDB(t *testing.T) (sqlmock.Sqlmock, *repository.PatientRepository, *repository.ReportRepository, *repository.ChatRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	return mock,
		repository.NewPatientRepository(db, logger),
		repository.NewReportRepository(db, logger),
		repository.NewChatRepository(db, logger)
}

func TestReportService_ExportExcel(t *testing.T) {
	mock, patientRepo, reportRepo, _ := newMockDB(t)
	svc := NewReportService(reportRepo, patientRepo, zap.NewNop())

	vitalsJSON := `{"heart_rate":72,"spo2":98,"stress":35,"stress_category":"Optimal","respiratory_rate":16,"hrv":65,"blood_pressure":"118/76"}`
	// 连续模式的报告没有压力分类
	continuousJSON := `{"heart_rate":78,"spo2":97,"stress":42,"respiratory_rate":15,"hrv":58,"blood_pressure":"120/80"}`
	mock.ExpectQuery("SELECT(.|\n)+FROM reports rp").
		WithArgs("p-001", 200, 0).
		WillReturnRows(sqlmock.NewRows(reportCols).
			AddRow("r-001", "p-001", "h-001", "scan_vitals", vitalsJSON, nil, "confirmed", time.Now()).
			AddRow("r-002", "p-001", "h-001", "daily_check", nil, `{"pain_level":"2"}`, "", time.Now()).
			AddRow("r-003", "p-001", "h-001", "scan_vitals", continuousJSON, nil, "", time.Now()))

	data, err := svc.ExportExcel("p-001", 200)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// 导出应是合法的 xlsx，且表头与数据行齐全
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reports")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Report ID", rows[0][0])
	assert.Equal(t, "r-001", rows[1][0])
	assert.Equal(t, "72", rows[1][2])
	assert.Equal(t, "118/76", rows[1][4])
	assert.Equal(t, "35 (Optimal)", rows[1][6])
	// 非扫描报告生命体征列为空
	assert.Equal(t, "r-002", rows[2][0])
	// 没有分类时压力列只有数值，不带空括号
	assert.Equal(t, "42", rows[3][6])
}

type fakeAssistant struct {
	lastMessage string
	lastHistory []assistant.Turn
	reply       string
	err         error
}

func (f *fakeAssistant) Reply(ctx context.Context, patientContext string, history []assistant.Turn, message string) (string, error) {
	f.lastMessage = message
	f.lastHistory = history
	return f.reply, f.err
}

func TestChatService_AssistantRelay(t *testing.T) {
	mock, patientRepo, _, chatRepo := newMockDB(t)
	fake := &fakeAssistant{reply: "mild swelling is normal for two weeks"}
	svc := NewChatService(chatRepo, patientRepo, fake, zap.NewNop())

	mock.ExpectQuery("SELECT(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRowWithModules("scan_vitals", "assistant"))
	// 患者消息入库
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(0, 1))
	// 助手取历史
	mock.ExpectQuery("SELECT(.|\n)+FROM chat_messages cm(.|\n)+ORDER BY cm.created_at DESC").
		WithArgs("p-001", assistantHistoryLimit).
		WillReturnRows(sqlmock.NewRows([]string{
			"message_id", "patient_id", "hospital_id", "sender_role", "sender_id", "body", "created_at",
		}))
	// 助手回复入库
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(0, 1))

	msg, reply, err := svc.PostPatientMessage(context.Background(), "p-001", "is swelling normal?")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NotNil(t, reply)
	assert.Equal(t, "assistant", reply.SenderRole)
	assert.Equal(t, fake.reply, reply.Body)
	assert.Equal(t, "is swelling normal?", fake.lastMessage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatService_AssistantContextUsesRecentTail(t *testing.T) {
	mock, patientRepo, _, chatRepo := newMockDB(t)
	fake := &fakeAssistant{reply: "keep the leg elevated"}
	svc := NewChatService(chatRepo, patientRepo, fake, zap.NewNop())

	mock.ExpectQuery("SELECT(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRowWithModules("assistant"))
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(0, 1))

	// 会话已超过 assistantHistoryLimit 条：历史查询必须按 created_at
	// DESC 截取尾部，助手上下文以最近的消息结尾而不是最早的几轮
	now := time.Now()
	historyRows := sqlmock.NewRows([]string{
		"message_id", "patient_id", "hospital_id", "sender_role", "sender_id", "body", "created_at",
	})
	for i := 0; i < assistantHistoryLimit; i++ {
		historyRows.AddRow(
			fmt.Sprintf("m-%03d", 30-i), "p-001", "h-001",
			models.SenderPatient, nil,
			fmt.Sprintf("message %d", 30-i), now.Add(-time.Duration(i)*time.Minute),
		)
	}
	mock.ExpectQuery("SELECT(.|\n)+FROM chat_messages cm(.|\n)+ORDER BY cm.created_at DESC").
		WithArgs("p-001", assistantHistoryLimit).
		WillReturnRows(historyRows)

	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(0, 1))

	_, reply, err := svc.PostPatientMessage(context.Background(), "p-001", "anything else?")
	require.NoError(t, err)
	require.NotNil(t, reply)

	require.Len(t, fake.lastHistory, assistantHistoryLimit)
	// 正序交给助手：最早的排前，最新的 message 30 收尾
	assert.Equal(t, "message 21", fake.lastHistory[0].Text)
	assert.Equal(t, "message 30", fake.lastHistory[assistantHistoryLimit-1].Text)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatService_NoAssistantModule(t *testing.T) {
	mock, patientRepo, _, chatRepo := newMockDB(t)
	fake := &fakeAssistant{reply: "should not be called"}
	svc := NewChatService(chatRepo, patientRepo, fake, zap.NewNop())

	mock.ExpectQuery("SELECT(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRowWithModules("scan_vitals"))
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(0, 1))

	msg, reply, err := svc.PostPatientMessage(context.Background(), "p-001", "hello")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Nil(t, reply)
	assert.Empty(t, fake.lastMessage)
}

func TestChatService_AssistantFailureKeepsPatientMessage(t *testing.T) {
	mock, patientRepo, _, chatRepo := newMockDB(t)
	fake := &fakeAssistant{err: context.DeadlineExceeded}
	svc := NewChatService(chatRepo, patientRepo, fake, zap.NewNop())

	mock.ExpectQuery("SELECT(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRowWithModules("assistant"))
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT(.|\n)+FROM chat_messages cm(.|\n)+ORDER BY cm.created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{
			"message_id", "patient_id", "hospital_id", "sender_role", "sender_id", "body", "created_at",
		}))

	msg, reply, err := svc.PostPatientMessage(context.Background(), "p-001", "hello")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Nil(t, reply)
}

func TestScanService_LivePublishOnContinuousFrames(t *testing.T) {
	mock, patientRepo, reportRepo, _ := newMockDB(t)
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	kv := store.NewRedisKV(redisClient)
	vitals := store.NewVitalsCache(kv, 10*time.Second)
	reportSvc := NewReportService(reportRepo, patientRepo, logger)
	svc := NewScanService(patientRepo, reportSvc, vitals, redisClient, logger)

	mock.ExpectQuery("SELECT(.|\n)+WHERE p.patient_id = \\$1").
		WithArgs("p-001").WillReturnRows(patientRowWithModules("scan_vitals"))

	_, err := svc.Start(context.Background(), "p-001", scan.ModeContinuous, 30, false)
	require.NoError(t, err)

	landmarks := make([]rppg.Landmark, rppg.MinLandmarks)
	for i := range landmarks {
		landmarks[i] = rppg.Landmark{X: 0.5, Y: 0.5}
	}
	for i := 0; i < 5; i++ {
		err := svc.HandleFrame(context.Background(), "p-001", rppg.FrameSample{
			Landmarks:   landmarks,
			TimestampMS: int64(i * 33),
			Green:       120,
			Red:         135,
			Brightness:  110,
		})
		require.NoError(t, err)
	}

	// 实时快照已写入短 TTL 缓存
	snapshot, err := svc.LiveVitals(context.Background(), "p-001")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snapshot.HeartRate, 55)
	assert.LessOrEqual(t, snapshot.HeartRate, 100)

	// 并推送到了下游流
	streamLen, err := redisClient.XLen(context.Background(), VitalsStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), streamLen)
}
