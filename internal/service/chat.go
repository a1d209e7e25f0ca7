package service

import (
	"context"
	"fmt"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/assistant"
	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssistantClient AI 助手回复生成方
type AssistantClient interface {
	Reply(ctx context.Context, patientContext string, history []assistant.Turn, message string) (string, error)
}

// 传给助手的历史轮数上限
const assistantHistoryLimit = 10

// ChatService 患者消息服务
//
// 患者消息入库后，如患者启用了 AI 助手模块则同步请求一条回复并以
// assistant 角色入库。助手失败不影响患者消息本身：消息已保存，
// 员工端仍可人工跟进。
type ChatService struct {
	chat      *repository.ChatRepository
	patients  *repository.PatientRepository
	assistant AssistantClient
	logger    *zap.Logger
}

// NewChatService 创建消息服务；assistant 可为 nil（未部署助手网关）
func NewChatService(
	chat *repository.ChatRepository,
	patients *repository.PatientRepository,
	assistantClient AssistantClient,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		chat:      chat,
		patients:  patients,
		assistant: assistantClient,
		logger:    logger,
	}
}

// PostPatientMessage 患者发送一条消息
//
// 返回已入库的患者消息与（可选的）助手回复消息。
func (s *ChatService) PostPatientMessage(ctx context.Context, patientID, body string) (*models.ChatMessage, *models.ChatMessage, error) {
	patient, err := s.patients.GetByID(patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup patient: %w", err)
	}

	msg := &models.ChatMessage{
		MessageID:  uuid.NewString(),
		PatientID:  patient.PatientID,
		HospitalID: patient.HospitalID,
		SenderRole: models.SenderPatient,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	if err := s.chat.Append(msg); err != nil {
		return nil, nil, err
	}

	if s.assistant == nil || !hasModule(patient.Modules, "assistant") {
		return msg, nil, nil
	}

	reply := s.requestAssistantReply(ctx, patient, body)
	if reply == nil {
		return msg, nil, nil
	}
	return msg, reply, nil
}

// PostStaffMessage 员工发送一条消息
func (s *ChatService) PostStaffMessage(patientID, staffID, body string) (*models.ChatMessage, error) {
	patient, err := s.patients.GetByID(patientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	msg := &models.ChatMessage{
		MessageID:  uuid.NewString(),
		PatientID:  patient.PatientID,
		HospitalID: patient.HospitalID,
		SenderRole: models.SenderStaff,
		SenderID:   staffID,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	if err := s.chat.Append(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListConversation 列出患者会话消息
func (s *ChatService) ListConversation(patientID string, limit, offset int) ([]models.ChatMessage, error) {
	return s.chat.ListConversation(patientID, limit, offset)
}

// requestAssistantReply 请求助手回复并入库；任何失败记日志后返回 nil
//
// 上下文取会话尾部最近 N 条，长会话不能把助手钉在最早的几轮上。
func (s *ChatService) requestAssistantReply(ctx context.Context, patient *models.Patient, message string) *models.ChatMessage {
	history, err := s.chat.ListRecent(patient.PatientID, assistantHistoryLimit)
	if err != nil {
		s.logger.Warn("Failed to load chat history for assistant",
			zap.String("patient_id", patient.PatientID),
			zap.Error(err),
		)
		history = nil
	}

	turns := make([]assistant.Turn, 0, len(history))
	for _, h := range history {
		role := "patient"
		if h.SenderRole == models.SenderAssistant {
			role = "assistant"
		}
		turns = append(turns, assistant.Turn{Role: role, Text: h.Body})
	}

	patientContext := fmt.Sprintf("surgery: %s, discharged: %s", patient.Surgery, patient.DischargeDate)
	text, err := s.assistant.Reply(ctx, patientContext, turns, message)
	if err != nil {
		s.logger.Warn("Assistant reply failed",
			zap.String("patient_id", patient.PatientID),
			zap.Error(err),
		)
		return nil
	}

	reply := &models.ChatMessage{
		MessageID:  uuid.NewString(),
		PatientID:  patient.PatientID,
		HospitalID: patient.HospitalID,
		SenderRole: models.SenderAssistant,
		Body:       text,
		CreatedAt:  time.Now(),
	}
	if err := s.chat.Append(reply); err != nil {
		s.logger.Warn("Failed to store assistant reply",
			zap.String("patient_id", patient.PatientID),
			zap.Error(err),
		)
		return nil
	}
	return reply
}

func hasModule(modules []string, name string) bool {
	for _, m := range modules {
		if m == name {
			return true
		}
	}
	return false
}
