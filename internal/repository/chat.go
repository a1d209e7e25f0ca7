package repository

import (
	"database/sql"
	"fmt"

	"github.com/madhesh935/HS---Health-Smart/internal/models"

	"go.uber.org/zap"
)

// ChatRepository 聊天消息仓库
type ChatRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChatRepository 创建聊天仓库
func NewChatRepository(db *sql.DB, logger *zap.Logger) *ChatRepository {
	return &ChatRepository{
		db:     db,
		logger: logger,
	}
}

const chatColumns = `
			cm.message_id,
			cm.patient_id,
			cm.hospital_id,
			cm.sender_role,
			cm.sender_id,
			cm.body,
			cm.created_at`

// Append 追加一条消息
func (r *ChatRepository) Append(msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (
			message_id, patient_id, hospital_id, sender_role, sender_id, body, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.db.Exec(query,
		msg.MessageID, msg.PatientID, msg.HospitalID,
		msg.SenderRole, msg.SenderID, msg.Body,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

// ListConversation 按患者列出会话消息（时间正序，limit 条）
func (r *ChatRepository) ListConversation(patientID string, limit, offset int) ([]models.ChatMessage, error) {
	query := `
		SELECT` + chatColumns + `
		FROM chat_messages cm
		WHERE cm.patient_id = $1
		ORDER BY cm.created_at ASC
		LIMIT $2 OFFSET $3
	`

	return r.queryMessages(query, patientID, limit, offset)
}

// ListRecent 取患者最近的 limit 条消息（时间正序返回）
//
// 与 ListConversation 的区别：这里截取的是会话尾部而不是开头，
// 供助手取上下文用。
func (r *ChatRepository) ListRecent(patientID string, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT` + chatColumns + `
		FROM chat_messages cm
		WHERE cm.patient_id = $1
		ORDER BY cm.created_at DESC
		LIMIT $2
	`

	messages, err := r.queryMessages(query, patientID, limit)
	if err != nil {
		return nil, err
	}

	// DESC 取尾部后翻回正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ChatRepository) queryMessages(query string, args ...any) ([]models.ChatMessage, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var senderID sql.NullString
		err := rows.Scan(
			&msg.MessageID,
			&msg.PatientID,
			&msg.HospitalID,
			&msg.SenderRole,
			&senderID,
			&msg.Body,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.SenderID = senderID.String
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}

	return messages, nil
}
