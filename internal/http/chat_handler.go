package httpapi

import (
	"errors"
	"net/http"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/service"

	"go.uber.org/zap"
)

// ChatHandler 患者消息 Handler
type ChatHandler struct {
	chat   *service.ChatService
	logger *zap.Logger
}

// NewChatHandler 创建消息 Handler
func NewChatHandler(chat *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// List GET /portal/api/v1/chat?patient_id=&limit=&offset=
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	messages, err := h.chat.ListConversation(patientID, limit, offset)
	if err != nil {
		h.logger.Error("List chat failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list messages"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(messages))
}

// Post POST /portal/api/v1/chat {body}
//
// 患者端发消息；启用助手模块时响应里带上助手回复。
// 员工端带 patient_id 参数以员工身份发消息。
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patient_id"`
		Body      string `json:"body"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, Fail("body is required"))
		return
	}

	identity, _ := IdentityFrom(r)
	if identity.Role == "patient" {
		msg, reply, err := h.chat.PostPatientMessage(r.Context(), identity.SubjectID, req.Body)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, Fail("patient not found"))
				return
			}
			h.logger.Error("Post patient message failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to post message"))
			return
		}
		writeJSON(w, http.StatusOK, Ok(struct {
			Message *models.ChatMessage `json:"message"`
			Reply   *models.ChatMessage `json:"reply,omitempty"`
		}{Message: msg, Reply: reply}))
		return
	}

	if req.PatientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}
	msg, err := h.chat.PostStaffMessage(req.PatientID, identity.SubjectID, req.Body)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("patient not found"))
			return
		}
		h.logger.Error("Post staff message failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to post message"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(struct {
		Message *models.ChatMessage `json:"message"`
	}{Message: msg}))
}
