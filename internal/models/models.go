// Package models 门户侧数据模型
//
// 字段命名全部使用 snake_case（json tag），与前端模型保持对齐。
package models

import (
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/rppg"
)

// Hospital 医院（租户）
type Hospital struct {
	HospitalID    string    `json:"hospital_id"`
	Name          string    `json:"name"`
	Address       string    `json:"address,omitempty"`
	ContactMobile string    `json:"contact_mobile,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Patient 患者（术后远程监护对象）
//
// Mobile 是二级查找键：OTP 登录与 MQTT 设备标识都走手机号解析。
type Patient struct {
	PatientID     string    `json:"patient_id"`
	HospitalID    string    `json:"hospital_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name,omitempty"`
	Mobile        string    `json:"mobile"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender,omitempty"`
	Surgery       string    `json:"surgery,omitempty"`
	DischargeDate string    `json:"discharge_date,omitempty"` // YYYY-MM-DD
	Modules       []string  `json:"modules,omitempty"`        // 启用的监护模块
	CreatedAt     time.Time `json:"created_at"`
}

// 报告类型
const (
	ReportTypeScanVitals = "scan_vitals" // 摄像头生命体征扫描
	ReportTypeDailyCheck = "daily_check" // 每日稳定性自查
	ReportTypeSymptomLog = "symptom_log" // 症状专项记录
)

// Report 健康报告
//
// Vitals 仅扫描类报告携带；Payload 保存症状/自查类报告的原始键值。
type Report struct {
	ReportID   string               `json:"report_id"`
	PatientID  string               `json:"patient_id"`
	HospitalID string               `json:"hospital_id"`
	ReportType string               `json:"report_type"`
	Vitals     *rppg.VitalsSnapshot `json:"vitals,omitempty"`
	Payload    map[string]string    `json:"payload,omitempty"`
	Notes      string               `json:"notes,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// 聊天发送方角色
const (
	SenderPatient   = "patient"
	SenderStaff     = "staff"
	SenderAssistant = "assistant" // AI 助手
)

// ChatMessage 患者与医院员工/AI 助手之间的消息
type ChatMessage struct {
	MessageID  string    `json:"message_id"`
	PatientID  string    `json:"patient_id"`
	HospitalID string    `json:"hospital_id"`
	SenderRole string    `json:"sender_role"`
	SenderID   string    `json:"sender_id,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
