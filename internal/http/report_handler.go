package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/service"

	"go.uber.org/zap"
)

// ReportHandler 健康报告 Handler
type ReportHandler struct {
	reports *service.ReportService
	logger  *zap.Logger
}

// NewReportHandler 创建报告 Handler
func NewReportHandler(reports *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// patientIDFor 报告归属患者：患者端固定取自身份，员工端用 query 参数
func patientIDFor(r *http.Request) string {
	if identity, ok := IdentityFrom(r); ok && identity.Role == "patient" {
		return identity.SubjectID
	}
	return r.URL.Query().Get("patient_id")
}

// List GET /portal/api/v1/reports?patient_id=&limit=&offset=
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 20)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	reports, err := h.reports.ListByPatient(patientID, limit, offset)
	if err != nil {
		h.logger.Error("List reports failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list reports"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(reports))
}

// Create POST /portal/api/v1/reports {report_type, payload, notes}
//
// 只接受自查/症状类报告；扫描结果必须走扫描确认流程入库。
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID  string            `json:"patient_id"`
		ReportType string            `json:"report_type"`
		Payload    map[string]string `json:"payload"`
		Notes      string            `json:"notes"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if identity, ok := IdentityFrom(r); ok && identity.Role == "patient" {
		req.PatientID = identity.SubjectID
	}
	if req.PatientID == "" || req.ReportType == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id and report_type are required"))
		return
	}

	report, err := h.reports.SavePayloadReport(req.PatientID, req.ReportType, req.Payload, req.Notes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("patient not found"))
			return
		}
		h.logger.Error("Create report failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

// Get GET /portal/api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request, reportID string) {
	report, err := h.reports.Get(reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("report not found"))
			return
		}
		h.logger.Error("Get report failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get report"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

// Export GET /portal/api/v1/reports/export?patient_id=&limit=
//
// 员工端下载患者报告汇总 Excel。
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 200)

	data, err := h.reports.ExportExcel(patientID, limit)
	if err != nil {
		h.logger.Error("Export reports failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export reports"))
		return
	}

	filename := fmt.Sprintf("reports_%s_%s.xlsx", patientID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ServeHTTP 报告子树路由分发
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/portal/api/v1/reports"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.TrimPrefix(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.List(w, r)
		case http.MethodPost:
			h.Create(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case rest == "export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Export(w, r)
	case !strings.Contains(rest, "/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Get(w, r, rest)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
