package httpapi

import (
	"errors"
	"net/http"

	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/scan"
	"github.com/madhesh935/HS---Health-Smart/internal/service"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	"go.uber.org/zap"
)

// ScanHandler 生命体征扫描 Handler
type ScanHandler struct {
	scans  *service.ScanService
	logger *zap.Logger
}

// NewScanHandler 创建扫描 Handler
func NewScanHandler(scans *service.ScanService, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{scans: scans, logger: logger}
}

// Start POST /portal/api/v1/scan/start {mode, duration_sec, synthetic}
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode        string `json:"mode"`
		DurationSec int    `json:"duration_sec"`
		Synthetic   bool   `json:"synthetic"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	mode := scan.Mode(req.Mode)
	if mode != scan.ModeContinuous && mode != scan.ModeBatch {
		writeJSON(w, http.StatusBadRequest, Fail("mode must be continuous or batch"))
		return
	}

	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	status, err := h.scans.Start(r.Context(), patientID, mode, req.DurationSec, req.Synthetic)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScanActive):
			writeJSON(w, http.StatusConflict, Fail("a scan is already in progress"))
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, Fail("patient not found"))
		default:
			h.logger.Error("Start scan failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to start scan"))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}

// Status GET /portal/api/v1/scan/status
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	status, err := h.scans.Status(patientID)
	if err != nil {
		if errors.Is(err, service.ErrNoScan) {
			writeJSON(w, http.StatusNotFound, Fail("no scan for patient"))
			return
		}
		h.logger.Error("Scan status failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get scan status"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}

// Cancel POST /portal/api/v1/scan/cancel {cause}
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cause string `json:"cause"`
	}
	_ = readBodyJSON(r, 1<<20, &req)

	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	if err := h.scans.Cancel(patientID, req.Cause); err != nil {
		if errors.Is(err, service.ErrNoScan) {
			writeJSON(w, http.StatusNotFound, Fail("no active scan for patient"))
			return
		}
		h.logger.Error("Cancel scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to cancel scan"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"cancelled": true}))
}

// Confirm POST /portal/api/v1/scan/confirm {notes}
//
// 用户对 COMPLETE 结果的显式确认；确认成功即保存报告并关闭会话。
func (h *ScanHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	_ = readBodyJSON(r, 1<<20, &req)

	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	report, err := h.scans.Confirm(patientID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoScan):
			writeJSON(w, http.StatusNotFound, Fail("no scan for patient"))
		case errors.Is(err, scan.ErrNotComplete):
			writeJSON(w, http.StatusConflict, Fail("scan not complete yet"))
		case errors.Is(err, scan.ErrAlreadyConfirmed):
			writeJSON(w, http.StatusConflict, Fail("result already confirmed"))
		default:
			h.logger.Error("Confirm scan failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to confirm scan"))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

// LiveVitals GET /portal/api/v1/vitals/live
//
// 连续扫描期间的实时快照（短 TTL 缓存，扫描停止后 miss）。
func (h *ScanHandler) LiveVitals(w http.ResponseWriter, r *http.Request) {
	patientID := patientIDFor(r)
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("patient_id is required"))
		return
	}

	snapshot, err := h.scans.LiveVitals(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			writeJSON(w, http.StatusNotFound, Fail("no live vitals for patient"))
			return
		}
		h.logger.Error("Live vitals failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read live vitals"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snapshot))
}
