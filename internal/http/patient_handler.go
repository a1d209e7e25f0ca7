package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/service"

	"go.uber.org/zap"
)

// PatientHandler 患者档案 Handler（员工端管理 + 患者端自查）
type PatientHandler struct {
	patients  *service.PatientService
	hospitals *repository.HospitalRepository
	logger    *zap.Logger
}

// NewPatientHandler 创建患者 Handler
func NewPatientHandler(patients *service.PatientService, hospitals *repository.HospitalRepository, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{patients: patients, hospitals: hospitals, logger: logger}
}

// ListHospitals GET /portal/api/v1/hospitals
func (h *PatientHandler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.hospitals.List()
	if err != nil {
		h.logger.Error("List hospitals failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list hospitals"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(hospitals))
}

// CreateHospital POST /portal/api/v1/hospitals
func (h *PatientHandler) CreateHospital(w http.ResponseWriter, r *http.Request) {
	var hospital models.Hospital
	if err := readBodyJSON(r, 1<<20, &hospital); err != nil || hospital.HospitalID == "" || hospital.Name == "" {
		writeJSON(w, http.StatusBadRequest, Fail("hospital_id and name are required"))
		return
	}
	if err := h.hospitals.Create(&hospital); err != nil {
		h.logger.Error("Create hospital failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to create hospital"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(hospital))
}

// List GET /portal/api/v1/patients?hospital_id=&limit=&offset=
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	hospitalID := r.URL.Query().Get("hospital_id")
	if hospitalID == "" {
		if identity, ok := IdentityFrom(r); ok {
			hospitalID = identity.HospitalID
		}
	}
	if hospitalID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("hospital_id is required"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 20)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	patients, err := h.patients.ListByHospital(hospitalID, limit, offset)
	if err != nil {
		h.logger.Error("List patients failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list patients"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// Register POST /portal/api/v1/patients
func (h *PatientHandler) Register(w http.ResponseWriter, r *http.Request) {
	var patient models.Patient
	if err := readBodyJSON(r, 1<<20, &patient); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if patient.HospitalID == "" || patient.FirstName == "" || patient.Mobile == "" {
		writeJSON(w, http.StatusBadRequest, Fail("hospital_id, first_name and mobile are required"))
		return
	}

	created, err := h.patients.Register(&patient)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("hospital not found"))
			return
		}
		h.logger.Error("Register patient failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to register patient"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(created))
}

// Get GET /portal/api/v1/patients/{id}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request, patientID string) {
	patient, err := h.patients.Get(patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("patient not found"))
			return
		}
		h.logger.Error("Get patient failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get patient"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(patient))
}

// SetModules PUT /portal/api/v1/patients/{id}/modules {modules: [...]}
func (h *PatientHandler) SetModules(w http.ResponseWriter, r *http.Request, patientID string) {
	var req struct {
		Modules []string `json:"modules"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.patients.SetModules(patientID, req.Modules); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("patient not found"))
			return
		}
		h.logger.Error("Set modules failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to update modules"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": true}))
}

// ServeHTTP 患者子树路由分发
// /portal/api/v1/patients, /portal/api/v1/patients/{id}, /portal/api/v1/patients/{id}/modules
func (h *PatientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/portal/api/v1/patients"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.TrimPrefix(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.List(w, r)
		case http.MethodPost:
			h.Register(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasSuffix(rest, "/modules"):
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SetModules(w, r, strings.TrimSuffix(rest, "/modules"))
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
