package service

import (
	"fmt"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PatientService 患者档案服务
type PatientService struct {
	patients  *repository.PatientRepository
	hospitals *repository.HospitalRepository
	logger    *zap.Logger
}

// NewPatientService 创建患者服务
func NewPatientService(
	patients *repository.PatientRepository,
	hospitals *repository.HospitalRepository,
	logger *zap.Logger,
) *PatientService {
	return &PatientService{
		patients:  patients,
		hospitals: hospitals,
		logger:    logger,
	}
}

// Register 登记患者（员工端）
//
// 校验医院存在后分配 patient_id；Modules 为空时启用默认监护模块。
func (s *PatientService) Register(p *models.Patient) (*models.Patient, error) {
	if _, err := s.hospitals.GetByID(p.HospitalID); err != nil {
		return nil, fmt.Errorf("check hospital: %w", err)
	}

	p.PatientID = uuid.NewString()
	if len(p.Modules) == 0 {
		p.Modules = []string{models.ReportTypeScanVitals, models.ReportTypeDailyCheck}
	}

	if err := s.patients.Create(p); err != nil {
		return nil, err
	}

	s.logger.Info("Patient registered",
		zap.String("patient_id", p.PatientID),
		zap.String("hospital_id", p.HospitalID),
	)
	return p, nil
}

// Get 获取患者档案
func (s *PatientService) Get(patientID string) (*models.Patient, error) {
	return s.patients.GetByID(patientID)
}

// ListByHospital 列出医院名下患者
func (s *PatientService) ListByHospital(hospitalID string, limit, offset int) ([]models.Patient, error) {
	return s.patients.ListByHospital(hospitalID, limit, offset)
}

// SetModules 更新患者启用的监护模块
func (s *PatientService) SetModules(patientID string, modules []string) error {
	return s.patients.UpdateModules(patientID, modules)
}
