package repository

import (
	"database/sql"
	"fmt"

	"github.com/madhesh935/HS---Health-Smart/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PatientRepository 患者仓库
type PatientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientRepository 创建患者仓库
func NewPatientRepository(db *sql.DB, logger *zap.Logger) *PatientRepository {
	return &PatientRepository{
		db:     db,
		logger: logger,
	}
}

const patientColumns = `
			p.patient_id,
			p.hospital_id,
			p.first_name,
			p.last_name,
			p.mobile,
			p.age,
			p.gender,
			p.surgery,
			p.discharge_date,
			p.modules,
			p.created_at`

func scanPatient(row interface{ Scan(...any) error }) (*models.Patient, error) {
	patient := &models.Patient{}
	var modules pq.StringArray
	err := row.Scan(
		&patient.PatientID,
		&patient.HospitalID,
		&patient.FirstName,
		&patient.LastName,
		&patient.Mobile,
		&patient.Age,
		&patient.Gender,
		&patient.Surgery,
		&patient.DischargeDate,
		&modules,
		&patient.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	patient.Modules = []string(modules)
	return patient, nil
}

// GetByID 根据 ID 获取患者
func (r *PatientRepository) GetByID(patientID string) (*models.Patient, error) {
	query := `
		SELECT` + patientColumns + `
		FROM patients p
		WHERE p.patient_id = $1
		LIMIT 1
	`

	patient, err := scanPatient(r.db.QueryRow(query, patientID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}

	return patient, nil
}

// GetByMobile 根据手机号获取患者（二级查找键：OTP 登录与设备标识解析）
func (r *PatientRepository) GetByMobile(mobile string) (*models.Patient, error) {
	query := `
		SELECT` + patientColumns + `
		FROM patients p
		WHERE p.mobile = $1
		LIMIT 1
	`

	patient, err := scanPatient(r.db.QueryRow(query, mobile))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query patient by mobile: %w", err)
	}

	return patient, nil
}

// ListByHospital 列出医院名下的患者
func (r *PatientRepository) ListByHospital(hospitalID string, limit, offset int) ([]models.Patient, error) {
	query := `
		SELECT` + patientColumns + `
		FROM patients p
		WHERE p.hospital_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, hospitalID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}

	return patients, nil
}

// Create 登记患者
func (r *PatientRepository) Create(p *models.Patient) error {
	query := `
		INSERT INTO patients (
			patient_id, hospital_id, first_name, last_name, mobile,
			age, gender, surgery, discharge_date, modules, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	_, err := r.db.Exec(query,
		p.PatientID, p.HospitalID, p.FirstName, p.LastName, p.Mobile,
		p.Age, p.Gender, p.Surgery, p.DischargeDate, pq.StringArray(p.Modules),
	)
	if err != nil {
		return fmt.Errorf("failed to insert patient: %w", err)
	}

	return nil
}

// UpdateModules 更新患者启用的监护模块
func (r *PatientRepository) UpdateModules(patientID string, modules []string) error {
	query := `
		UPDATE patients
		SET modules = $2
		WHERE patient_id = $1
	`

	result, err := r.db.Exec(query, patientID, pq.StringArray(modules))
	if err != nil {
		return fmt.Errorf("failed to update patient modules: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
