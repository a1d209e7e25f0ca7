package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/rppg"

	"go.uber.org/zap"
)

// ReportRepository 健康报告仓库
//
// Vitals 与 Payload 以 JSONB 存储：报告是文档型数据，
// 字段随监护模块配置变化，不适合拍平成列。
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository 创建报告仓库
func NewReportRepository(db *sql.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create 写入一条报告
func (r *ReportRepository) Create(report *models.Report) error {
	var vitalsJSON, payloadJSON []byte
	var err error

	if report.Vitals != nil {
		if vitalsJSON, err = json.Marshal(report.Vitals); err != nil {
			return fmt.Errorf("failed to marshal vitals: %w", err)
		}
	}
	if report.Payload != nil {
		if payloadJSON, err = json.Marshal(report.Payload); err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	query := `
		INSERT INTO reports (
			report_id, patient_id, hospital_id, report_type,
			vitals, payload, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = r.db.Exec(query,
		report.ReportID, report.PatientID, report.HospitalID, report.ReportType,
		nullableJSON(vitalsJSON), nullableJSON(payloadJSON), report.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetByID 根据 ID 获取报告
func (r *ReportRepository) GetByID(reportID string) (*models.Report, error) {
	query := `
		SELECT
			rp.report_id,
			rp.patient_id,
			rp.hospital_id,
			rp.report_type,
			rp.vitals,
			rp.payload,
			rp.notes,
			rp.created_at
		FROM reports rp
		WHERE rp.report_id = $1
		LIMIT 1
	`

	report, err := scanReport(r.db.QueryRow(query, reportID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	return report, nil
}

// ListByPatient 按患者列出报告（时间倒序）
func (r *ReportRepository) ListByPatient(patientID string, limit, offset int) ([]models.Report, error) {
	query := `
		SELECT
			rp.report_id,
			rp.patient_id,
			rp.hospital_id,
			rp.report_type,
			rp.vitals,
			rp.payload,
			rp.notes,
			rp.created_at
		FROM reports rp
		WHERE rp.patient_id = $1
		ORDER BY rp.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return reports, nil
}

func scanReport(row interface{ Scan(...any) error }) (*models.Report, error) {
	report := &models.Report{}
	var vitalsJSON, payloadJSON sql.NullString

	err := row.Scan(
		&report.ReportID,
		&report.PatientID,
		&report.HospitalID,
		&report.ReportType,
		&vitalsJSON,
		&payloadJSON,
		&report.Notes,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if vitalsJSON.Valid && vitalsJSON.String != "" {
		var vitals rppg.VitalsSnapshot
		if err := json.Unmarshal([]byte(vitalsJSON.String), &vitals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vitals: %w", err)
		}
		report.Vitals = &vitals
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &report.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return report, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
