// Package repository PostgreSQL 数据访问层
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/madhesh935/HS---Health-Smart/internal/models"

	"go.uber.org/zap"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("repository: record not found")

// HospitalRepository 医院仓库
type HospitalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHospitalRepository 创建医院仓库
func NewHospitalRepository(db *sql.DB, logger *zap.Logger) *HospitalRepository {
	return &HospitalRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID 根据 ID 获取医院
func (r *HospitalRepository) GetByID(hospitalID string) (*models.Hospital, error) {
	query := `
		SELECT
			h.hospital_id,
			h.name,
			h.address,
			h.contact_mobile,
			h.created_at
		FROM hospitals h
		WHERE h.hospital_id = $1
		LIMIT 1
	`

	hospital := &models.Hospital{}
	err := r.db.QueryRow(query, hospitalID).Scan(
		&hospital.HospitalID,
		&hospital.Name,
		&hospital.Address,
		&hospital.ContactMobile,
		&hospital.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query hospital: %w", err)
	}

	return hospital, nil
}

// List 列出全部医院
func (r *HospitalRepository) List() ([]models.Hospital, error) {
	query := `
		SELECT
			h.hospital_id,
			h.name,
			h.address,
			h.contact_mobile,
			h.created_at
		FROM hospitals h
		ORDER BY h.created_at
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	defer rows.Close()

	var hospitals []models.Hospital
	for rows.Next() {
		var h models.Hospital
		if err := rows.Scan(&h.HospitalID, &h.Name, &h.Address, &h.ContactMobile, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}
		hospitals = append(hospitals, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hospitals: %w", err)
	}

	return hospitals, nil
}

// Create 创建医院
func (r *HospitalRepository) Create(h *models.Hospital) error {
	query := `
		INSERT INTO hospitals (hospital_id, name, address, contact_mobile, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := r.db.Exec(query, h.HospitalID, h.Name, h.Address, h.ContactMobile); err != nil {
		return fmt.Errorf("failed to insert hospital: %w", err)
	}

	return nil
}
