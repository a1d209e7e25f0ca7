package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/models"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/rppg"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ReportService 健康报告服务
type ReportService struct {
	reports  *repository.ReportRepository
	patients *repository.PatientRepository
	logger   *zap.Logger
}

// NewReportService 创建报告服务
func NewReportService(
	reports *repository.ReportRepository,
	patients *repository.PatientRepository,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:  reports,
		patients: patients,
		logger:   logger,
	}
}

// SaveScanResult 保存一次扫描的确认结果
//
// 只有用户显式确认过的结果才会走到这里，绝不自动入库。
func (s *ReportService) SaveScanResult(patientID string, vitals rppg.VitalsSnapshot, notes string) (*models.Report, error) {
	patient, err := s.patients.GetByID(patientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	report := &models.Report{
		ReportID:   uuid.NewString(),
		PatientID:  patient.PatientID,
		HospitalID: patient.HospitalID,
		ReportType: models.ReportTypeScanVitals,
		Vitals:     &vitals,
		Notes:      notes,
		CreatedAt:  time.Now(),
	}
	if err := s.reports.Create(report); err != nil {
		return nil, err
	}

	s.logger.Info("Scan report saved",
		zap.String("report_id", report.ReportID),
		zap.String("patient_id", patient.PatientID),
		zap.Int("heart_rate", vitals.HeartRate),
	)
	return report, nil
}

// SavePayloadReport 保存自查/症状类报告（原始键值表单）
func (s *ReportService) SavePayloadReport(patientID, reportType string, payload map[string]string, notes string) (*models.Report, error) {
	if reportType != models.ReportTypeDailyCheck && reportType != models.ReportTypeSymptomLog {
		return nil, fmt.Errorf("unsupported report type: %s", reportType)
	}

	patient, err := s.patients.GetByID(patientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	report := &models.Report{
		ReportID:   uuid.NewString(),
		PatientID:  patient.PatientID,
		HospitalID: patient.HospitalID,
		ReportType: reportType,
		Payload:    payload,
		Notes:      notes,
		CreatedAt:  time.Now(),
	}
	if err := s.reports.Create(report); err != nil {
		return nil, err
	}
	return report, nil
}

// Get 获取单条报告
func (s *ReportService) Get(reportID string) (*models.Report, error) {
	return s.reports.GetByID(reportID)
}

// ListByPatient 按患者列出报告
func (s *ReportService) ListByPatient(patientID string, limit, offset int) ([]models.Report, error) {
	return s.reports.ListByPatient(patientID, limit, offset)
}

// 导出表头
var reportExportHeader = []string{
	"Report ID",
	"Type",
	"Heart Rate",
	"SpO2",
	"Blood Pressure",
	"Respiratory Rate",
	"Stress",
	"HRV",
	"Notes",
	"Created At",
}

// ExportExcel 导出患者报告为 Excel 文件（员工端下载）
func (s *ReportService) ExportExcel(patientID string, limit int) ([]byte, error) {
	reports, err := s.reports.ListByPatient(patientID, limit, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，不能在这里 defer Close()

	sheetName := "Reports"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range reportExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, report := range reports {
		row := i + 2
		values := []any{
			report.ReportID,
			report.ReportType,
			"", "", "", "", "", "",
			report.Notes,
			report.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if v := report.Vitals; v != nil {
			values[2] = v.HeartRate
			values[3] = v.SpO2
			values[4] = v.BloodPressure
			values[5] = v.RespiratoryRate
			// 连续模式没有压力分类，只写数值
			if v.StressCategory == "" {
				values[6] = fmt.Sprintf("%.0f", v.Stress)
			} else {
				values[6] = fmt.Sprintf("%.0f (%s)", v.Stress, v.StressCategory)
			}
			values[7] = v.HRV
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}
