package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hcunanan79/COREcare-access/internal/dto"
	"github.com/hcunanan79/COREcare-access/internal/model"
	"github.com/hcunanan79/COREcare-access/internal/repository"
)

// ── 工资报表业务错误 ──

var ErrPayrollExportFail = errors.New("生成工资报表文件失败")

// payrollHeader CSV 与 Excel 共用的表头
var payrollHeader = []string{"Caregiver", "Total Hours", "Start Date", "End Date"}

// PayrollService 工资报表接口（只读）
//
// 统计口径：
//   - 签到日期（机构时区）落在 [start, end] 内
//   - 仅统计已签退（时长非空）的出勤
//   - 覆盖全部在职护工，按用户名排序，无出勤记为 0
type PayrollService interface {
	// WeeklyTotal 单个护工在区间内的总工时
	WeeklyTotal(ctx context.Context, caregiverID string, r DateRange) (decimal.Decimal, error)
	Report(ctx context.Context, caller Caller, q *dto.PayrollQuery) (*dto.PayrollReport, error)
	// ExportCSV 返回 CSV 内容与建议文件名
	ExportCSV(ctx context.Context, caller Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error)
	// ExportXLSX 返回 Excel 内容与建议文件名
	ExportXLSX(ctx context.Context, caller Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error)
}

type payrollService struct {
	repo   *repository.Repository
	guard  *accessGuard
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewPayrollService 创建 PayrollService 实例
func NewPayrollService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) PayrollService {
	return &payrollService{
		repo:   repo,
		guard:  &accessGuard{repo: repo, logger: logger},
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

func (s *payrollService) WeeklyTotal(ctx context.Context, caregiverID string, r DateRange) (decimal.Decimal, error) {
	total, _, err := s.caregiverTotal(ctx, caregiverID, r)
	return total, err
}

func (s *payrollService) caregiverTotal(ctx context.Context, caregiverID string, r DateRange) (decimal.Decimal, int, error) {
	from, to := r.Bounds()
	visits, err := s.repo.Visit.ListCompleted(ctx, caregiverID, from, to)
	if err != nil {
		return decimal.Zero, 0, err
	}
	total, count := sumHours(visits)
	return total, count, nil
}

// resolve 解析查询区间：缺省为本周，再按 Shift 平移
func (s *payrollService) resolve(q *dto.PayrollQuery) (DateRange, error) {
	r, err := resolveRange(q.Start, q.End, s.loc, currentWeek(s.now(), s.loc))
	if err != nil {
		return DateRange{}, err
	}
	return r.Navigate(q.Shift), nil
}

func (s *payrollService) Report(ctx context.Context, caller Caller, q *dto.PayrollQuery) (*dto.PayrollReport, error) {
	if !caller.IsStaff() {
		return nil, s.guard.deny(ctx, caller, auditRef{}, msgStaffOnly, map[string]interface{}{"resource": "payroll"})
	}
	r, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	rows, grand, err := s.buildRows(ctx, r)
	if err != nil {
		return nil, err
	}

	prev, next := r.Navigate("prev"), r.Navigate("next")
	return &dto.PayrollReport{
		StartDate:  r.Start.Format(dateLayout),
		EndDate:    r.End.Format(dateLayout),
		PrevStart:  prev.Start.Format(dateLayout),
		PrevEnd:    prev.End.Format(dateLayout),
		NextStart:  next.Start.Format(dateLayout),
		NextEnd:    next.End.Format(dateLayout),
		Rows:       rows,
		TotalHours: grand.StringFixed(2),
	}, nil
}

func (s *payrollService) buildRows(ctx context.Context, r DateRange) ([]dto.PayrollRow, decimal.Decimal, error) {
	caregivers, err := s.repo.User.ListActiveByRole(ctx, model.RoleCaregiver)
	if err != nil {
		s.logger.Error("查询护工列表失败", zap.Error(err))
		return nil, decimal.Zero, err
	}

	grand := decimal.Zero
	rows := make([]dto.PayrollRow, 0, len(caregivers))
	for i := range caregivers {
		cg := &caregivers[i]
		total, count, err := s.caregiverTotal(ctx, cg.UserID, r)
		if err != nil {
			s.logger.Error("统计护工工时失败", zap.String("caregiver_id", cg.UserID), zap.Error(err))
			return nil, decimal.Zero, err
		}
		grand = grand.Add(total)
		rows = append(rows, dto.PayrollRow{
			CaregiverID: cg.UserID,
			Username:    cg.Username,
			Name:        cg.FullName(),
			TotalHours:  total.StringFixed(2),
			VisitCount:  count,
		})
	}
	return rows, grand, nil
}

// exportRows 导出前的公共步骤：鉴权、解析区间、统计
func (s *payrollService) exportRows(ctx context.Context, caller Caller, q *dto.PayrollQuery) (DateRange, [][]string, error) {
	report, err := s.Report(ctx, caller, q)
	if err != nil {
		return DateRange{}, nil, err
	}
	r, err := s.resolve(q)
	if err != nil {
		return DateRange{}, nil, err
	}
	records := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		records = append(records, []string{row.Username, row.TotalHours, report.StartDate, report.EndDate})
	}
	return r, records, nil
}

func (s *payrollService) ExportCSV(ctx context.Context, caller Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error) {
	r, records, err := s.exportRows(ctx, caller, q)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err := w.Write(payrollHeader); err != nil {
		return nil, "", err
	}
	if err := w.WriteAll(records); err != nil {
		s.logger.Error("写入 CSV 失败", zap.Error(err))
		return nil, "", ErrPayrollExportFail
	}
	return buf, payrollFilename(r, "csv"), nil
}

func (s *payrollService) ExportXLSX(ctx context.Context, caller Caller, q *dto.PayrollQuery) (*bytes.Buffer, string, error) {
	r, records, err := s.exportRows(ctx, caller, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payroll"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", ErrPayrollExportFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "D", 14)
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, title := range payrollHeader {
		f.SetCellValue(sheet, cellName(i, 1), title)
	}
	f.SetCellStyle(sheet, cellName(0, 1), cellName(len(payrollHeader)-1, 1), headerStyle)

	for rowIdx, record := range records {
		row := rowIdx + 2
		f.SetCellValue(sheet, cellName(0, row), record[0])
		// 工时写为数值单元格，便于表格内求和
		if hours, err := decimal.NewFromString(record[1]); err == nil {
			f.SetCellValue(sheet, cellName(1, row), hours.InexactFloat64())
		}
		f.SetCellValue(sheet, cellName(2, row), record[2])
		f.SetCellValue(sheet, cellName(3, row), record[3])
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrPayrollExportFail
	}
	return buf, payrollFilename(r, "xlsx"), nil
}

// payrollFilename payroll_{start}_to_{end}.{ext}
func payrollFilename(r DateRange, ext string) string {
	return fmt.Sprintf("payroll_%s_to_%s.%s", r.Start.Format(dateLayout), r.End.Format(dateLayout), ext)
}

// cellName 列号从 0 开始，行号从 1 开始
func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
