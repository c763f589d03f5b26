package report

import (
	"context"
	"time"

	"kpitrack/internal/domain/result"
)

// EmployeeRow is one employee's report block: the per-KPI entries plus
// their weighted aggregation.
type EmployeeRow struct {
	EmployeeID     int64       `json:"employeeId"`
	EmployeeName   string      `json:"employeeName"`
	PositionID     int64       `json:"positionId"`
	PositionName   string      `json:"positionName"`
	DepartmentName string      `json:"departmentName"`
	Entries        []Entry     `json:"entries"`
	Aggregation    Aggregation `json:"aggregation"`
}

type MonthlyReport struct {
	Period      result.Period `json:"period"`
	Rows        []EmployeeRow `json:"rows"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

type StoreAPI interface {
	ListEmployees(ctx context.Context, positionID int64) ([]EmployeeHeader, error)
	EntriesForEmployee(ctx context.Context, employeeID int64, period result.Period) ([]Entry, error)
	SaveArchive(ctx context.Context, fileKey string, period result.Period, format string, content []byte) (int64, error)
	ListArchive(ctx context.Context, limit, offset int) ([]Archive, error)
	GetArchive(ctx context.Context, id int64) (*Archive, error)
}

type Service struct {
	Store StoreAPI
	Now   func() time.Time
}

func NewService(store StoreAPI) *Service {
	return &Service{Store: store, Now: time.Now}
}

// PositionScore builds the report rows for every employee holding one
// position.
func (s *Service) PositionScore(ctx context.Context, positionID int64, period result.Period) (*MonthlyReport, error) {
	return s.build(ctx, positionID, period)
}

// Monthly builds the full-company report for one period.
func (s *Service) Monthly(ctx context.Context, period result.Period) (*MonthlyReport, error) {
	return s.build(ctx, 0, period)
}

func (s *Service) build(ctx context.Context, positionID int64, period result.Period) (*MonthlyReport, error) {
	headers, err := s.Store.ListEmployees(ctx, positionID)
	if err != nil {
		return nil, err
	}

	rep := &MonthlyReport{Period: period, GeneratedAt: s.Now().UTC()}
	for _, h := range headers {
		entries, err := s.Store.EntriesForEmployee(ctx, h.EmployeeID, period)
		if err != nil {
			return nil, err
		}
		rep.Rows = append(rep.Rows, EmployeeRow{
			EmployeeID:     h.EmployeeID,
			EmployeeName:   h.EmployeeName,
			PositionID:     h.PositionID,
			PositionName:   h.PositionName,
			DepartmentName: h.DepartmentName,
			Entries:        entries,
			Aggregation:    Aggregate(entries),
		})
	}
	return rep, nil
}
