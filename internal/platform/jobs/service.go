package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpitrack/internal/domain/notifications"
	"kpitrack/internal/domain/report"
	"kpitrack/internal/domain/result"
	"kpitrack/internal/platform/config"
)

const JobMonthlyReport = "monthly_report"

type Service struct {
	DB      *pgxpool.Pool
	Cfg     config.Config
	Reports *report.Service
	Notify  *notifications.Service
	Mailer  notifications.Mailer
	queue   chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, reports *report.Service, notify *notifications.Service, mailer notifications.Mailer) *Service {
	return &Service{
		DB:      db,
		Cfg:     cfg,
		Reports: reports,
		Notify:  notify,
		Mailer:  mailer,
		queue:   make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.ReportInterval > 0 {
		go s.scheduleMonthlyReport(ctx, s.Cfg.ReportInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	var runID int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != 0 {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

// RunMonthlyReport builds the default-period report, archives the xlsx
// workbook, and emails the configured recipients. Recipients come from
// the notification settings; the REPORT_RECIPIENTS env value is the
// fallback for fresh deployments.
func (s *Service) RunMonthlyReport(ctx context.Context) (any, error) {
	period := result.DefaultPeriod(time.Now())
	rep, err := s.Reports.Monthly(ctx, period)
	if err != nil {
		return nil, err
	}

	content, err := report.BuildWorkbook(rep)
	if err != nil {
		return nil, err
	}
	fileKey := fmt.Sprintf("kpi-report-%04d-%02d-%s.xlsx", period.Year, period.Month, uuid.NewString()[:8])
	archiveID, err := s.Reports.Store.SaveArchive(ctx, fileKey, period, "xlsx", content)
	if err != nil {
		return nil, err
	}

	recipients, from, err := s.Notify.ReportRecipients(ctx)
	if err != nil {
		slog.Warn("report recipients lookup failed", "err", err)
	}
	if len(recipients) == 0 && s.Cfg.ReportRecipients != "" {
		recipients = splitRecipients(s.Cfg.ReportRecipients)
		if from == "" {
			from = s.Cfg.EmailFrom
		}
	}

	subject := fmt.Sprintf("KPI report %04d-%02d", period.Year, period.Month)
	body := reportMailBody(rep, fileKey)
	sent := 0
	for _, to := range recipients {
		if err := s.Mailer.Send(ctx, from, to, subject, body); err != nil {
			slog.Warn("report mail send failed", "to", to, "err", err)
			continue
		}
		sent++
	}

	return map[string]any{
		"period":    fmt.Sprintf("%04d-%02d", period.Year, period.Month),
		"employees": len(rep.Rows),
		"archiveId": archiveID,
		"fileKey":   fileKey,
		"mailsSent": sent,
	}, nil
}

func reportMailBody(rep *report.MonthlyReport, fileKey string) string {
	body := fmt.Sprintf("Monthly KPI report for %04d-%02d is ready.\n\n", rep.Period.Year, rep.Period.Month)
	for _, row := range rep.Rows {
		body += fmt.Sprintf("%s (%s): %.2f\n", row.EmployeeName, row.PositionName, row.Aggregation.Total)
	}
	body += "\nArchived as " + fileKey + "\n"
	return body
}

func (s *Service) scheduleMonthlyReport(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			period := result.DefaultPeriod(time.Now())
			exists, err := s.archiveExists(ctx, period)
			if err != nil {
				slog.Warn("report archive check failed", "err", err)
				continue
			}
			if exists {
				continue
			}
			s.Enqueue(JobMonthlyReport, s.RunMonthlyReport)
		}
	}
}

func (s *Service) archiveExists(ctx context.Context, period result.Period) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM report_archive WHERE year = $1 AND month = $2
  `, period.Year, period.Month).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type Run struct {
	ID          int64           `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func (s *Service) ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, error) {
	query := `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), created_at, completed_at
    FROM job_runs
  `
	args := []any{}
	if jobType != "" {
		query += " WHERE job_type = $1"
		args = append(args, jobType)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.JobType, &r.Status, &r.Details, &r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
