package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
	"github.com/noah-isme/school-events-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type visibleEventLister interface {
	ListByRole(ctx context.Context, claims *models.JWTClaims) ([]models.AcademicEvent, models.UserRole, error)
	Now() time.Time
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportMetrics interface {
	RecordExport(format string)
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the caller's visible events as a downloadable table.
type ExportService struct {
	events  visibleEventLister
	csv     renderer
	pdf     renderer
	metrics exportMetrics
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(events visibleEventLister, metrics exportMetrics, logger *zap.Logger, csv, pdf renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{events: events, csv: csv, pdf: pdf, metrics: metrics, logger: logger}
}

// ExportEvents renders the events visible to the caller in the requested format.
func (s *ExportService) ExportEvents(ctx context.Context, claims *models.JWTClaims, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	var (
		r           renderer
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		r, contentType = s.csv, "text/csv"
	case ExportFormatPDF:
		r, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Validation("invalid export format", map[string][]string{"format": {"format must be csv or pdf"}})
	}

	events, role, err := s.events.ListByRole(ctx, claims)
	if err != nil {
		return nil, err
	}
	now := s.events.Now()
	body, err := r.Render(eventDataset(events, now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	if s.metrics != nil {
		s.metrics.RecordExport(format)
	}
	s.logger.Info("events exported", zap.String("format", format), zap.String("role", string(role)), zap.Int("rows", len(events)))
	return &ExportFile{
		Filename:    fmt.Sprintf("events_%s_%s.%s", role, now.Format("20060102"), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func eventDataset(events []models.AcademicEvent, now time.Time) export.Dataset {
	data := export.Dataset{
		Title:   "Academic events",
		Headers: []string{"Name", "Type", "Date", "Start", "End", "Location", "Audience", "Program", "Responsible", "Capacity", "Active"},
		Rows:    make([][]string, 0, len(events)),
	}
	for _, e := range events {
		program := ""
		if e.EducationProgram != nil {
			program = *e.EducationProgram
		}
		responsible := e.ResponsibleUserID
		if e.Responsible != nil && e.Responsible.FullName != "" {
			responsible = e.Responsible.FullName
		}
		active := "no"
		if e.IsActive(now) {
			active = "yes"
		}
		data.Rows = append(data.Rows, []string{
			e.Name,
			string(e.EventType),
			e.Date.Format(models.DateLayoutDisplay),
			e.StartTime.String(),
			e.EndTime.String(),
			e.Location,
			strings.Join(e.TargetAudience.Strings(), ", "),
			program,
			responsible,
			strconv.Itoa(e.Capacity),
			active,
		})
	}
	return data
}
