package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/export"
)

type waiverLister interface {
	List(ctx context.Context, filter models.WaiverFilter) ([]models.DeductionWaiver, int, error)
	ListForExport(ctx context.Context, schoolID string, from, to models.BusinessDate) ([]models.DeductionWaiver, error)
}

type teacherNameReader interface {
	ListByIDs(ctx context.Context, schoolID string, ids []string) ([]models.Teacher, error)
}

// Export formats accepted by ExportPayroll.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// WaiverService serves waiver listings and the payroll export that
// accountants reconcile against.
type WaiverService struct {
	waivers  waiverLister
	teachers teacherNameReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewWaiverService constructs the service.
func NewWaiverService(waivers waiverLister, teachers teacherNameReader, logger *zap.Logger) *WaiverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaiverService{
		waivers:  waivers,
		teachers: teachers,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// List returns paginated waivers for the caller's school.
func (s *WaiverService) List(ctx context.Context, claims *models.JWTClaims, filter models.WaiverFilter) ([]models.DeductionWaiver, int, error) {
	filter.SchoolID = claims.SchoolID
	if filter.DeductionType != "" && !filter.DeductionType.Valid() {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown deduction type")
	}
	return s.waivers.List(ctx, filter)
}

// ExportPayroll renders every waiver in [from, to] as CSV or PDF, one row per
// waiver with the teacher's display name resolved.
func (s *WaiverService) ExportPayroll(ctx context.Context, claims *models.JWTClaims, from, to models.BusinessDate, format string) ([]byte, string, error) {
	if from.IsZero() || to.IsZero() || from.After(to) {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid date range")
	}

	waivers, err := s.waivers.ListForExport(ctx, claims.SchoolID, from, to)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waivers")
	}

	names, err := s.teacherNames(ctx, claims.SchoolID, waivers)
	if err != nil {
		return nil, "", err
	}

	table := export.Table{
		Columns: []string{"Teacher", "Type", "Date", "Amount Waived", "Reason", "Waived By"},
		Rows:    make([][]string, 0, len(waivers)),
	}
	for _, w := range waivers {
		name := names[w.TeacherID]
		if name == "" {
			name = w.TeacherID
		}
		table.Rows = append(table.Rows, []string{
			name,
			string(w.DeductionType),
			w.DeductionDate.String(),
			w.OriginalAmount.StringFixed(2),
			w.Reason,
			w.AdminID,
		})
	}

	switch format {
	case ExportFormatCSV, "":
		data, err := s.csv.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	case ExportFormatPDF:
		title := fmt.Sprintf("Deduction Waivers %s to %s", from.String(), to.String())
		data, err := s.pdf.Render(table, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown export format")
	}
}

func (s *WaiverService) teacherNames(ctx context.Context, schoolID string, waivers []models.DeductionWaiver) (map[string]string, error) {
	seen := make(map[string]struct{}, len(waivers))
	ids := make([]string, 0, len(waivers))
	for _, w := range waivers {
		if _, ok := seen[w.TeacherID]; ok {
			continue
		}
		seen[w.TeacherID] = struct{}{}
		ids = append(ids, w.TeacherID)
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	teachers, err := s.teachers.ListByIDs(ctx, schoolID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	for _, t := range teachers {
		names[t.ID] = t.FullName
	}
	return names, nil
}
