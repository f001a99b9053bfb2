package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
	"github.com/Azizbek961/crm-edu-crm/pkg/export"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	Update(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id string) error
	StatusCounts(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceStatusCounts, error)
}

type attendanceGroupRepository interface {
	FindByID(ctx context.Context, id string) (*models.GroupRecord, error)
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
}

type attendanceStudentRepository interface {
	ChildrenOfParent(ctx context.Context, parentID string) ([]string, error)
}

type attendanceExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type attendancePDFExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// MarkAttendanceRequest payload for recording a single attendance row.
type MarkAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	GroupID   string `json:"group_id" validate:"required,uuid4"`
	Date      string `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     string `json:"notes"`
}

// BulkAttendanceRequest saves a whole group sheet for one date.
type BulkAttendanceRequest struct {
	GroupID string                `json:"group_id" validate:"required,uuid4"`
	Date    string                `json:"date" validate:"required"`
	Records []BulkAttendanceEntry `json:"records" validate:"required,min=1,dive"`
}

// BulkAttendanceEntry is one row of a bulk sheet.
type BulkAttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     string `json:"notes"`
}

// UpdateAttendanceRequest payload for correcting an existing row.
type UpdateAttendanceRequest struct {
	Status string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes  string `json:"notes"`
}

// BulkAttendanceResult reports how a bulk save went: rows that failed
// validation are collected instead of aborting the sheet.
type BulkAttendanceResult struct {
	Saved  int                          `json:"saved"`
	Errors []models.AttendanceBulkError `json:"errors,omitempty"`
}

// ExportFormat selects the rendering of an attendance export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportPayload carries a rendered export and its metadata.
type ExportPayload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AttendanceService handles attendance workflows.
type AttendanceService struct {
	repo      attendanceRepository
	groups    attendanceGroupRepository
	students  attendanceStudentRepository
	csv       attendanceExporter
	pdf       attendancePDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService creates an instance of AttendanceService.
func NewAttendanceService(repo attendanceRepository, groups attendanceGroupRepository, students attendanceStudentRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		repo:      repo,
		groups:    groups,
		students:  students,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns paginated attendance records with scope applied: teachers
// see their own groups, students their own rows, parents their
// children's rows.
func (s *AttendanceService) List(ctx context.Context, scope models.Scope, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.applyScope(ctx, scope, &filter); err != nil {
		return nil, nil, err
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Mark records or replaces the attendance for a student on a date. The
// student must be a member of the group.
func (s *AttendanceService) Mark(ctx context.Context, scope models.Scope, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if scope.Role == models.RoleTeacher && group.TeacherID != scope.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot mark attendance for another teacher's group")
	}

	member, err := s.groups.IsMember(ctx, req.GroupID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !member {
		return nil, appErrors.ErrNotMember
	}

	record := &models.Attendance{
		StudentID:  req.StudentID,
		GroupID:    req.GroupID,
		Date:       date,
		Status:     models.AttendanceStatus(req.Status),
		RecordedBy: scope.UserID,
	}
	if req.Notes != "" {
		record.Notes = &req.Notes
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	return stored, nil
}

// BulkMark saves a whole sheet, collecting per-row errors instead of
// failing the request.
func (s *AttendanceService) BulkMark(ctx context.Context, scope models.Scope, req BulkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if scope.Role == models.RoleTeacher && group.TeacherID != scope.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot mark attendance for another teacher's group")
	}

	result := &BulkAttendanceResult{}
	for _, entry := range req.Records {
		member, err := s.groups.IsMember(ctx, req.GroupID, entry.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
		}
		if !member {
			result.Errors = append(result.Errors, models.AttendanceBulkError{
				StudentID: entry.StudentID,
				Reason:    "student is not a member of this group",
			})
			continue
		}

		record := &models.Attendance{
			StudentID:  entry.StudentID,
			GroupID:    req.GroupID,
			Date:       date,
			Status:     models.AttendanceStatus(entry.Status),
			RecordedBy: scope.UserID,
		}
		if entry.Notes != "" {
			notes := entry.Notes
			record.Notes = &notes
		}
		if _, err := s.repo.Upsert(ctx, record); err != nil {
			s.logger.Warn("failed to save bulk attendance row", zap.String("student_id", entry.StudentID), zap.Error(err))
			result.Errors = append(result.Errors, models.AttendanceBulkError{
				StudentID: entry.StudentID,
				Reason:    "could not save record",
			})
			continue
		}
		result.Saved++
	}
	return result, nil
}

// Update corrects status and notes of an existing record.
func (s *AttendanceService) Update(ctx context.Context, scope models.Scope, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	record, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	record.Status = models.AttendanceStatus(req.Status)
	if req.Notes != "" {
		record.Notes = &req.Notes
	} else {
		record.Notes = nil
	}
	record.RecordedBy = scope.UserID

	if err := s.repo.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	return record, nil
}

// Delete removes an attendance record.
func (s *AttendanceService) Delete(ctx context.Context, scope models.Scope, id string) error {
	if _, err := s.loadScoped(ctx, scope, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return nil
}

// Export renders the filtered attendance list as CSV or PDF.
func (s *AttendanceService) Export(ctx context.Context, scope models.Scope, filter models.AttendanceFilter, format ExportFormat) (*ExportPayload, error) {
	if err := s.applyScope(ctx, scope, &filter); err != nil {
		return nil, err
	}
	records, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance for export")
	}

	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		notes := ""
		if record.Notes != nil {
			notes = *record.Notes
		}
		rows = append(rows, map[string]string{
			"Student":     record.StudentName,
			"Group":       record.GroupName,
			"Date":        record.Date.Format("2006-01-02"),
			"Status":      string(record.Status),
			"Recorded By": record.RecordedByName,
			"Notes":       notes,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Group", "Date", "Status", "Recorded By", "Notes"},
		Rows:    rows,
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	switch format {
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Attendance Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return &ExportPayload{
			Filename:    fmt.Sprintf("attendance_%s.pdf", timestamp),
			ContentType: "application/pdf",
			Data:        payload,
		}, nil
	default:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return &ExportPayload{
			Filename:    fmt.Sprintf("attendance_%s.csv", timestamp),
			ContentType: "text/csv",
			Data:        payload,
		}, nil
	}
}

// StatusCounts aggregates records by status within the scoped filter.
func (s *AttendanceService) StatusCounts(ctx context.Context, scope models.Scope, filter models.AttendanceFilter) (*models.AttendanceStatusCounts, error) {
	if err := s.applyScope(ctx, scope, &filter); err != nil {
		return nil, err
	}
	counts, err := s.repo.StatusCounts(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	return counts, nil
}

func (s *AttendanceService) applyScope(ctx context.Context, scope models.Scope, filter *models.AttendanceFilter) error {
	switch scope.Role {
	case models.RoleStudent:
		filter.StudentID = scope.StudentID
	case models.RoleParent:
		children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if filter.StudentID != "" {
			if !containsString(children, filter.StudentID) {
				return appErrors.Clone(appErrors.ErrForbidden, "cannot access attendance of a foreign student")
			}
			return nil
		}
		if len(children) == 0 {
			// No linked children, match nothing.
			filter.StudentID = scope.ParentID
			return nil
		}
		filter.StudentIDs = children
	case models.RoleTeacher:
		filter.TeacherID = scope.TeacherID
		if filter.GroupID != "" {
			group, err := s.groups.FindByID(ctx, filter.GroupID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, "group not found")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
			}
			if group.TeacherID != scope.TeacherID {
				return appErrors.Clone(appErrors.ErrForbidden, "cannot access another teacher's group")
			}
		}
	}
	return nil
}

func (s *AttendanceService) loadScoped(ctx context.Context, scope models.Scope, id string) (*models.Attendance, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if scope.Role == models.RoleTeacher {
		group, err := s.groups.FindByID(ctx, record.GroupID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		if group.TeacherID != scope.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another teacher's attendance")
		}
	}
	return record, nil
}
