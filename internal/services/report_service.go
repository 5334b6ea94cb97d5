package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type reportService struct {
	repo   repositories.Repository
	access AccessService
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, access AccessService, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		access: access,
		logger: logger,
	}
}

// ExportCourseHistory builds an XLSX workbook with the course summary, its
// rides and its exams. Returns the file bytes and a suggested filename.
func (s *reportService) ExportCourseHistory(ctx context.Context, actor *Actor, courseID uint) ([]byte, string, error) {
	course, err := s.repo.Course().GetByID(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", NewNotFoundError("course")
		}
		return nil, "", err
	}

	if !s.access.CanViewCourse(actor, course) {
		return nil, "", NewAccessDeniedError("not allowed to export this course")
	}

	rides, _, err := s.repo.Ride().List(ctx, repositories.RideFilters{
		CourseID: &course.ID,
		Limit:    100,
	})
	if err != nil {
		return nil, "", err
	}

	exams, err := s.repo.Exam().ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	f.SetSheetName(f.GetSheetName(0), summary)
	f.SetCellValue(summary, "A1", "Course ID")
	f.SetCellValue(summary, "B1", course.ID)
	f.SetCellValue(summary, "A2", "Category")
	f.SetCellValue(summary, "B2", string(course.Category))
	f.SetCellValue(summary, "A3", "Student")
	f.SetCellValue(summary, "B3", course.StudentID)
	f.SetCellValue(summary, "A4", "Hours purchased")
	f.SetCellValue(summary, "B4", course.HoursPurchased)
	f.SetCellValue(summary, "A5", "Hours consumed")
	f.SetCellValue(summary, "B5", course.HoursConsumed)
	f.SetCellValue(summary, "A6", "Hours remaining")
	f.SetCellValue(summary, "B6", course.RemainingHours())
	f.SetCellValue(summary, "A7", "Archived")
	f.SetCellValue(summary, "B7", course.Archived)

	ridesSheet := "Rides"
	if _, err := f.NewSheet(ridesSheet); err != nil {
		return nil, "", fmt.Errorf("failed to create rides sheet: %w", err)
	}
	headers := []string{"ID", "Status", "Start", "End", "Vehicle", "Hours counted", "Exam ride"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ridesSheet, cell, h)
	}
	for row, ride := range rides {
		values := []interface{}{
			ride.ID,
			string(ride.Status),
			ride.StartTime.Format(time.RFC3339),
			ride.EndTime.Format(time.RFC3339),
			ride.VehicleID,
			ride.HoursCounted,
			ride.ExamID != nil,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(ridesSheet, cell, v)
		}
	}

	examsSheet := "Exams"
	if _, err := f.NewSheet(examsSheet); err != nil {
		return nil, "", fmt.Errorf("failed to create exams sheet: %w", err)
	}
	examHeaders := []string{"ID", "Status", "Pass threshold", "Passed criteria", "Graded criteria", "Resolved at"}
	for i, h := range examHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(examsSheet, cell, h)
	}
	for row, exam := range exams {
		resolvedAt := ""
		if exam.ResolvedAt != nil {
			resolvedAt = exam.ResolvedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			exam.ID,
			string(exam.Status),
			exam.PassThreshold,
			exam.PassedCount(),
			exam.GradedCount(),
			resolvedAt,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(examsSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("course-%d-history.xlsx", course.ID)
	s.logger.Info("Course history exported",
		"course_id", course.ID,
		"rides", len(rides),
		"exams", len(exams),
		"actor_id", actor.ID)

	return buf.Bytes(), filename, nil
}
