package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportService renders a request's per-assignee responses as a spreadsheet:
// one row per assignee, one column per template field.
type exportService struct {
	repo           repositories.Repository
	db             *gorm.DB
	requestService RequestService
	logger         *slog.Logger
}

func NewExportService(repo repositories.Repository, db *gorm.DB, requestService RequestService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:           repo,
		db:             db,
		requestService: requestService,
		logger:         logger,
	}
}

func (s *exportService) ExportRequest(ctx context.Context, requestID string, userID string) (*ExportResult, error) {
	s.logger.Info("Exporting request", "request_id", requestID, "user_id", userID)

	// Visibility is the request service's rule; reuse it.
	resp, err := s.requestService.GetByID(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	request := resp.DataRequest

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Responses"); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	sheet = "Responses"

	headers := []string{"Assignee", "Role", "School", "Status", "Submitted At"}
	for _, field := range request.Fields {
		headers = append(headers, field.Name)
	}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, assignee := range request.Assignees {
		values := []interface{}{
			assignee.UserName,
			string(assignee.UserRole),
			strValue(assignee.SchoolName),
			string(assignee.Status),
			formatTime(assignee.SubmittedAt),
		}

		responsesByField := make(map[string]models.FieldResponse, len(assignee.Responses))
		for _, r := range assignee.Responses {
			responsesByField[r.FieldID] = r
		}
		for _, field := range request.Fields {
			values = append(values, cellValueFor(field, responsesByField))
		}

		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render spreadsheet: %w", err)
	}

	return &ExportResult{
		FileName:    exportFileName(request.Title),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

// cellValueFor flattens one response into a spreadsheet cell. File-like fields
// export their URL; typed values export their JSON scalar.
func cellValueFor(field models.RequestField, responses map[string]models.FieldResponse) interface{} {
	r, ok := responses[field.ID]
	if !ok {
		return ""
	}

	switch field.Type {
	case models.FieldFile, models.FieldPhoto, models.FieldVoiceNote:
		return strValue(r.FileURL)
	default:
		if len(r.Value) == 0 {
			return ""
		}
		var v interface{}
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return string(r.Value)
		}
		return v
	}
}

func exportFileName(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, title)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "request"
	}
	return fmt.Sprintf("%s-%s.xlsx", slug, time.Now().Format("2006-01-02"))
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
