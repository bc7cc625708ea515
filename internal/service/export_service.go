package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
	"github.com/noah-isme/feedback-sessions-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var statsExportHeaders = []string{"section", "label", "value", "avg_rating", "response_id"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type statsProvider interface {
	Get(ctx context.Context, sessionID string, claims *models.JWTClaims) (*dto.SessionStatsResult, bool, error)
}

// ExportFile is a rendered document ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders frozen session statistics as CSV or PDF.
type ExportService struct {
	stats  statsProvider
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers use the defaults.
func NewExportService(stats statsProvider, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{stats: stats, csv: csv, pdf: pdf, logger: logger}
}

// Render produces the export document for a closed session.
func (s *ExportService) Render(ctx context.Context, sessionID, format string, claims *models.JWTClaims) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	result, _, err := s.stats.Get(ctx, sessionID, claims)
	if err != nil {
		return nil, err
	}
	dataset := StatsDataset(result)

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		data, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("stats exported",
		zap.String("session_id", sessionID),
		zap.String("format", format),
		zap.Int("bytes", len(data)),
	)
	return &ExportFile{
		Filename:    fmt.Sprintf("session-%s-stats.%s", sessionID, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// StatsDataset flattens compiled statistics into export rows: summary figures,
// the rating distribution and one row per surfaced comment.
func StatsDataset(result *dto.SessionStatsResult) export.Dataset {
	stats := result.Stats
	rows := []map[string]string{
		summaryRow("total_responses", strconv.Itoa(stats.TotalResponses)),
		summaryRow("rating_answers", strconv.Itoa(stats.RatingAnswerCount())),
		summaryRow("avg_rating", formatRating(stats.AvgRating)),
		summaryRow("top_rating", formatRating(stats.TopRating)),
		summaryRow("least_rating", formatRating(stats.LeastRating)),
		summaryRow("compiled_at", stats.CompiledAt.UTC().Format(time.RFC3339)),
	}
	for r := models.MinRating; r <= models.MaxRating; r++ {
		rows = append(rows, map[string]string{
			"section": "distribution",
			"label":   strconv.Itoa(r),
			"value":   strconv.Itoa(stats.RatingDistribution[r]),
		})
	}
	rows = append(rows, commentRows("top_comments", stats.TopComments)...)
	rows = append(rows, commentRows("avg_comments", stats.AvgComments)...)
	rows = append(rows, commentRows("least_rated_comments", stats.LeastRatedComments)...)

	notes := []string{fmt.Sprintf("Subject: %s | Cohort: %s", result.Subject, result.Cohort)}
	if result.ClosedAt != nil {
		notes = append(notes, "Closed at: "+result.ClosedAt.UTC().Format(time.RFC3339))
	}
	return export.Dataset{
		Title:   result.Title,
		Notes:   notes,
		Headers: statsExportHeaders,
		Weights: []float64{3, 2, 8, 2, 4},
		Rows:    rows,
	}
}

func summaryRow(label, value string) map[string]string {
	return map[string]string{"section": "summary", "label": label, "value": value}
}

func commentRows(section string, comments []models.CommentEntry) []map[string]string {
	rows := make([]map[string]string, 0, len(comments))
	for i, comment := range comments {
		rows = append(rows, map[string]string{
			"section":     section,
			"label":       strconv.Itoa(i + 1),
			"value":       comment.Text,
			"avg_rating":  formatRating(comment.AvgRating),
			"response_id": comment.ResponseID,
		})
	}
	return rows
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
