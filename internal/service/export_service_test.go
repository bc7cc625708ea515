package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/pkg/export"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset) ([]byte, error) {
	return nil, errors.New("font missing")
}

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	stats, _ := newStatsServiceForTest(nil, closedSession("session-1", "teacher-1"), activeSession("active", "teacher-1"))
	return NewExportService(stats, nil, nil, zap.NewNop())
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := newExportServiceForTest(t)

	file, err := svc.Render(context.Background(), "session-1", "CSV", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "session-session-1-stats.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"section", "label", "value", "avg_rating", "response_id"}, records[0])
	assert.Contains(t, records, []string{"summary", "total_responses", "2", "", ""})
	assert.Contains(t, records, []string{"summary", "avg_rating", "4.50", "", ""})
	assert.Contains(t, records, []string{"distribution", "5", "1", "", ""})
	assert.Contains(t, records, []string{"top_comments", "1", "great pacing", "5.00", "r1"})
	assert.Contains(t, records, []string{"least_rated_comments", "1", "too fast", "4.00", "r2"})
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc := newExportServiceForTest(t)

	file, err := svc.Render(context.Background(), "session-1", "pdf", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceRejections(t *testing.T) {
	svc := newExportServiceForTest(t)

	_, err := svc.Render(context.Background(), "session-1", "xlsx", teacherClaims("teacher-1"))
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))

	_, err = svc.Render(context.Background(), "active", "csv", teacherClaims("teacher-1"))
	assert.ErrorIs(t, err, appErrors.ErrSessionNotClosed)

	_, err = svc.Render(context.Background(), "session-1", "csv", studentClaims("student-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestExportServiceRendererFailure(t *testing.T) {
	stats, _ := newStatsServiceForTest(nil, closedSession("session-1", "teacher-1"))
	svc := NewExportService(stats, failingRenderer{}, failingRenderer{}, zap.NewNop())

	_, err := svc.Render(context.Background(), "session-1", "", teacherClaims("teacher-1"))
	assert.Equal(t, appErrors.ErrInternal.Code, errorCode(t, err))
}

func TestStatsDatasetLayout(t *testing.T) {
	session := closedSession("session-1", "teacher-1")
	stats, _ := newStatsServiceForTest(nil, session)
	result, _, err := stats.Get(context.Background(), "session-1", adminClaims())
	require.NoError(t, err)

	dataset := StatsDataset(result)
	assert.Equal(t, "Week 3 retro", dataset.Title)
	assert.Equal(t, "Subject: Algebra | Cohort: 2024-A", dataset.Notes[0])
	assert.Equal(t, "Closed at: "+session.ClosedAt.Format(time.RFC3339), dataset.Notes[1])
	// 6 summary rows, 5 distribution rows, 2 comments
	assert.Len(t, dataset.Rows, 13)
	assert.Equal(t, "distribution", dataset.Rows[6]["section"])
	assert.Equal(t, "1", dataset.Rows[6]["label"])
}
