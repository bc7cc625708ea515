package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

const uniqueViolation = "23505"

// ResponseRepository stores submitted responses in postgres.
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository constructs the repository.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Create appends a response. A second submission from the same respondent
// for the same session returns ErrAlreadySubmitted.
func (r *ResponseRepository) Create(ctx context.Context, response *models.Response) error {
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	if response.SubmittedAt.IsZero() {
		response.SubmittedAt = time.Now().UTC()
	}

	const query = `INSERT INTO responses (id, session_id, respondent_hash, answers, submitted_at) VALUES (:id, :session_id, :respondent_hash, :answers, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, response); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return appErrors.ErrAlreadySubmitted
		}
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

// ListBySession returns every response of a session in ascending submission
// order, ties broken by id. Aggregation relies on this order.
func (r *ResponseRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Response, error) {
	const query = `SELECT id, session_id, respondent_hash, answers, submitted_at FROM responses WHERE session_id = $1 ORDER BY submitted_at ASC, id ASC`
	var responses []models.Response
	if err := r.db.SelectContext(ctx, &responses, query, sessionID); err != nil {
		return nil, fmt.Errorf("list responses by session: %w", err)
	}
	return responses, nil
}

// CountBySession returns how many responses a session has received.
func (r *ResponseRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM responses WHERE session_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, sessionID); err != nil {
		return 0, fmt.Errorf("count responses by session: %w", err)
	}
	return total, nil
}
