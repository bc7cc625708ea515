package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

const sessionColumns = `id, title, subject, cohort, instructor_id, status, questions, closes_at, compiled_stats, closed_at, created_at, updated_at`

// SessionRepository persists feedback sessions and their frozen statistics.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}

	const query = `INSERT INTO sessions (id, title, subject, cohort, instructor_id, status, questions, closes_at, created_at, updated_at) VALUES (:id, :title, :subject, :cohort, :instructor_id, :status, :questions, :closes_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID returns a session by id. sql.ErrNoRows is returned unwrapped.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 LIMIT 1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// List returns sessions matching the filter together with the total count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	baseQuery := `FROM sessions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d", sessionColumns, baseQuery, pageSize, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// ListDue returns ids of active sessions whose deadline is at or before now.
func (r *SessionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id FROM sessions WHERE status = $1 AND closes_at IS NOT NULL AND closes_at <= $2 ORDER BY closes_at ASC LIMIT $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.SessionStatusActive, now, limit); err != nil {
		return nil, fmt.Errorf("list due sessions: %w", err)
	}
	return ids, nil
}

// CloseWithStats marks an active session closed and freezes its statistics in
// one transaction. A session that is no longer active yields ErrSessionClosed
// and nothing is written.
func (r *SessionRepository) CloseWithStats(ctx context.Context, sessionID string, stats models.CompiledStats, closedAt time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin close session transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.SessionStatus
	const selectQuery = `SELECT status FROM sessions WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &status, selectQuery, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("lock session: %w", err)
	}
	if status != models.SessionStatusActive {
		err = appErrors.ErrSessionClosed
		return err
	}

	const updateQuery = `UPDATE sessions SET status = $2, compiled_stats = $3, closed_at = $4, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, sessionID, models.SessionStatusClosed, stats, closedAt); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit close session: %w", err)
	}
	return nil
}

// ReplaceStats overwrites the frozen statistics of a closed session.
func (r *SessionRepository) ReplaceStats(ctx context.Context, sessionID string, stats models.CompiledStats) error {
	const query = `UPDATE sessions SET compiled_stats = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, sessionID, stats, time.Now().UTC(), models.SessionStatusClosed)
	if err != nil {
		return fmt.Errorf("replace session stats: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace session stats rows: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrSessionNotClosed
	}
	return nil
}
