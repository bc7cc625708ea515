package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

type sessionRepoStub struct {
	mu         sync.Mutex
	items      map[string]*models.Session
	findCalls  int
	findErr    error
	closeErr   error
	replaceErr error
	closeCalls int
	listFilter models.SessionFilter
	due        []string
	dueErr     error
}

func newSessionRepoStub(sessions ...*models.Session) *sessionRepoStub {
	repo := &sessionRepoStub{items: map[string]*models.Session{}}
	for _, session := range sessions {
		repo.items[session.ID] = session
	}
	return repo
}

func (r *sessionRepoStub) FindByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	session, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *session
	return &cp, nil
}

func (r *sessionRepoStub) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = fmt.Sprintf("session-%d", len(r.items)+1)
	cp := *session
	r.items[session.ID] = &cp
	return nil
}

func (r *sessionRepoStub) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listFilter = filter
	var out []models.Session
	for _, session := range r.items {
		if filter.InstructorID != "" && session.InstructorID != filter.InstructorID {
			continue
		}
		if filter.Status != nil && session.Status != *filter.Status {
			continue
		}
		out = append(out, *session)
	}
	return out, len(out), nil
}

func (r *sessionRepoStub) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if r.dueErr != nil {
		return nil, r.dueErr
	}
	return r.due, nil
}

func (r *sessionRepoStub) CloseWithStats(ctx context.Context, id string, stats models.CompiledStats, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeCalls++
	if r.closeErr != nil {
		return r.closeErr
	}
	session, ok := r.items[id]
	if !ok {
		return appErrors.ErrNotFound
	}
	if session.Status != models.SessionStatusActive {
		return appErrors.ErrSessionClosed
	}
	session.Status = models.SessionStatusClosed
	session.CompiledStats = &stats
	session.ClosedAt = &closedAt
	return nil
}

func (r *sessionRepoStub) ReplaceStats(ctx context.Context, id string, stats models.CompiledStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	session, ok := r.items[id]
	if !ok || session.Status != models.SessionStatusClosed {
		return appErrors.ErrSessionNotClosed
	}
	session.CompiledStats = &stats
	return nil
}

func (r *sessionRepoStub) get(id string) models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[id]
}

type responseRepoStub struct {
	mu        sync.Mutex
	items     []models.Response
	listErr   error
	listBlock bool
	listCalls int
	createErr error
}

func (r *responseRepoStub) Create(ctx context.Context, response *models.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.items {
		if existing.SessionID == response.SessionID && existing.RespondentHash == response.RespondentHash {
			return appErrors.ErrAlreadySubmitted
		}
	}
	response.ID = fmt.Sprintf("response-%d", len(r.items)+1)
	r.items = append(r.items, *response)
	return nil
}

func (r *responseRepoStub) ListBySession(ctx context.Context, sessionID string) ([]models.Response, error) {
	r.mu.Lock()
	r.listCalls++
	block, listErr := r.listBlock, r.listErr
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if listErr != nil {
		return nil, listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Response
	for _, response := range r.items {
		if response.SessionID == sessionID {
			out = append(out, response)
		}
	}
	return out, nil
}

func (r *responseRepoStub) CountBySession(ctx context.Context, sessionID string) (int, error) {
	responses, err := r.ListBySession(ctx, sessionID)
	return len(responses), err
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func activeSession(id, instructorID string) *models.Session {
	return &models.Session{
		ID:           id,
		Title:        "Week 3 retro",
		Subject:      "Algebra",
		Cohort:       "2024-A",
		InstructorID: instructorID,
		Status:       models.SessionStatusActive,
		Questions: models.Questions{
			{ID: "q1", Text: "How clear was the lesson?", Kind: models.AnswerKindRating, Required: true},
			{ID: "q2", Text: "Anything else?", Kind: models.AnswerKindFreeText},
			{ID: "q3", Text: "Pace", Kind: models.AnswerKindChoice, Options: []string{"slow", "ok", "fast"}},
		},
	}
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func newSessionServiceForTest(repo *sessionRepoStub, responses *responseRepoStub) *SessionService {
	return NewSessionService(repo, responses, validator.New(), zap.NewNop())
}

func validCreateRequest() dto.CreateSessionRequest {
	return dto.CreateSessionRequest{
		Title:   " Week 3 retro ",
		Subject: "Algebra",
		Cohort:  "2024-A",
		Questions: []dto.QuestionRequest{
			{ID: "q1", Text: "How clear was the lesson?", Kind: "rating", Required: true},
			{ID: "q2", Text: "Pace", Kind: "choice", Options: []string{" slow ", "ok", "slow"}},
		},
	}
}

func TestSessionServiceCreate(t *testing.T) {
	repo := newSessionRepoStub()
	svc := newSessionServiceForTest(repo, &responseRepoStub{})

	session, err := svc.Create(context.Background(), validCreateRequest(), teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, "Week 3 retro", session.Title)
	assert.Equal(t, "teacher-1", session.InstructorID)
	assert.Equal(t, models.SessionStatusActive, session.Status)
	require.Len(t, session.Questions, 2)
	assert.Equal(t, []string{"slow", "ok"}, session.Questions[1].Options)
	assert.Nil(t, session.CompiledStats)
}

func TestSessionServiceCreateRequiresInstructor(t *testing.T) {
	svc := newSessionServiceForTest(newSessionRepoStub(), &responseRepoStub{})

	_, err := svc.Create(context.Background(), validCreateRequest(), studentClaims("student-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(context.Background(), validCreateRequest(), nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSessionServiceCreateValidation(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	cases := map[string]func(req *dto.CreateSessionRequest){
		"unknown kind":       func(req *dto.CreateSessionRequest) { req.Questions[0].Kind = "essay" },
		"duplicate ids":      func(req *dto.CreateSessionRequest) { req.Questions[1].ID = "q1" },
		"single option":      func(req *dto.CreateSessionRequest) { req.Questions[1].Options = []string{"a", " a "} },
		"options on rating":  func(req *dto.CreateSessionRequest) { req.Questions[0].Options = []string{"a", "b"} },
		"no questions":       func(req *dto.CreateSessionRequest) { req.Questions = nil },
		"missing title":      func(req *dto.CreateSessionRequest) { req.Title = "" },
		"deadline in past":   func(req *dto.CreateSessionRequest) { req.ClosesAt = &past },
		"blank question id":  func(req *dto.CreateSessionRequest) { req.Questions[0].ID = "" },
		"blank option value": func(req *dto.CreateSessionRequest) { req.Questions[1].Options = []string{"a", ""} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newSessionServiceForTest(newSessionRepoStub(), &responseRepoStub{})
			req := validCreateRequest()
			mutate(&req)
			_, err := svc.Create(context.Background(), req, teacherClaims("teacher-1"))
			assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
		})
	}
}

func TestSessionServiceGetHidesStatsFromStudents(t *testing.T) {
	session := activeSession("session-1", "teacher-1")
	session.Status = models.SessionStatusClosed
	session.CompiledStats = &models.CompiledStats{TotalResponses: 3}
	svc := newSessionServiceForTest(newSessionRepoStub(session), &responseRepoStub{})

	detail, err := svc.Get(context.Background(), "session-1", studentClaims("student-1"))
	require.NoError(t, err)
	assert.Nil(t, detail.CompiledStats)
	assert.Zero(t, detail.ResponseCount)
	assert.Len(t, detail.Questions, 3)
}

func TestSessionServiceGetForOwner(t *testing.T) {
	responses := &responseRepoStub{items: []models.Response{
		{ID: "r1", SessionID: "session-1"},
		{ID: "r2", SessionID: "session-1"},
		{ID: "r3", SessionID: "session-2"},
	}}
	svc := newSessionServiceForTest(newSessionRepoStub(activeSession("session-1", "teacher-1")), responses)

	detail, err := svc.Get(context.Background(), "session-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ResponseCount)

	_, err = svc.Get(context.Background(), "session-1", teacherClaims("teacher-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	detail, err = svc.Get(context.Background(), "session-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ResponseCount)
}

func TestSessionServiceGetNotFound(t *testing.T) {
	svc := newSessionServiceForTest(newSessionRepoStub(), &responseRepoStub{})

	_, err := svc.Get(context.Background(), "missing", teacherClaims("teacher-1"))
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestSessionServiceListScopesTeachers(t *testing.T) {
	repo := newSessionRepoStub(activeSession("session-1", "teacher-1"), activeSession("session-2", "teacher-2"))
	svc := newSessionServiceForTest(repo, &responseRepoStub{})

	sessions, pagination, err := svc.List(context.Background(), dto.SessionListQuery{Status: "active"}, teacherClaims("teacher-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session-1", sessions[0].ID)
	assert.Equal(t, "teacher-1", repo.listFilter.InstructorID)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	sessions, _, err = svc.List(context.Background(), dto.SessionListQuery{Page: 2, PageSize: 500}, adminClaims())
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Equal(t, 2, repo.listFilter.Page)
	assert.Equal(t, 20, repo.listFilter.PageSize)
}

func TestSessionServiceListRejections(t *testing.T) {
	svc := newSessionServiceForTest(newSessionRepoStub(), &responseRepoStub{})

	_, _, err := svc.List(context.Background(), dto.SessionListQuery{}, studentClaims("student-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = svc.List(context.Background(), dto.SessionListQuery{Status: "archived"}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
}
