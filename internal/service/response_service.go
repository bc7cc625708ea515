package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/dto"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

const maxFreeTextLength = 2000

type responseWriter interface {
	Create(ctx context.Context, response *models.Response) error
}

type respondentHasher interface {
	Hash(sessionID, studentID string) string
}

// ResponseService accepts student submissions for active sessions.
type ResponseService struct {
	sessions  sessionReader
	repo      responseWriter
	hasher    respondentHasher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewResponseService constructs the response service.
func NewResponseService(sessions sessionReader, repo responseWriter, hasher respondentHasher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ResponseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ResponseService{sessions: sessions, repo: repo, hasher: hasher, metrics: metrics, validator: validate, logger: logger, now: time.Now}
	registerQuestionKind(svc.validator)
	return svc
}

// Submit validates and stores the caller's single response to a session.
func (s *ResponseService) Submit(ctx context.Context, sessionID string, req dto.SubmitResponseRequest, claims *models.JWTClaims) (*dto.SubmitResponseResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	session, err := loadSession(ctx, s.sessions, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !session.AcceptsResponses(now) {
		return nil, appErrors.ErrSessionClosed
	}

	answers, err := buildAnswers(session, req.Answers)
	if err != nil {
		return nil, err
	}

	response := &models.Response{
		SessionID:      session.ID,
		RespondentHash: s.hasher.Hash(session.ID, claims.UserID),
		Answers:        answers,
		SubmittedAt:    now,
	}
	if err := s.repo.Create(ctx, response); err != nil {
		if errors.Is(err, appErrors.ErrAlreadySubmitted) {
			return nil, appErrors.ErrAlreadySubmitted
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store response")
	}

	s.metrics.IncResponsesSubmitted()
	s.logger.Info("response submitted",
		zap.String("session_id", session.ID),
		zap.String("response_id", response.ID),
		zap.Int("answers", len(answers)),
	)
	return &dto.SubmitResponseResult{ID: response.ID, SessionID: session.ID, SubmittedAt: response.SubmittedAt}, nil
}

func buildAnswers(session *models.Session, reqs []dto.AnswerRequest) (models.Answers, error) {
	answers := make(models.Answers, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	answered := make(map[string]struct{}, len(reqs))

	for _, req := range reqs {
		question, ok := session.Question(req.QuestionID)
		if !ok {
			return nil, answerError(req.QuestionID, "unknown question")
		}
		if _, dup := seen[question.ID]; dup {
			return nil, answerError(question.ID, "answered more than once")
		}
		seen[question.ID] = struct{}{}

		kind := models.AnswerKind(req.Kind)
		if kind != question.Kind {
			return nil, answerError(question.ID, fmt.Sprintf("expected a %s answer", question.Kind))
		}
		value, err := models.DecodeAnswerValue(kind, req.Value)
		if err != nil {
			return nil, answerError(question.ID, err.Error())
		}

		switch v := value.(type) {
		case models.Rating:
			score := float64(v)
			if score != math.Trunc(score) || score < models.MinRating || score > models.MaxRating {
				return nil, answerError(question.ID, fmt.Sprintf("rating must be a whole number between %d and %d", models.MinRating, models.MaxRating))
			}
		case models.FreeText:
			text := strings.TrimSpace(string(v))
			if text == "" {
				continue
			}
			if utf8.RuneCountInString(text) > maxFreeTextLength {
				return nil, answerError(question.ID, fmt.Sprintf("text exceeds %d characters", maxFreeTextLength))
			}
			value = models.FreeText(text)
		case models.Choice:
			if !question.HasOption(string(v)) {
				return nil, answerError(question.ID, "selected option is not offered")
			}
		}

		answers = append(answers, models.Answer{QuestionID: question.ID, Value: value})
		answered[question.ID] = struct{}{}
	}

	for _, question := range session.Questions {
		if _, ok := answered[question.ID]; question.Required && !ok {
			return nil, answerError(question.ID, "answer is required")
		}
	}
	if len(answers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "response has no answers")
	}
	return answers, nil
}

func answerError(questionID, reason string) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %q: %s", questionID, reason))
}
