package dto

import (
	"time"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
)

// QuestionRequest describes one question of a new session.
type QuestionRequest struct {
	ID       string   `json:"id" validate:"required,max=64"`
	Text     string   `json:"text" validate:"required,max=500"`
	Kind     string   `json:"kind" validate:"required,question_kind"`
	Options  []string `json:"options" validate:"omitempty,max=20,dive,required,max=200"`
	Required bool     `json:"required"`
}

// CreateSessionRequest is the payload for opening a feedback session.
type CreateSessionRequest struct {
	Title     string            `json:"title" validate:"required,max=200"`
	Subject   string            `json:"subject" validate:"required,max=120"`
	Cohort    string            `json:"cohort" validate:"required,max=120"`
	ClosesAt  *time.Time        `json:"closesAt"`
	Questions []QuestionRequest `json:"questions" validate:"required,min=1,max=50,dive"`
}

// SessionListQuery carries list filters from the query string.
type SessionListQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// SessionDetail is a session together with its live response count.
type SessionDetail struct {
	models.Session
	ResponseCount int `json:"responseCount"`
}
