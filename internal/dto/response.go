package dto

import (
	"encoding/json"
	"time"
)

// AnswerRequest is one submitted answer. Value is decoded against Kind.
type AnswerRequest struct {
	QuestionID string          `json:"questionId" validate:"required"`
	Kind       string          `json:"kind" validate:"required,question_kind"`
	Value      json.RawMessage `json:"value"`
}

// SubmitResponseRequest is a student's submission to a session.
type SubmitResponseRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"required,min=1,max=50,dive"`
}

// SubmitResponseResult acknowledges a stored submission.
type SubmitResponseResult struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	SubmittedAt time.Time `json:"submittedAt"`
}
