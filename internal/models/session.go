package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus captures the feedback session lifecycle.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "ACTIVE"
	SessionStatusClosed SessionStatus = "CLOSED"
)

// Question is a single prompt of a session.
type Question struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	Kind     AnswerKind `json:"kind"`
	Options  []string   `json:"options,omitempty"`
	Required bool       `json:"required"`
}

// HasOption reports whether option is one of the declared choices.
func (q Question) HasOption(option string) bool {
	for _, candidate := range q.Options {
		if candidate == option {
			return true
		}
	}
	return false
}

// Questions stores a session's question list as JSONB.
type Questions []Question

// Value marshals questions to JSON for persistence.
func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		q = Questions{}
	}
	data, err := json.Marshal([]Question(q))
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the question list.
func (q *Questions) Scan(value interface{}) error {
	data, err := jsonBytes(value, "Questions")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*q = Questions{}
		return nil
	}
	var out []Question
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal questions: %w", err)
	}
	*q = out
	return nil
}

// Session is a bounded feedback-collection context owned by one instructor.
type Session struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Subject       string         `db:"subject" json:"subject"`
	Cohort        string         `db:"cohort" json:"cohort"`
	InstructorID  string         `db:"instructor_id" json:"instructorId"`
	Status        SessionStatus  `db:"status" json:"status"`
	Questions     Questions      `db:"questions" json:"questions"`
	ClosesAt      *time.Time     `db:"closes_at" json:"closesAt,omitempty"`
	CompiledStats *CompiledStats `db:"compiled_stats" json:"compiledStats,omitempty"`
	ClosedAt      *time.Time     `db:"closed_at" json:"closedAt,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// Question looks up a question by id.
func (s *Session) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AcceptsResponses reports whether submissions are still allowed at now.
func (s *Session) AcceptsResponses(now time.Time) bool {
	if s.Status != SessionStatusActive {
		return false
	}
	return s.ClosesAt == nil || now.Before(*s.ClosesAt)
}

// SessionFilter captures list criteria.
type SessionFilter struct {
	InstructorID string
	Status       *SessionStatus
	Page         int
	PageSize     int
}
