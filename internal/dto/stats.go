package dto

import (
	"time"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
)

// SessionStatsResult is the frozen summary of a closed session.
type SessionStatsResult struct {
	SessionID    string               `json:"sessionId"`
	Title        string               `json:"title"`
	Subject      string               `json:"subject"`
	Cohort       string               `json:"cohort"`
	InstructorID string               `json:"instructorId"`
	ClosedAt     *time.Time           `json:"closedAt,omitempty"`
	Stats        models.CompiledStats `json:"stats"`
}

// CloseSessionResult is returned after a session is closed or recompiled.
type CloseSessionResult struct {
	SessionID string               `json:"sessionId"`
	Status    models.SessionStatus `json:"status"`
	ClosedAt  *time.Time           `json:"closedAt,omitempty"`
	Stats     models.CompiledStats `json:"stats"`
}
