package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnswerKind enumerates the supported question/answer shapes.
type AnswerKind string

const (
	AnswerKindRating   AnswerKind = "rating"
	AnswerKindFreeText AnswerKind = "freeText"
	AnswerKindChoice   AnswerKind = "choice"
)

// Valid reports whether k is one of the known answer kinds.
func (k AnswerKind) Valid() bool {
	switch k {
	case AnswerKindRating, AnswerKindFreeText, AnswerKindChoice:
		return true
	default:
		return false
	}
}

// AnswerValue is the closed set of answer payloads: Rating, FreeText or Choice.
type AnswerValue interface {
	Kind() AnswerKind
	answerValue()
}

// Rating is a 1..5 score. Stored documents may carry non-integer values written
// by older clients; aggregation rounds them.
type Rating float64

// FreeText is a textual comment.
type FreeText string

// Choice is the selected option of a multiple-choice question.
type Choice string

func (Rating) Kind() AnswerKind   { return AnswerKindRating }
func (FreeText) Kind() AnswerKind { return AnswerKindFreeText }
func (Choice) Kind() AnswerKind   { return AnswerKindChoice }

func (Rating) answerValue()   {}
func (FreeText) answerValue() {}
func (Choice) answerValue()   {}

// Answer is one respondent's reply to a single question.
type Answer struct {
	QuestionID string
	Value      AnswerValue
}

// Kind returns the kind of the carried value.
func (a Answer) Kind() AnswerKind {
	if a.Value == nil {
		return ""
	}
	return a.Value.Kind()
}

type answerWire struct {
	QuestionID string          `json:"questionId"`
	Kind       AnswerKind      `json:"kind"`
	Value      json.RawMessage `json:"value"`
}

// MarshalJSON renders {"questionId","kind","value"}.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Value == nil {
		return nil, fmt.Errorf("answer %s has no value", a.QuestionID)
	}
	raw, err := json.Marshal(a.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerWire{QuestionID: a.QuestionID, Kind: a.Value.Kind(), Value: raw})
}

// UnmarshalJSON decodes the wire shape, rejecting a value that does not fit its kind.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var wire answerWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	value, err := DecodeAnswerValue(wire.Kind, wire.Value)
	if err != nil {
		return fmt.Errorf("answer %s: %w", wire.QuestionID, err)
	}
	a.QuestionID = wire.QuestionID
	a.Value = value
	return nil
}

// DecodeAnswerValue converts a raw JSON value into the typed payload for kind.
func DecodeAnswerValue(kind AnswerKind, raw json.RawMessage) (AnswerValue, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("missing value")
	}
	switch kind {
	case AnswerKindRating:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("rating must be a number")
		}
		return Rating(v), nil
	case AnswerKindFreeText:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("freeText must be a string")
		}
		return FreeText(v), nil
	case AnswerKindChoice:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("choice must be a string")
		}
		return Choice(v), nil
	default:
		return nil, fmt.Errorf("unknown answer kind %q", kind)
	}
}

// Answers is an ordered answer list persisted as JSONB. Decoding is lenient:
// entries that do not decode are dropped so stored documents stay readable.
type Answers []Answer

// UnmarshalJSON decodes each element independently, skipping malformed ones.
func (a *Answers) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Answers, 0, len(raws))
	for _, raw := range raws {
		var answer Answer
		if err := json.Unmarshal(raw, &answer); err != nil {
			continue
		}
		out = append(out, answer)
	}
	*a = out
	return nil
}

// Value marshals answers to JSON for persistence.
func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		a = Answers{}
	}
	data, err := json.Marshal([]Answer(a))
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the answer list.
func (a *Answers) Scan(value interface{}) error {
	data, err := jsonBytes(value, "Answers")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*a = Answers{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal answers: %w", err)
	}
	return nil
}

// Response is one respondent's full submission to a session. Append-only.
type Response struct {
	ID             string    `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"sessionId"`
	RespondentHash string    `db:"respondent_hash" json:"-"`
	Answers        Answers   `db:"answers" json:"answers"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submittedAt"`
}

func jsonBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, typeName)
	}
}
