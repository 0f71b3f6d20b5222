package record

import (
	"context"
	"time"
)

// Speaker identifies one side of the call.
type Speaker string

const (
	SpeakerCaller Speaker = "Caller"
	SpeakerAgent  Speaker = "Agent"
)

// QueryType is the closed classification set for a call.
type QueryType string

const (
	QueryExam       QueryType = "Exam"
	QueryFee        QueryType = "Fee"
	QueryAttendance QueryType = "Attendance"
	QueryAdmission  QueryType = "Admission"
	QueryEmergency  QueryType = "Emergency"
	QueryOther      QueryType = "Other"
)

// ParseQueryType maps free-form classifier output onto the closed set.
// Anything unrecognized is Other.
func ParseQueryType(s string) QueryType {
	switch QueryType(s) {
	case QueryExam, QueryFee, QueryAttendance, QueryAdmission, QueryEmergency, QueryOther:
		return QueryType(s)
	default:
		return QueryOther
	}
}

// CallStatus is the final disposition of a call.
type CallStatus string

const (
	StatusCompleted   CallStatus = "Completed"
	StatusMissed      CallStatus = "Missed"
	StatusTransferred CallStatus = "Transferred"
)

// Utterance is the committed text of one speaker's turn. Immutable once
// appended to a transcript.
type Utterance struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript is an ordered turn log, insertion order = chronological order.
type Transcript []Utterance

// CallRecord is the structured result of one finished session. Created exactly
// once per session by the analysis pipeline and immutable thereafter.
type CallRecord struct {
	ID          string     `json:"id"`
	CallerName  string     `json:"caller_name"`
	CallerRole  string     `json:"caller_role"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	RollNumber  string     `json:"roll_number,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Summary     string     `json:"summary"`
	QueryType   QueryType  `json:"query_type"`
	Duration    string     `json:"duration"`
	Status      CallStatus `json:"status"`
	Transcript  Transcript `json:"transcript"`
}

// Store persists finished call records.
type Store interface {
	Save(ctx context.Context, rec CallRecord) error
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
	Close() error
}
