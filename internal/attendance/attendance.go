package attendance

import "time"

// Status of a recorded attendance fact.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// Source identifies what produced an attendance event.
type Source string

const (
	SourceBiometric Source = "BIOMETRIC"
	SourceManual    Source = "MANUAL"
	SourceSystem    Source = "SYSTEM"
)

// Event is one recorded attendance fact: one student, one subject, one date.
// At most one event exists per (student_id, subject_id, date); the unique
// index in the store enforces this across writers.
type Event struct {
	ID         string     `json:"id"`
	StudentID  int64      `json:"student_id"`
	SubjectID  int64      `json:"subject_id"`
	Date       time.Time  `json:"date"`
	TimeIn     *time.Time `json:"time_in,omitempty"`
	Status     Status     `json:"status"`
	Source     Source     `json:"source"`
	Confidence *float64   `json:"confidence,omitempty"`
	MarkedBy   string     `json:"marked_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Student carries the two fields that determine slot eligibility.
type Student struct {
	ID        int64 `json:"id"`
	FacultyID int64 `json:"faculty_id"`
	Semester  int   `json:"semester"`
}

// EventFilter narrows event listings. Zero values mean "any".
type EventFilter struct {
	StudentID int64
	SubjectID int64
	From      time.Time
	To        time.Time
	Status    Status
	Source    Source
}
