package models

import "time"

type Patient struct {
	PatientID string     `json:"patient_id"`
	DoctorID  string     `json:"doctor_id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Code      string     `json:"code"`
	Position  int        `json:"position"`
	Status    string     `json:"status"`
	Skipped   bool       `json:"skipped,omitempty"`
	JoinedAt  time.Time  `json:"joined_at"`
	ServedAt  *time.Time `json:"served_at,omitempty"`
	DateAdded string     `json:"date_added"`
}

const (
	StatusWaiting  = "waiting"
	StatusServed   = "served"
	StatusSkipped  = "skipped"
	StatusCanceled = "canceled"
)

// TerminalStatus reports whether a status ends a patient's time in the queue.
func TerminalStatus(status string) bool {
	switch status {
	case StatusServed, StatusSkipped, StatusCanceled:
		return true
	default:
		return false
	}
}

// DateFormat is the calendar-day format used for daily numbering and reset scoping.
const DateFormat = "2006-01-02"
