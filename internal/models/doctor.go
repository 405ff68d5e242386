package models

import "time"

type Doctor struct {
	DoctorID        string    `json:"doctor_id"`
	Name            string    `json:"name"`
	Specialty       string    `json:"specialty,omitempty"`
	AcceptingQueues bool      `json:"accepting_queues"`
	CreatedAt       time.Time `json:"created_at"`
}
