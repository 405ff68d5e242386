package store

import "errors"

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrVersionConflict = errors.New("queue version conflict")
	ErrUnavailable     = errors.New("store unavailable")
)
