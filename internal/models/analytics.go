package models

type DailyAnalytics struct {
	Date            string `json:"date"`
	DoctorID        string `json:"doctor_id"`
	TotalServed     int    `json:"total_served"`
	TotalSkipped    int    `json:"total_skipped"`
	TotalCanceled   int    `json:"total_canceled"`
	AverageWaitMins int    `json:"average_wait_minutes"`
	MinWaitMins     int    `json:"min_wait_minutes"`
	MaxWaitMins     int    `json:"max_wait_minutes"`
}
