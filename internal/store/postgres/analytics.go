package postgres

import (
	"context"
	"fmt"

	"github.com/Adrieleise/upnxt/internal/models"
)

func (s *Store) UpsertDaily(ctx context.Context, record models.DailyAnalytics) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_analytics (date, doctor_id, total_served, total_skipped, total_canceled, avg_wait_minutes, min_wait_minutes, max_wait_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date, doctor_id)
		DO UPDATE SET total_served = EXCLUDED.total_served,
			total_skipped = EXCLUDED.total_skipped,
			total_canceled = EXCLUDED.total_canceled,
			avg_wait_minutes = EXCLUDED.avg_wait_minutes,
			min_wait_minutes = EXCLUDED.min_wait_minutes,
			max_wait_minutes = EXCLUDED.max_wait_minutes
	`, record.Date, record.DoctorID, record.TotalServed, record.TotalSkipped, record.TotalCanceled, record.AverageWaitMins, record.MinWaitMins, record.MaxWaitMins)
	return err
}

// listDailyQuery adds a date or doctor predicate only when the caller gave
// one, so an unbounded listing returns every stored day.
func listDailyQuery(doctorID, from, to string) (string, []interface{}) {
	query := `
		SELECT date, doctor_id, total_served, total_skipped, total_canceled, avg_wait_minutes, min_wait_minutes, max_wait_minutes
		FROM daily_analytics
		WHERE TRUE
	`
	args := []interface{}{}
	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	if doctorID != "" {
		args = append(args, doctorID)
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	query += " ORDER BY date ASC, doctor_id ASC"
	return query, args
}

func (s *Store) ListDaily(ctx context.Context, doctorID, from, to string) ([]models.DailyAnalytics, error) {
	query, args := listDailyQuery(doctorID, from, to)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DailyAnalytics
	for rows.Next() {
		var r models.DailyAnalytics
		if err := rows.Scan(&r.Date, &r.DoctorID, &r.TotalServed, &r.TotalSkipped, &r.TotalCanceled, &r.AverageWaitMins, &r.MinWaitMins, &r.MaxWaitMins); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
