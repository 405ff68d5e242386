package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"

	"github.com/jackc/pgx/v5"
)

// ArchiveAndClear archives every still-waiting entry as canceled with
// servedAt = resetAt, empties the active queue, and flips every doctor to
// not accepting. One transaction: a failure anywhere rolls the whole reset
// back, so no entry is ever deleted without its archive row.
func (s *Store) ArchiveAndClear(ctx context.Context, resetAt time.Time) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", store.ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO queue_archive (patient_id, doctor_id, name, phone, code, status, joined_at, served_at, date_added, date_served)
		SELECT patient_id, doctor_id, name, phone, code, $1, joined_at, $2, date_added, $3
		FROM queue_entries
	`, models.StatusCanceled, resetAt, resetAt.Format(models.DateFormat))
	if err != nil {
		return 0, err
	}
	archived := int(tag.RowsAffected())

	if _, err = tx.Exec(ctx, `DELETE FROM queue_entries`); err != nil {
		return 0, err
	}

	if _, err = tx.Exec(ctx, `UPDATE doctors SET accepting_queues = FALSE`); err != nil {
		return 0, err
	}

	if _, err = tx.Exec(ctx, `UPDATE queue_versions SET version = version + 1`); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return archived, nil
}

func (s *Store) ListArchived(ctx context.Context, doctorID, date string) ([]models.Patient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT patient_id, doctor_id, name, phone, code, status, joined_at, served_at, date_added
		FROM queue_archive
		WHERE doctor_id = $1 AND date_served = $2
		ORDER BY served_at ASC
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		var p models.Patient
		var servedAt time.Time
		if err := rows.Scan(&p.PatientID, &p.DoctorID, &p.Name, &p.Phone, &p.Code, &p.Status, &p.JoinedAt, &servedAt, &p.DateAdded); err != nil {
			return nil, err
		}
		p.ServedAt = &servedAt
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return patients, nil
}

func (s *Store) ArchivedDoctorIDs(ctx context.Context, date string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT doctor_id
		FROM queue_archive
		WHERE date_served = $1
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
