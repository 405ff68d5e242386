package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetDoctor(ctx context.Context, doctorID string) (models.Doctor, error) {
	var doctor models.Doctor
	row := s.pool.QueryRow(ctx, `
		SELECT doctor_id, name, specialty, accepting_queues, created_at
		FROM doctors
		WHERE doctor_id = $1
	`, doctorID)
	if err := row.Scan(&doctor.DoctorID, &doctor.Name, &doctor.Specialty, &doctor.AcceptingQueues, &doctor.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Doctor{}, store.ErrDoctorNotFound
		}
		return models.Doctor{}, err
	}
	return doctor, nil
}

func (s *Store) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doctor_id, name, specialty, accepting_queues, created_at
		FROM doctors
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []models.Doctor
	for rows.Next() {
		var doctor models.Doctor
		if err := rows.Scan(&doctor.DoctorID, &doctor.Name, &doctor.Specialty, &doctor.AcceptingQueues, &doctor.CreatedAt); err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (s *Store) CreateDoctor(ctx context.Context, name, specialty string) (models.Doctor, error) {
	doctor := models.Doctor{
		DoctorID:  uuid.NewString(),
		Name:      name,
		Specialty: specialty,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO doctors (doctor_id, name, specialty, accepting_queues, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
	`, doctor.DoctorID, doctor.Name, doctor.Specialty, doctor.CreatedAt)
	if err != nil {
		return models.Doctor{}, err
	}
	return doctor, nil
}

// doctorCleanupStatements remove a deleted doctor's per-doctor state. The
// still-waiting entries are archived first, so the queue_entries delete
// never discards an unarchived row.
var doctorCleanupStatements = []string{
	`DELETE FROM queue_entries WHERE doctor_id = $1`,
	`DELETE FROM queue_versions WHERE doctor_id = $1`,
	`DELETE FROM code_sequences WHERE doctor_id = $1`,
}

func (s *Store) DeleteDoctor(ctx context.Context, doctorID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		DELETE FROM doctors
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrDoctorNotFound
		return err
	}

	removedAt := time.Now()
	if _, err = tx.Exec(ctx, `
		INSERT INTO queue_archive (patient_id, doctor_id, name, phone, code, status, joined_at, served_at, date_added, date_served)
		SELECT patient_id, doctor_id, name, phone, code, $1, joined_at, $2, date_added, $3
		FROM queue_entries
		WHERE doctor_id = $4
	`, models.StatusCanceled, removedAt, removedAt.Format(models.DateFormat), doctorID); err != nil {
		return err
	}

	for _, statement := range doctorCleanupStatements {
		if _, err = tx.Exec(ctx, statement, doctorID); err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	return err
}

func (s *Store) SetAccepting(ctx context.Context, doctorID string, accepting bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE doctors
		SET accepting_queues = $1
		WHERE doctor_id = $2
	`, accepting, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDoctorNotFound
	}
	return nil
}
