package postgres

import (
	"context"
	"fmt"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const codePad = 3

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Snapshot(ctx context.Context, doctorID string) (store.Snapshot, error) {
	var snap store.Snapshot

	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_versions (doctor_id, version)
		VALUES ($1, 0)
		ON CONFLICT (doctor_id) DO NOTHING
	`, doctorID)
	if err != nil {
		return store.Snapshot{}, err
	}

	row := s.pool.QueryRow(ctx, `
		SELECT version FROM queue_versions WHERE doctor_id = $1
	`, doctorID)
	if err := row.Scan(&snap.Version); err != nil {
		return store.Snapshot{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT patient_id, doctor_id, name, phone, code, position, skipped, joined_at, date_added
		FROM queue_entries
		WHERE doctor_id = $1
		ORDER BY position ASC
	`, doctorID)
	if err != nil {
		return store.Snapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.PatientID, &p.DoctorID, &p.Name, &p.Phone, &p.Code, &p.Position, &p.Skipped, &p.JoinedAt, &p.DateAdded); err != nil {
			return store.Snapshot{}, err
		}
		p.Status = models.StatusWaiting
		snap.Waiting = append(snap.Waiting, p)
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) ApplyBatch(ctx context.Context, doctorID string, version int64, batch store.Batch) (models.Patient, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Patient{}, fmt.Errorf("%w: begin: %v", store.ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	current, err := lockVersion(ctx, tx, doctorID)
	if err != nil {
		return models.Patient{}, err
	}
	if current != version {
		err = store.ErrVersionConflict
		return models.Patient{}, err
	}

	var created models.Patient
	if batch.Insert != nil {
		created, err = insertPatient(ctx, tx, *batch.Insert)
		if err != nil {
			return models.Patient{}, err
		}
	}

	for patientID, position := range batch.Positions {
		ct, execErr := tx.Exec(ctx, `
			UPDATE queue_entries
			SET position = $1
			WHERE patient_id = $2 AND doctor_id = $3
		`, position, patientID, doctorID)
		if execErr != nil {
			err = execErr
			return models.Patient{}, err
		}
		if ct.RowsAffected() == 0 {
			err = store.ErrPatientNotFound
			return models.Patient{}, err
		}
	}

	for _, patientID := range batch.SetSkipped {
		if _, err = tx.Exec(ctx, `
			UPDATE queue_entries
			SET skipped = TRUE
			WHERE patient_id = $1 AND doctor_id = $2
		`, patientID, doctorID); err != nil {
			return models.Patient{}, err
		}
	}

	if batch.Archive != nil {
		if err = archivePatient(ctx, tx, doctorID, *batch.Archive); err != nil {
			return models.Patient{}, err
		}
	}

	if _, err = tx.Exec(ctx, `
		UPDATE queue_versions
		SET version = version + 1
		WHERE doctor_id = $1
	`, doctorID); err != nil {
		return models.Patient{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Patient{}, err
	}
	return created, nil
}

func lockVersion(ctx context.Context, tx pgx.Tx, doctorID string) (int64, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_versions (doctor_id, version)
		VALUES ($1, 0)
		ON CONFLICT (doctor_id) DO NOTHING
	`, doctorID)
	if err != nil {
		return 0, err
	}

	var version int64
	row := tx.QueryRow(ctx, `
		SELECT version
		FROM queue_versions
		WHERE doctor_id = $1
		FOR UPDATE
	`, doctorID)
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func insertPatient(ctx context.Context, tx pgx.Tx, input store.InsertInput) (models.Patient, error) {
	seq, err := nextCodeNumber(ctx, tx, input.DoctorID, input.DateAdded)
	if err != nil {
		return models.Patient{}, err
	}
	code := fmt.Sprintf("%s-%0*d", input.CodePrefix, codePad, seq)

	patient := models.Patient{
		PatientID: uuid.NewString(),
		DoctorID:  input.DoctorID,
		Name:      input.Name,
		Phone:     input.Phone,
		Code:      code,
		Position:  input.Position,
		Status:    models.StatusWaiting,
		JoinedAt:  input.JoinedAt,
		DateAdded: input.DateAdded,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_entries (patient_id, doctor_id, name, phone, code, position, skipped, joined_at, date_added)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
	`, patient.PatientID, patient.DoctorID, patient.Name, patient.Phone, patient.Code, patient.Position, patient.JoinedAt, patient.DateAdded)
	if err != nil {
		return models.Patient{}, err
	}
	return patient, nil
}

// archivePatient copies the entry into the terminal archive and only then
// removes it from the active queue. Completions and the daily reset both go
// through this insert-before-delete ordering.
func archivePatient(ctx context.Context, tx pgx.Tx, doctorID string, input store.ArchiveInput) error {
	// date_served must be the calendar day as the caller's clock saw it;
	// converting to UTC first could shift it across midnight.
	tag, err := tx.Exec(ctx, `
		INSERT INTO queue_archive (patient_id, doctor_id, name, phone, code, status, joined_at, served_at, date_added, date_served)
		SELECT patient_id, doctor_id, name, phone, code, $1, joined_at, $2, date_added, $3
		FROM queue_entries
		WHERE patient_id = $4 AND doctor_id = $5
	`, input.Status, input.ServedAt, input.ServedAt.Format(models.DateFormat), input.PatientID, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPatientNotFound
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM queue_entries
		WHERE patient_id = $1 AND doctor_id = $2
	`, input.PatientID, doctorID)
	return err
}

func nextCodeNumber(ctx context.Context, tx pgx.Tx, doctorID, date string) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO code_sequences (doctor_id, date_added, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (doctor_id, date_added)
		DO UPDATE SET next_number = code_sequences.next_number + 1
		RETURNING next_number
	`, doctorID, date)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}
