package store

import (
	"context"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"
)

// Snapshot is the Waiting queue for one doctor plus the version the entries
// were read at. Batches are applied conditionally on that version.
type Snapshot struct {
	Version int64
	Waiting []models.Patient
}

type InsertInput struct {
	DoctorID   string
	Name       string
	Phone      string
	CodePrefix string
	Position   int
	JoinedAt   time.Time
	DateAdded  string
}

type ArchiveInput struct {
	PatientID string
	Status    string
	ServedAt  time.Time
}

// Batch is a set of mutations applied atomically against one doctor's queue.
// Either every part lands or none does.
type Batch struct {
	Insert     *InsertInput
	Positions  map[string]int
	SetSkipped []string
	Archive    *ArchiveInput
}

func (b Batch) Empty() bool {
	return b.Insert == nil && len(b.Positions) == 0 && len(b.SetSkipped) == 0 && b.Archive == nil
}

type QueueStore interface {
	Snapshot(ctx context.Context, doctorID string) (Snapshot, error)
	// ApplyBatch applies the batch if the doctor's queue version still equals
	// version, bumping it on success. Returns the inserted patient when the
	// batch carries an insert, and ErrVersionConflict when a concurrent
	// writer got there first.
	ApplyBatch(ctx context.Context, doctorID string, version int64, batch Batch) (models.Patient, error)
}

type DoctorStore interface {
	GetDoctor(ctx context.Context, doctorID string) (models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
	CreateDoctor(ctx context.Context, name, specialty string) (models.Doctor, error)
	DeleteDoctor(ctx context.Context, doctorID string) error
	SetAccepting(ctx context.Context, doctorID string, accepting bool) error
}

type ArchiveStore interface {
	ListArchived(ctx context.Context, doctorID, date string) ([]models.Patient, error)
	ArchivedDoctorIDs(ctx context.Context, date string) ([]string, error)
}

type AnalyticsStore interface {
	UpsertDaily(ctx context.Context, record models.DailyAnalytics) error
	ListDaily(ctx context.Context, doctorID, from, to string) ([]models.DailyAnalytics, error)
}

// ResetStore is the archival pipeline's write side: archive every Waiting
// entry as canceled, clear the active queue, and disable all doctors, in a
// single transaction.
type ResetStore interface {
	ArchiveAndClear(ctx context.Context, resetAt time.Time) (int, error)
}
