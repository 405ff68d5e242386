package queue

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"
)

const defaultRetries = 3

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Engine enforces the queue ordering invariant: for each doctor, Waiting
// positions are exactly {1..N}. Every mutation reads a versioned snapshot,
// computes a new permutation, and writes it as one atomic batch; losing
// writers recompute against the refreshed snapshot and retry.
type Engine struct {
	store   store.QueueStore
	retries int
	now     func() time.Time
}

func New(qs store.QueueStore) *Engine {
	return &Engine{
		store:   qs,
		retries: defaultRetries,
		now:     time.Now,
	}
}

// Queue returns the current Waiting entries for a doctor, ordered by position.
func (e *Engine) Queue(ctx context.Context, doctorID string) ([]models.Patient, error) {
	snap, err := e.store.Snapshot(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return snap.Waiting, nil
}

// Join appends a patient at position N+1 with a code derived from the
// doctor's daily sequence. The caller is expected to have checked the
// doctor's accepting flag.
func (e *Engine) Join(ctx context.Context, doctor models.Doctor, name, phone string) (models.Patient, error) {
	joinedAt := e.now()
	return e.mutate(ctx, doctor.DoctorID, func(snap store.Snapshot) (store.Batch, error) {
		return store.Batch{
			Insert: &store.InsertInput{
				DoctorID:   doctor.DoctorID,
				Name:       name,
				Phone:      phone,
				CodePrefix: CodePrefix(doctor.Name),
				Position:   len(snap.Waiting) + 1,
				JoinedAt:   joinedAt,
				DateAdded:  joinedAt.Format(models.DateFormat),
			},
		}, nil
	})
}

// Reorder applies a full permutation of the doctor's Waiting entries.
// orderedIDs must equal the Waiting id set exactly.
func (e *Engine) Reorder(ctx context.Context, doctorID string, orderedIDs []string) error {
	_, err := e.mutate(ctx, doctorID, func(snap store.Snapshot) (store.Batch, error) {
		if len(orderedIDs) != len(snap.Waiting) {
			return store.Batch{}, ErrPermutationMismatch
		}
		waiting := make(map[string]struct{}, len(snap.Waiting))
		for _, p := range snap.Waiting {
			waiting[p.PatientID] = struct{}{}
		}
		positions := make(map[string]int, len(orderedIDs))
		for i, id := range orderedIDs {
			if _, ok := waiting[id]; !ok {
				return store.Batch{}, ErrPermutationMismatch
			}
			if _, dup := positions[id]; dup {
				return store.Batch{}, ErrPermutationMismatch
			}
			positions[id] = i + 1
		}
		return store.Batch{Positions: positions}, nil
	})
	return err
}

// MoveAdjacent swaps a Waiting entry with its neighbor. A move past the
// boundary is a no-op.
func (e *Engine) MoveAdjacent(ctx context.Context, doctorID, patientID, direction string) error {
	if direction != DirectionUp && direction != DirectionDown {
		return ErrInvalidTarget
	}
	_, err := e.mutate(ctx, doctorID, func(snap store.Snapshot) (store.Batch, error) {
		idx, ok := waitingIndex(snap.Waiting, patientID)
		if !ok {
			return store.Batch{}, ErrNotWaiting
		}
		other := idx - 1
		if direction == DirectionDown {
			other = idx + 1
		}
		if other < 0 || other >= len(snap.Waiting) {
			return store.Batch{}, nil
		}
		return store.Batch{Positions: map[string]int{
			patientID:                     snap.Waiting[other].Position,
			snap.Waiting[other].PatientID: snap.Waiting[idx].Position,
		}}, nil
	})
	return err
}

// SkipToPosition moves one entry later in line, shifting the entries it
// passes forward by one. Each entry can be skipped this way only once.
func (e *Engine) SkipToPosition(ctx context.Context, doctorID, patientID string, newPosition int) error {
	_, err := e.mutate(ctx, doctorID, func(snap store.Snapshot) (store.Batch, error) {
		idx, ok := waitingIndex(snap.Waiting, patientID)
		if !ok {
			return store.Batch{}, ErrNotWaiting
		}
		entry := snap.Waiting[idx]
		if entry.Skipped {
			return store.Batch{}, ErrAlreadySkipped
		}
		current := idx + 1
		if newPosition <= current || newPosition > len(snap.Waiting) {
			return store.Batch{}, ErrInvalidTarget
		}
		positions := map[string]int{patientID: newPosition}
		for i := idx + 1; i < newPosition; i++ {
			positions[snap.Waiting[i].PatientID] = i
		}
		return store.Batch{
			Positions:  positions,
			SetSkipped: []string{patientID},
		}, nil
	})
	return err
}

// Complete moves a Waiting entry to a terminal status, stamps servedAt, and
// renumbers the remaining Waiting entries back to a contiguous 1..N in the
// same batch.
func (e *Engine) Complete(ctx context.Context, doctorID, patientID, outcome string) error {
	if !models.TerminalStatus(outcome) {
		return ErrInvalidOutcome
	}
	servedAt := e.now()
	_, err := e.mutate(ctx, doctorID, func(snap store.Snapshot) (store.Batch, error) {
		idx, ok := waitingIndex(snap.Waiting, patientID)
		if !ok {
			return store.Batch{}, ErrNotWaiting
		}
		positions := make(map[string]int, len(snap.Waiting)-idx-1)
		for i := idx + 1; i < len(snap.Waiting); i++ {
			positions[snap.Waiting[i].PatientID] = i
		}
		return store.Batch{
			Positions: positions,
			Archive: &store.ArchiveInput{
				PatientID: patientID,
				Status:    outcome,
				ServedAt:  servedAt,
			},
		}, nil
	})
	return err
}

func (e *Engine) mutate(ctx context.Context, doctorID string, build func(store.Snapshot) (store.Batch, error)) (models.Patient, error) {
	for attempt := 0; attempt < e.retries; attempt++ {
		snap, err := e.store.Snapshot(ctx, doctorID)
		if err != nil {
			return models.Patient{}, err
		}
		batch, err := build(snap)
		if err != nil {
			return models.Patient{}, err
		}
		if batch.Empty() {
			return models.Patient{}, nil
		}
		created, err := e.store.ApplyBatch(ctx, doctorID, snap.Version, batch)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return models.Patient{}, err
		}
	}
	return models.Patient{}, ErrConcurrentModification
}

func waitingIndex(waiting []models.Patient, patientID string) (int, bool) {
	for i, p := range waiting {
		if p.PatientID == patientID {
			return i, true
		}
	}
	return 0, false
}

// CodePrefix derives the ticket code prefix from a doctor's display name:
// the initials of up to three words, padded from the name's letters when a
// single short word is all there is.
func CodePrefix(doctorName string) string {
	var initials []rune
	var letters []rune
	for _, word := range strings.Fields(doctorName) {
		first := true
		for _, r := range word {
			if !unicode.IsLetter(r) {
				continue
			}
			upper := unicode.ToUpper(r)
			letters = append(letters, upper)
			if first && len(initials) < 3 {
				initials = append(initials, upper)
			}
			first = false
		}
	}
	if len(initials) >= 2 {
		return string(initials)
	}
	if len(letters) >= 3 {
		return string(letters[:3])
	}
	if len(letters) > 0 {
		return string(letters)
	}
	return "DOC"
}
