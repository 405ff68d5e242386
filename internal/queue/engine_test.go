package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"
)

type memStore struct {
	mu        sync.Mutex
	version   int64
	waiting   []models.Patient
	archived  []models.Patient
	nextID    int
	nextSeq   int
	conflicts int
}

func (m *memStore) Snapshot(ctx context.Context, doctorID string) (store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := make([]models.Patient, len(m.waiting))
	copy(sorted, m.waiting)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return store.Snapshot{Version: m.version, Waiting: sorted}, nil
}

func (m *memStore) ApplyBatch(ctx context.Context, doctorID string, version int64, batch store.Batch) (models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		m.version++
		return models.Patient{}, store.ErrVersionConflict
	}
	if version != m.version {
		return models.Patient{}, store.ErrVersionConflict
	}

	var created models.Patient
	if batch.Insert != nil {
		m.nextID++
		m.nextSeq++
		created = models.Patient{
			PatientID: fmt.Sprintf("p%d", m.nextID),
			DoctorID:  batch.Insert.DoctorID,
			Name:      batch.Insert.Name,
			Phone:     batch.Insert.Phone,
			Code:      fmt.Sprintf("%s-%03d", batch.Insert.CodePrefix, m.nextSeq),
			Position:  batch.Insert.Position,
			Status:    models.StatusWaiting,
			JoinedAt:  batch.Insert.JoinedAt,
			DateAdded: batch.Insert.DateAdded,
		}
		m.waiting = append(m.waiting, created)
	}
	for id, pos := range batch.Positions {
		for i := range m.waiting {
			if m.waiting[i].PatientID == id {
				m.waiting[i].Position = pos
			}
		}
	}
	for _, id := range batch.SetSkipped {
		for i := range m.waiting {
			if m.waiting[i].PatientID == id {
				m.waiting[i].Skipped = true
			}
		}
	}
	if batch.Archive != nil {
		kept := m.waiting[:0]
		for _, p := range m.waiting {
			if p.PatientID == batch.Archive.PatientID {
				servedAt := batch.Archive.ServedAt
				p.Status = batch.Archive.Status
				p.ServedAt = &servedAt
				m.archived = append(m.archived, p)
				continue
			}
			kept = append(kept, p)
		}
		m.waiting = kept
	}
	m.version++
	return created, nil
}

func testDoctor() models.Doctor {
	return models.Doctor{DoctorID: "d1", Name: "Dr. Anna Smith", AcceptingQueues: true}
}

func mustJoin(t *testing.T, e *Engine, name string) models.Patient {
	t.Helper()
	p, err := e.Join(context.Background(), testDoctor(), name, "5550001111")
	if err != nil {
		t.Fatalf("Join(%q): %v", name, err)
	}
	return p
}

func waitingOrder(t *testing.T, e *Engine) []models.Patient {
	t.Helper()
	entries, err := e.Queue(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	return entries
}

func assertContiguous(t *testing.T, entries []models.Patient) {
	t.Helper()
	for i, p := range entries {
		if p.Position != i+1 {
			t.Fatalf("position invariant violated at index %d: got %d, entries %+v", i, p.Position, entries)
		}
	}
}

func TestJoinAssignsPositionsAndCodes(t *testing.T) {
	ms := &memStore{}
	e := New(ms)

	alice := mustJoin(t, e, "Alice")
	bob := mustJoin(t, e, "Bob")
	carol := mustJoin(t, e, "Carol")

	if alice.Position != 1 || bob.Position != 2 || carol.Position != 3 {
		t.Fatalf("positions = %d,%d,%d, want 1,2,3", alice.Position, bob.Position, carol.Position)
	}
	codes := map[string]bool{alice.Code: true, bob.Code: true, carol.Code: true}
	if len(codes) != 3 {
		t.Fatalf("codes not unique: %q %q %q", alice.Code, bob.Code, carol.Code)
	}
	if alice.Code != "DAS-001" {
		t.Fatalf("code = %q, want DAS-001", alice.Code)
	}
	if alice.DateAdded == "" || alice.JoinedAt.IsZero() {
		t.Fatalf("join metadata missing: %+v", alice)
	}
	assertContiguous(t, waitingOrder(t, e))
}

func TestJoinRetriesOnConflict(t *testing.T) {
	ms := &memStore{}
	e := New(ms)
	mustJoin(t, e, "Alice")

	ms.conflicts = 1
	bob := mustJoin(t, e, "Bob")
	if bob.Position != 2 {
		t.Fatalf("position after retry = %d, want 2", bob.Position)
	}

	ms.conflicts = defaultRetries
	if _, err := e.Join(context.Background(), testDoctor(), "Carol", ""); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("err = %v, want ErrConcurrentModification", err)
	}
}

func TestReorder(t *testing.T) {
	ms := &memStore{}
	e := New(ms)
	alice := mustJoin(t, e, "Alice")
	bob := mustJoin(t, e, "Bob")
	carol := mustJoin(t, e, "Carol")

	order := []string{carol.PatientID, alice.PatientID, bob.PatientID}
	if err := e.Reorder(context.Background(), "d1", order); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	entries := waitingOrder(t, e)
	assertContiguous(t, entries)
	if entries[0].PatientID != carol.PatientID || entries[2].PatientID != bob.PatientID {
		t.Fatalf("order = %s,%s,%s", entries[0].Name, entries[1].Name, entries[2].Name)
	}

	// Applying the same permutation again leaves the ranking unchanged.
	if err := e.Reorder(context.Background(), "d1", order); err != nil {
		t.Fatalf("Reorder repeat: %v", err)
	}
	again := waitingOrder(t, e)
	for i := range entries {
		if again[i].PatientID != entries[i].PatientID || again[i].Position != entries[i].Position {
			t.Fatalf("repeat reorder changed ranking: %+v vs %+v", again, entries)
		}
	}

	cases := [][]string{
		{alice.PatientID, bob.PatientID},
		{alice.PatientID, bob.PatientID, "missing"},
		{alice.PatientID, alice.PatientID, bob.PatientID},
	}
	for _, ids := range cases {
		if err := e.Reorder(context.Background(), "d1", ids); !errors.Is(err, ErrPermutationMismatch) {
			t.Fatalf("Reorder(%v) err = %v, want ErrPermutationMismatch", ids, err)
		}
	}
}

func TestMoveAdjacent(t *testing.T) {
	ms := &memStore{}
	e := New(ms)
	alice := mustJoin(t, e, "Alice")
	bob := mustJoin(t, e, "Bob")
	mustJoin(t, e, "Carol")

	if err := e.MoveAdjacent(context.Background(), "d1", bob.PatientID, DirectionUp); err != nil {
		t.Fatalf("MoveAdjacent up: %v", err)
	}
	entries := waitingOrder(t, e)
	assertContiguous(t, entries)
	if entries[0].PatientID != bob.PatientID || entries[1].PatientID != alice.PatientID {
		t.Fatalf("after move up: %s,%s,%s", entries[0].Name, entries[1].Name, entries[2].Name)
	}

	// Up then down restores the original ranking.
	if err := e.MoveAdjacent(context.Background(), "d1", bob.PatientID, DirectionDown); err != nil {
		t.Fatalf("MoveAdjacent down: %v", err)
	}
	entries = waitingOrder(t, e)
	if entries[0].PatientID != alice.PatientID || entries[1].PatientID != bob.PatientID {
		t.Fatalf("up/down did not restore order: %s,%s", entries[0].Name, entries[1].Name)
	}

	// Boundary moves are no-ops and do not write.
	before := ms.version
	if err := e.MoveAdjacent(context.Background(), "d1", alice.PatientID, DirectionUp); err != nil {
		t.Fatalf("boundary up: %v", err)
	}
	if ms.version != before {
		t.Fatalf("boundary move wrote a batch")
	}

	if err := e.MoveAdjacent(context.Background(), "d1", "missing", DirectionUp); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("err = %v, want ErrNotWaiting", err)
	}
	if err := e.MoveAdjacent(context.Background(), "d1", alice.PatientID, "sideways"); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("err = %v, want ErrInvalidTarget", err)
	}
}

func TestSkipToPosition(t *testing.T) {
	ms := &memStore{}
	e := New(ms)
	alice := mustJoin(t, e, "Alice")
	bob := mustJoin(t, e, "Bob")
	carol := mustJoin(t, e, "Carol")
	dave := mustJoin(t, e, "Dave")

	if err := e.SkipToPosition(context.Background(), "d1", alice.PatientID, 3); err != nil {
		t.Fatalf("SkipToPosition: %v", err)
	}
	entries := waitingOrder(t, e)
	assertContiguous(t, entries)
	want := []string{bob.PatientID, carol.PatientID, alice.PatientID, dave.PatientID}
	for i, id := range want {
		if entries[i].PatientID != id {
			t.Fatalf("after skip: %s,%s,%s,%s", entries[0].Name, entries[1].Name, entries[2].Name, entries[3].Name)
		}
	}

	if err := e.SkipToPosition(context.Background(), "d1", alice.PatientID, 4); !errors.Is(err, ErrAlreadySkipped) {
		t.Fatalf("second skip err = %v, want ErrAlreadySkipped", err)
	}
	if err := e.SkipToPosition(context.Background(), "d1", bob.PatientID, 1); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("backward skip err = %v, want ErrInvalidTarget", err)
	}
	if err := e.SkipToPosition(context.Background(), "d1", bob.PatientID, 5); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("out-of-range skip err = %v, want ErrInvalidTarget", err)
	}
	if err := e.SkipToPosition(context.Background(), "d1", "missing", 2); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("err = %v, want ErrNotWaiting", err)
	}
}

func TestCompleteRenumbersRemaining(t *testing.T) {
	ms := &memStore{}
	e := New(ms)
	alice := mustJoin(t, e, "Alice")
	bob := mustJoin(t, e, "Bob")
	carol := mustJoin(t, e, "Carol")

	if err := e.MoveAdjacent(context.Background(), "d1", bob.PatientID, DirectionUp); err != nil {
		t.Fatalf("MoveAdjacent: %v", err)
	}
	if err := e.Complete(context.Background(), "d1", bob.PatientID, models.StatusServed); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	entries := waitingOrder(t, e)
	assertContiguous(t, entries)
	if len(entries) != 2 || entries[0].PatientID != alice.PatientID || entries[1].PatientID != carol.PatientID {
		t.Fatalf("remaining = %+v, want Alice(1), Carol(2)", entries)
	}

	if len(ms.archived) != 1 {
		t.Fatalf("archived = %d, want 1", len(ms.archived))
	}
	rec := ms.archived[0]
	if rec.Status != models.StatusServed || rec.ServedAt == nil || rec.ServedAt.Before(rec.JoinedAt) {
		t.Fatalf("archive record = %+v", rec)
	}

	if err := e.Complete(context.Background(), "d1", bob.PatientID, models.StatusServed); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("repeat complete err = %v, want ErrNotWaiting", err)
	}
	if err := e.Complete(context.Background(), "d1", alice.PatientID, "done"); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("err = %v, want ErrInvalidOutcome", err)
	}
}

func TestRandomOperationsPreserveInvariant(t *testing.T) {
	ms := &memStore{}
	e := New(ms)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		entries := waitingOrder(t, e)
		switch op := rng.Intn(5); {
		case op == 0 || len(entries) == 0:
			mustJoin(t, e, fmt.Sprintf("patient-%d", i))
		case op == 1:
			ids := make([]string, len(entries))
			for j, p := range entries {
				ids[j] = p.PatientID
			}
			rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })
			if err := e.Reorder(ctx, "d1", ids); err != nil {
				t.Fatalf("op %d Reorder: %v", i, err)
			}
		case op == 2:
			target := entries[rng.Intn(len(entries))]
			dir := DirectionUp
			if rng.Intn(2) == 0 {
				dir = DirectionDown
			}
			if err := e.MoveAdjacent(ctx, "d1", target.PatientID, dir); err != nil {
				t.Fatalf("op %d MoveAdjacent: %v", i, err)
			}
		case op == 3:
			target := entries[rng.Intn(len(entries))]
			newPos := target.Position + 1 + rng.Intn(len(entries))
			err := e.SkipToPosition(ctx, "d1", target.PatientID, newPos)
			if err != nil && !errors.Is(err, ErrInvalidTarget) && !errors.Is(err, ErrAlreadySkipped) {
				t.Fatalf("op %d SkipToPosition: %v", i, err)
			}
		default:
			target := entries[rng.Intn(len(entries))]
			outcomes := []string{models.StatusServed, models.StatusSkipped, models.StatusCanceled}
			if err := e.Complete(ctx, "d1", target.PatientID, outcomes[rng.Intn(3)]); err != nil {
				t.Fatalf("op %d Complete: %v", i, err)
			}
		}
		assertContiguous(t, waitingOrder(t, e))
	}
}

func TestCodePrefix(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Dr. Anna Smith", "DAS"},
		{"Anna Smith", "AS"},
		{"Cher", "CHE"},
		{"Lu", "LU"},
		{"", "DOC"},
		{"   ", "DOC"},
	}
	for _, tt := range cases {
		if got := CodePrefix(tt.name); got != tt.want {
			t.Fatalf("CodePrefix(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestConcurrentJoinsGetDistinctPositions(t *testing.T) {
	ms := &memStore{}
	e := New(ms)

	const joiners = 8
	var wg sync.WaitGroup
	results := make(chan models.Patient, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for {
				p, err := e.Join(context.Background(), testDoctor(), fmt.Sprintf("patient-%d", n), "")
				if err == nil {
					results <- p
					return
				}
				if !errors.Is(err, ErrConcurrentModification) {
					t.Errorf("Join: %v", err)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	close(results)

	positions := map[int]bool{}
	codes := map[string]bool{}
	for p := range results {
		if positions[p.Position] {
			t.Fatalf("duplicate position %d", p.Position)
		}
		if codes[p.Code] {
			t.Fatalf("duplicate code %q", p.Code)
		}
		positions[p.Position] = true
		codes[p.Code] = true
	}
	assertContiguous(t, waitingOrder(t, e))
}
