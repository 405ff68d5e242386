package postgres

import (
	"strings"
	"testing"
)

func TestListDailyQueryOmitsEmptyBounds(t *testing.T) {
	query, args := listDailyQuery("", "", "")
	if len(args) != 0 {
		t.Fatalf("args = %v, want none", args)
	}
	if strings.Contains(query, "date >=") || strings.Contains(query, "date <=") {
		t.Fatalf("unbounded listing still filters by date:\n%s", query)
	}
	if strings.Contains(query, "doctor_id =") {
		t.Fatalf("unbounded listing still filters by doctor:\n%s", query)
	}
}

func TestListDailyQueryBindsGivenBounds(t *testing.T) {
	query, args := listDailyQuery("d1", "2026-03-01", "2026-03-31")
	want := []interface{}{"2026-03-01", "2026-03-31", "d1"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %v, want %v", i, args[i], want[i])
		}
	}
	for _, predicate := range []string{"date >= $1", "date <= $2", "doctor_id = $3"} {
		if !strings.Contains(query, predicate) {
			t.Fatalf("query missing %q:\n%s", predicate, query)
		}
	}
}

func TestListDailyQueryFromOnly(t *testing.T) {
	query, args := listDailyQuery("", "2026-03-01", "")
	if len(args) != 1 || args[0] != "2026-03-01" {
		t.Fatalf("args = %v, want just the lower bound", args)
	}
	if !strings.Contains(query, "date >= $1") || strings.Contains(query, "date <=") {
		t.Fatalf("unexpected predicates:\n%s", query)
	}
}
