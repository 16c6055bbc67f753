package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSQLiteRecorder_RecordsRunsAndPurchases(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if err := r.RecordRun(&RunEvent{
		RunID: "r1", Account: "main", Drift: "new", Eligible: true, Burst: 2,
		Succeeded: 1, Failed: 1, NextEligible: time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	for i, ok := range []bool{true, false} {
		if err := r.RecordPurchase(&PurchaseEvent{
			RunID: "r1", Account: "main", Amount: 5.5, Succeeded: ok, Completed: 1 - i,
		}); err != nil {
			t.Fatalf("record purchase: %v", err)
		}
	}

	n, err := r.CountPurchases("main")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 purchases, got %d", n)
	}
	if n, _ := r.CountPurchases("other"); n != 0 {
		t.Errorf("expected 0 purchases for other, got %d", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordRun(&RunEvent{}); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordPurchase(&PurchaseEvent{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}
