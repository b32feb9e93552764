package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/exploopio/ropstat/pkg/aggregate"
	"github.com/exploopio/ropstat/pkg/gadget"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func report(mode aggregate.Mode, binary string, at time.Time, total int) *aggregate.Report {
	return &aggregate.Report{
		Title:     "t",
		Mode:      mode,
		Binary:    binary,
		CreatedAt: at,
		Rows: []aggregate.Row{
			{Label: aggregate.RowUnobfuscated, Counts: gadget.Counts{Total: total, Memory: total}},
			{Label: aggregate.RowObfuscated, Counts: gadget.Counts{Total: total * 2, Other: total * 2}},
		},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := report(aggregate.ModeBinary, "ls", at, 5)
	id, err := s.SaveReport(ctx, in)
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a UUID: %v", id, err)
	}

	got, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	want := &Run{ID: id, Mode: aggregate.ModeBinary, Binary: "ls", Title: "t", CreatedAt: at, Rows: in.Rows}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetRun() mismatch (-want +got):\n%s", diff)
	}

	missing, err := s.GetRun(ctx, uuid.New().String())
	if err != nil || missing != nil {
		t.Errorf("GetRun(unknown) = %v, %v, want nil, nil", missing, err)
	}
}

func TestStore_ListRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i, r := range []*aggregate.Report{
		report(aggregate.ModeBatch, "", base, 100),
		report(aggregate.ModeBinary, "ls", base.Add(time.Minute), 5),
		report(aggregate.ModeBinary, "cat", base.Add(2*time.Minute), 3),
		report(aggregate.ModeBinary, "ls", base.Add(3*time.Minute), 6),
	} {
		id, err := s.SaveReport(ctx, r)
		if err != nil {
			t.Fatalf("SaveReport(%d) error = %v", i, err)
		}
		ids = append(ids, id)
	}

	all, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var gotIDs []string
	for _, r := range all {
		gotIDs = append(gotIDs, r.ID)
	}
	if diff := cmp.Diff([]string{ids[3], ids[2], ids[1], ids[0]}, gotIDs); diff != "" {
		t.Errorf("ListRuns() order mismatch (-want +got):\n%s", diff)
	}

	ls, err := s.ListRuns(ctx, "ls", 0)
	if err != nil {
		t.Fatalf("ListRuns(ls) error = %v", err)
	}
	if len(ls) != 2 || ls[0].ID != ids[3] || ls[1].ID != ids[1] {
		t.Fatalf("ListRuns(ls) = %+v", ls)
	}
	if got := ls[0].Rows[1].Counts.Total; got != 12 {
		t.Errorf("obfuscated total = %d, want 12", got)
	}
	if ls[0].Rows[0].Label != aggregate.RowUnobfuscated {
		t.Errorf("row order not preserved: %+v", ls[0].Rows)
	}

	latest, err := s.ListRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListRuns(limit 2) error = %v", err)
	}
	if len(latest) != 2 || latest[0].ID != ids[3] || latest[1].ID != ids[2] {
		t.Fatalf("ListRuns(limit 2) = %+v, want the two newest runs", latest)
	}
	if len(latest[1].Rows) != 2 {
		t.Errorf("limited run rows = %+v", latest[1].Rows)
	}

	lastLS, err := s.ListRuns(ctx, "ls", 1)
	if err != nil || len(lastLS) != 1 || lastLS[0].ID != ids[3] {
		t.Errorf("ListRuns(ls, 1) = %+v, %v, want newest ls run", lastLS, err)
	}

	none, err := s.ListRuns(ctx, "sort", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("ListRuns(sort) = %v, %v, want empty", none, err)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.SaveReport(ctx, report(aggregate.ModeBatch, "", time.Time{}, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	run, err := s.GetRun(ctx, id)
	if err != nil || run == nil {
		t.Fatalf("GetRun() after reopen = %v, %v", run, err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt should default to the save time")
	}
}
