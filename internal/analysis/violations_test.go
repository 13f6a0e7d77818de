package analysis

import "testing"

func TestViolationTrackerAccumulates(t *testing.T) {
	tr := NewViolationTracker(5)

	if got := tr.Record(2); got != 2 {
		t.Fatalf("total after first batch = %d, want 2", got)
	}
	if tr.ShouldTerminate() {
		t.Fatal("terminated below threshold")
	}

	if got := tr.Record(3); got != 5 {
		t.Fatalf("total after second batch = %d, want 5", got)
	}
	if !tr.ShouldTerminate() {
		t.Fatal("not terminated at threshold")
	}
}

func TestViolationTrackerIgnoresNonPositive(t *testing.T) {
	tr := NewViolationTracker(5)
	tr.Record(3)

	if got := tr.Record(0); got != 3 {
		t.Fatalf("total = %d, want 3", got)
	}
	if got := tr.Record(-2); got != 3 {
		t.Fatalf("total = %d after negative batch, want 3", got)
	}
}

func TestViolationRegistrySeedAndReset(t *testing.T) {
	r := NewViolationRegistry()

	// Seed backfills a persisted total after restart.
	tr := r.Get("iv-1", 4)
	if tr.Total() != 4 {
		t.Fatalf("seeded total = %d, want 4", tr.Total())
	}

	// Repeated Get returns the same tracker; the seed is ignored.
	if again := r.Get("iv-1", 99); again != tr || again.Total() != 4 {
		t.Fatal("Get did not return the existing tracker")
	}

	r.Reset("iv-1")
	if r.Get("iv-1", 0).Total() != 0 {
		t.Fatal("reset did not install a zeroed tracker")
	}
}

func TestViolationRegistryDrop(t *testing.T) {
	r := NewViolationRegistry()
	r.Get("iv-1", 0).Record(3)

	r.Drop("iv-1")

	if r.Get("iv-1", 0).Total() != 0 {
		t.Fatal("tracker survived drop")
	}
}
