package traffic

import (
	"testing"
	"time"
)

// TestRequestCount_Empty verifies a fresh tracker reports no requests.
func TestRequestCount_Empty(t *testing.T) {
	Reset()
	if n := RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

// TestRecordDenied_AndCounts verifies denials count toward load but not
// toward the degraded rate.
func TestRecordDenied_AndCounts(t *testing.T) {
	Reset()
	Record(OutcomeSuccess)
	RecordDenied()
	RecordDenied()

	if n := DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if n := RequestCount(time.Minute); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
	deg, total := DegradedRate(time.Minute)
	if deg != 0 || total != 1 {
		t.Errorf("DegradedRate() = (%d, %d), want (0, 1)", deg, total)
	}
}

// TestDegradedRate verifies degraded answers and errors share the numerator.
func TestDegradedRate(t *testing.T) {
	var tr Tracker
	tr.RecordN(OutcomeSuccess, 7)
	tr.RecordN(OutcomeDegraded, 2)
	tr.Record(OutcomeError)

	deg, total := tr.DegradedRate(time.Minute)
	if deg != 3 || total != 10 {
		t.Errorf("DegradedRate() = (%d, %d), want (3, 10)", deg, total)
	}
}

// TestWindowAndPrune verifies entries leave the window and are pruned after retention.
func TestWindowAndPrune(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tr := Tracker{now: func() time.Time { return now }}

	tr.Record(OutcomeSuccess)
	now = now.Add(2 * time.Minute)
	tr.Record(OutcomeSuccess)

	if n := tr.RequestCount(time.Minute); n != 1 {
		t.Errorf("RequestCount(1m) = %d, want 1", n)
	}
	if n := tr.RequestCount(10 * time.Minute); n != 2 {
		t.Errorf("RequestCount(10m) = %d, want 2", n)
	}

	now = now.Add(4 * time.Minute)
	tr.Record(OutcomeDenied)
	if n := tr.RequestCount(time.Hour); n != 2 {
		t.Errorf("RequestCount(1h) after prune = %d, want 2", n)
	}
}

// TestRecord_InvalidOutcome verifies out-of-range outcomes are ignored.
func TestRecord_InvalidOutcome(t *testing.T) {
	var tr Tracker
	tr.Record(Outcome(42))
	if n := tr.RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
	if n := tr.Count(Outcome(-1), time.Minute); n != 0 {
		t.Errorf("Count(-1) = %d, want 0", n)
	}
}
