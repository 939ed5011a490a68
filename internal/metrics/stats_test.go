package metrics

import (
	"math"
	"testing"
	"time"
)

func TestRunningStatsCountInvariant(t *testing.T) {
	var r RunningStats
	sizes := []int{32, 32, 7}
	for _, n := range sizes {
		r.Record(1.0, n/2, n)
	}
	want := 0
	for _, n := range sizes {
		want += n
	}
	if r.Count() != want {
		t.Fatalf("count %d, want sum of batch sizes %d", r.Count(), want)
	}
}

func TestRunningStatsSummary(t *testing.T) {
	var r RunningStats
	r.Record(1.0, 3, 4)
	r.Record(0.5, 1, 2)
	sum := r.Summary()
	wantLoss := (1.0*4 + 0.5*2) / 6
	if math.Abs(sum.Loss-wantLoss) > 1e-12 {
		t.Fatalf("mean loss %f, want %f", sum.Loss, wantLoss)
	}
	wantAcc := 4.0 / 6.0
	if math.Abs(sum.Accuracy-wantAcc) > 1e-12 {
		t.Fatalf("accuracy %f, want %f", sum.Accuracy, wantAcc)
	}
	if sum.Accuracy < 0 || sum.Accuracy > 1 {
		t.Fatalf("accuracy out of range: %f", sum.Accuracy)
	}
}

func TestRunningStatsEmpty(t *testing.T) {
	var r RunningStats
	sum := r.Summary()
	if sum.Loss != 0 || sum.Accuracy != 0 {
		t.Fatalf("empty stats should reduce to zeros, got %+v", sum)
	}
}

func TestHistoryBestValidationAccuracy(t *testing.T) {
	h := &History{}
	for _, acc := range []float64{0.5, 0.72, 0.61} {
		h.Append(Summary{Loss: 1, Accuracy: 0.4}, Summary{Loss: 1, Accuracy: acc})
	}
	if h.Epochs() != 3 {
		t.Fatalf("expected 3 epochs, got %d", h.Epochs())
	}
	if best := h.BestValidationAccuracy(); best != 0.72 {
		t.Fatalf("best validation accuracy %f, want 0.72", best)
	}
}

func TestHistoryEmptyBest(t *testing.T) {
	h := &History{}
	if best := h.BestValidationAccuracy(); best != 0 {
		t.Fatalf("empty history best should be 0, got %f", best)
	}
}

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond, 1.2)
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond, 0.8)
	snap := w.Snapshot()
	if math.Abs(snap.ImagesPerSec-2133.3333) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.ImagesPerSec)
	}
	if w.samples != 0 || w.steps != 0 {
		t.Fatalf("window was not reset")
	}
	if snap.LastLoss != 0.8 {
		t.Fatalf("expected last loss 0.8, got %.2f", snap.LastLoss)
	}
}
