package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvd42/lesionnet/internal/model"
	"github.com/dvd42/lesionnet/internal/transform"
)

func fixtureSplit(t *testing.T, perClass int) *Split {
	t.Helper()
	root := t.TempDir()
	for _, class := range []string{"benign", "melanoma"} {
		for i := 0; i < perClass; i++ {
			writePNG(t, filepath.Join(root, class, fmt.Sprintf("img%03d.png", i)))
		}
	}
	split, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return split
}

func collect(t *testing.T, l *Loader, epoch int) []model.Batch {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	batches, errs := l.Batches(ctx, epoch)
	var out []model.Batch
	for b := range batches {
		out = append(out, b)
	}
	if err, ok := <-errs; ok && err != nil {
		t.Fatalf("loader error: %v", err)
	}
	return out
}

func TestLoaderBatchSizesAndPartial(t *testing.T) {
	split := fixtureSplit(t, 5) // 10 samples
	l, err := NewLoader(LoaderOptions{
		Split:      split,
		BatchSize:  4,
		NumWorkers: 3,
		Transform:  transform.Pipeline{Size: 8, Norm: transform.DefaultNormalize},
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	batches := collect(t, l, 0)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{len(batches[0].Inputs), len(batches[1].Inputs), len(batches[2].Inputs)}
	if sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Fatalf("batch sizes %v, want [4 4 2]", sizes)
	}
	total := 0
	for _, b := range batches {
		if len(b.Inputs) != len(b.Labels) {
			t.Fatalf("inputs/labels length mismatch")
		}
		for _, x := range b.Inputs {
			if len(x) != 3*8*8 {
				t.Fatalf("feature length %d, want %d", len(x), 3*8*8)
			}
		}
		total += len(b.Inputs)
	}
	if total != 10 {
		t.Fatalf("total samples %d, want 10", total)
	}
}

func TestLoaderFixedOrderWithoutShuffle(t *testing.T) {
	split := fixtureSplit(t, 5)
	l, err := NewLoader(LoaderOptions{
		Split:      split,
		BatchSize:  4,
		NumWorkers: 4,
		Transform:  transform.Pipeline{Size: 8, Norm: transform.DefaultNormalize},
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	// The split is sorted: 5 benign (label 0) then 5 melanoma (label 1).
	want := [][]int{{0, 0, 0, 0}, {0, 1, 1, 1}, {1, 1}}
	for epoch := 0; epoch < 2; epoch++ {
		batches := collect(t, l, epoch)
		if len(batches) != len(want) {
			t.Fatalf("epoch %d: %d batches, want %d", epoch, len(batches), len(want))
		}
		for i, b := range batches {
			if len(b.Labels) != len(want[i]) {
				t.Fatalf("epoch %d batch %d size %d, want %d", epoch, i, len(b.Labels), len(want[i]))
			}
			for j, label := range b.Labels {
				if label != want[i][j] {
					t.Fatalf("epoch %d batch %d label[%d]=%d, want %d", epoch, i, j, label, want[i][j])
				}
			}
		}
	}
}

func TestLoaderShuffleDeterministicPerEpoch(t *testing.T) {
	split := fixtureSplit(t, 4)
	opts := LoaderOptions{
		Split:      split,
		BatchSize:  3,
		NumWorkers: 2,
		Shuffle:    true,
		Seed:       7,
		Transform:  transform.Pipeline{Size: 8, Augment: true, Norm: transform.DefaultNormalize},
	}
	l1, err := NewLoader(opts)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	l2, err := NewLoader(opts)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	a := collect(t, l1, 3)
	b := collect(t, l2, 3)
	if len(a) != len(b) {
		t.Fatalf("batch counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		for j := range a[i].Labels {
			if a[i].Labels[j] != b[i].Labels[j] {
				t.Fatalf("same seed and epoch produced different orders")
			}
		}
	}
}

func TestLoaderSkipsUndecodable(t *testing.T) {
	split := fixtureSplit(t, 3) // 6 samples
	bad := filepath.Join(split.Root, "benign", "broken.jpg")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	split, err := Discover(split.Root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(split.Samples) != 7 {
		t.Fatalf("expected 7 discovered samples, got %d", len(split.Samples))
	}
	l, err := NewLoader(LoaderOptions{
		Split:      split,
		BatchSize:  3,
		NumWorkers: 2,
		Transform:  transform.Pipeline{Size: 8, Norm: transform.DefaultNormalize},
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	total := 0
	for _, b := range collect(t, l, 0) {
		total += len(b.Inputs)
	}
	if total != 6 {
		t.Fatalf("expected the broken image to be skipped: got %d samples", total)
	}
}

func TestLoaderCancellation(t *testing.T) {
	split := fixtureSplit(t, 10)
	l, err := NewLoader(LoaderOptions{
		Split:      split,
		BatchSize:  2,
		NumWorkers: 2,
		Transform:  transform.Pipeline{Size: 8, Norm: transform.DefaultNormalize},
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	batches, errs := l.Batches(ctx, 0)
	<-batches
	cancel()
	for range batches {
	}
	if err, ok := <-errs; ok && err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestNewLoaderValidation(t *testing.T) {
	if _, err := NewLoader(LoaderOptions{}); err == nil {
		t.Fatalf("expected error for empty split")
	}
	split := fixtureSplit(t, 1)
	if _, err := NewLoader(LoaderOptions{Split: split}); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
