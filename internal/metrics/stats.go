// Package metrics holds the per-epoch running statistics and the cross-epoch
// history of a training run.
package metrics

import "time"

// RunningStats accumulates a dataset-wide mean incrementally per batch:
// cumulative weighted loss, cumulative correct-prediction count, and
// cumulative sample count. One instance lives for exactly one epoch.
type RunningStats struct {
	lossSum float64
	correct int
	count   int
}

// Record adds one batch: batchLoss is the batch mean loss, weighted here by
// size so that Summary yields the exact dataset mean.
func (r *RunningStats) Record(batchLoss float64, correct, size int) {
	r.lossSum += batchLoss * float64(size)
	r.correct += correct
	r.count += size
}

// Count returns the cumulative sample count.
func (r *RunningStats) Count() int {
	return r.count
}

// Summary reduces the accumulators to (mean loss, accuracy).
func (r *RunningStats) Summary() Summary {
	if r.count == 0 {
		return Summary{}
	}
	return Summary{
		Loss:     r.lossSum / float64(r.count),
		Accuracy: float64(r.correct) / float64(r.count),
	}
}

// Summary is the reduced result of one epoch over one split.
type Summary struct {
	Loss     float64
	Accuracy float64
}

// History records one Summary per completed epoch for each split. It is
// owned by the training loop; the epoch runners never touch it.
type History struct {
	TrainLoss []float64
	TrainAcc  []float64
	ValLoss   []float64
	ValAcc    []float64
}

// Append records the results of one completed epoch.
func (h *History) Append(train, val Summary) {
	h.TrainLoss = append(h.TrainLoss, train.Loss)
	h.TrainAcc = append(h.TrainAcc, train.Accuracy)
	h.ValLoss = append(h.ValLoss, val.Loss)
	h.ValAcc = append(h.ValAcc, val.Accuracy)
}

// Epochs returns the number of completed epochs.
func (h *History) Epochs() int {
	return len(h.ValAcc)
}

// BestValidationAccuracy returns the maximum validation accuracy observed,
// or 0 if no epoch has completed.
func (h *History) BestValidationAccuracy() float64 {
	best := 0.0
	for _, v := range h.ValAcc {
		if v > best {
			best = v
		}
	}
	return best
}

// Window accumulates throughput stats across training steps between log
// lines.
type Window struct {
	samples  int
	data     time.Duration
	compute  time.Duration
	steps    int
	lastLoss float64
}

// Record adds a new measurement to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	total := w.data + w.compute
	if total > 0 {
		snap.ImagesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	w.samples = 0
	w.data = 0
	w.compute = 0
	w.steps = 0
	return snap
}

// Snapshot represents loggable throughput metrics.
type Snapshot struct {
	ImagesPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
	LastLoss     float64
}
