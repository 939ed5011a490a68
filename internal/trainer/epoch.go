package trainer

import (
	"context"
	"log"
	"time"

	"github.com/dvd42/lesionnet/internal/loss"
	"github.com/dvd42/lesionnet/internal/metrics"
	"github.com/dvd42/lesionnet/internal/model"
	"github.com/dvd42/lesionnet/internal/optim"
	"github.com/dvd42/lesionnet/internal/parallel"
)

// Trainer binds a model, a loss, an optimizer over the model's parameters,
// and the execution engine. TrainEpoch and ValidateEpoch each consume one
// finite stream of batches and reduce it to a Summary.
type Trainer struct {
	Model  model.Model
	Loss   loss.Losser
	Optim  *optim.SGD
	Engine *parallel.Engine

	// LogEvery controls throughput logging during training epochs;
	// 0 disables it.
	LogEvery int
	// Seed drives the dropout RNGs; each (epoch, step) pair derives its own
	// stream so runs are reproducible.
	Seed int64
}

// TrainEpoch performs one pass over the batch stream with parameter updates:
// per batch it zeroes gradients, runs forward/backward sharded across the
// engine's devices, and applies one optimizer step. Any loader error ends the
// epoch immediately and is returned unwrapped.
func (t *Trainer) TrainEpoch(ctx context.Context, epoch int, batches <-chan model.Batch, errs <-chan error) (metrics.Summary, error) {
	t.Model.SetTraining(true)
	var stats metrics.RunningStats
	var window metrics.Window
	step := 0
	for {
		startData := time.Now()
		batch, ok, err := nextBatch(ctx, batches, errs)
		if err != nil {
			return metrics.Summary{}, err
		}
		if !ok {
			break
		}
		dataTime := time.Since(startData)
		n := len(batch.Inputs)

		startCompute := time.Now()
		t.Optim.ZeroGrad()
		lossSum, correct := t.Engine.TrainBatch(t.Model, t.Loss, batch, t.stepSeed(epoch, step))
		t.Optim.Step()
		computeTime := time.Since(startCompute)

		batchLoss := lossSum / float64(n)
		stats.Record(batchLoss, correct, n)
		window.Record(n, dataTime, computeTime, batchLoss)
		step++

		if t.LogEvery > 0 && step%t.LogEvery == 0 {
			snap := window.Snapshot()
			log.Printf("epoch=%d step=%d images_per_sec=%.1f data_ms=%.2f compute_ms=%.2f loss=%.4f",
				epoch,
				step,
				snap.ImagesPerSec,
				snap.AvgDataMS,
				snap.AvgComputeMS,
				snap.LastLoss,
			)
		}
	}
	return stats.Summary(), nil
}

// ValidateEpoch performs one pass without gradients or optimizer steps; the
// model runs in evaluation mode for the duration, so no parameter changes.
func (t *Trainer) ValidateEpoch(ctx context.Context, batches <-chan model.Batch, errs <-chan error) (metrics.Summary, error) {
	t.Model.SetTraining(false)
	var stats metrics.RunningStats
	for {
		batch, ok, err := nextBatch(ctx, batches, errs)
		if err != nil {
			return metrics.Summary{}, err
		}
		if !ok {
			break
		}
		n := len(batch.Inputs)
		lossSum, correct := t.Engine.EvalBatch(t.Model, t.Loss, batch)
		stats.Record(lossSum/float64(n), correct, n)
	}
	return stats.Summary(), nil
}

// stepSeed derives a distinct RNG stream per (epoch, step). The epoch shift
// leaves 24 bits of step headroom so streams stay disjoint even for very long
// epochs.
func (t *Trainer) stepSeed(epoch, step int) int64 {
	return t.Seed + int64(epoch)<<32 + int64(step)<<8
}

// nextBatch pulls the next batch off the stream, honoring cancellation and
// surfacing loader errors. ok is false once the stream is exhausted.
func nextBatch(ctx context.Context, batches <-chan model.Batch, errs <-chan error) (model.Batch, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return model.Batch{}, false, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return model.Batch{}, false, err
			}
		case batch, ok := <-batches:
			if !ok {
				// A cancelled context can lose the select race against a
				// loader that already shut down; never report a cancelled
				// stream as clean exhaustion.
				if err := ctx.Err(); err != nil {
					return model.Batch{}, false, err
				}
				return model.Batch{}, false, nil
			}
			return batch, true, nil
		}
	}
}
