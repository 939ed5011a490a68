// Package parallel executes batch compute data-parallel across a fixed
// number of replicas, one goroutine each. The caller sees a synchronous
// call; sharding, private gradient buffers, and the reduction are internal.
package parallel

import (
	"math/rand"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/dvd42/lesionnet/internal/loss"
	"github.com/dvd42/lesionnet/internal/model"
)

// Engine owns the replica count ("device" count) for a run.
type Engine struct {
	devices int
}

// NewEngine builds an engine with the given device count; values <= 0 fall
// back to DefaultDevices.
func NewEngine(devices int) *Engine {
	if devices <= 0 {
		devices = DefaultDevices()
	}
	return &Engine{devices: devices}
}

// Devices returns the replica count.
func (e *Engine) Devices() int {
	return e.devices
}

// DefaultDevices returns the physical core count of the host.
func DefaultDevices() int {
	cores := cpuid.CPU.PhysicalCores
	if cores < 1 {
		cores = 1
	}
	return cores
}

// TrainBatch runs forward and backward over the batch, sharded across the
// replicas, and reduces the per-replica gradients into the model's parameter
// gradients scaled by 1/len(batch). It returns the summed sample loss and the
// number of arg-max-correct predictions. The optimizer step is the caller's.
func (e *Engine) TrainBatch(m model.Model, lf loss.Losser, batch model.Batch, seed int64) (float64, int) {
	return e.run(m, lf, batch, seed, true)
}

// EvalBatch runs the forward pass only; gradients and parameters are
// untouched.
func (e *Engine) EvalBatch(m model.Model, lf loss.Losser, batch model.Batch) (float64, int) {
	return e.run(m, lf, batch, 0, false)
}

type shardResult struct {
	lossSum float64
	correct int
}

func (e *Engine) run(m model.Model, lf loss.Losser, batch model.Batch, seed int64, train bool) (float64, int) {
	n := len(batch.Inputs)
	if n == 0 {
		return 0, 0
	}
	shards := shard(n, e.devices)
	results := make([]shardResult, len(shards))
	grads := make([]model.GradSet, len(shards))

	var wg sync.WaitGroup
	for si := range shards {
		wg.Add(1)
		go func(si int) {
			defer wg.Done()
			lo, hi := shards[si][0], shards[si][1]
			var gs model.GradSet
			var rng *rand.Rand
			if train {
				gs = model.NewGradSet(m.Parameters())
				grads[si] = gs
				rng = rand.New(rand.NewSource(seed + int64(si)))
			}
			var res shardResult
			for i := lo; i < hi; i++ {
				logits, acts := m.ForwardSample(batch.Inputs[i], rng)
				label := batch.Labels[i]
				if train {
					deriv := make([]float64, len(logits))
					res.lossSum += lf.Deriv(logits, label, deriv)
					m.BackwardSample(acts, deriv, gs)
				} else {
					res.lossSum += lf.Loss(logits, label)
				}
				if floats.MaxIdx(logits) == label {
					res.correct++
				}
			}
			results[si] = res
		}(si)
	}
	wg.Wait()

	if train {
		params := m.Parameters()
		inv := 1.0 / float64(n)
		for pi, p := range params {
			for _, gs := range grads {
				if gs != nil {
					floats.AddScaled(p.Grad, inv, gs[pi])
				}
			}
		}
	}

	var lossSum float64
	var correct int
	for _, r := range results {
		lossSum += r.lossSum
		correct += r.correct
	}
	return lossSum, correct
}

// shard splits n samples into up to devices contiguous [lo, hi) ranges.
func shard(n, devices int) [][2]int {
	if devices > n {
		devices = n
	}
	shards := make([][2]int, 0, devices)
	base := n / devices
	rem := n % devices
	lo := 0
	for i := 0; i < devices; i++ {
		size := base
		if i < rem {
			size++
		}
		shards = append(shards, [2]int{lo, lo + size})
		lo += size
	}
	return shards
}
