package dataset

import (
	"bufio"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/dvd42/lesionnet/internal/model"
	"github.com/dvd42/lesionnet/internal/transform"
)

// LoaderOptions configures a batch loader over one split.
type LoaderOptions struct {
	Split      *Split
	BatchSize  int
	NumWorkers int
	Shuffle    bool
	Seed       int64
	Transform  transform.Pipeline
}

// Loader yields one stream of batches per epoch. Decoding and augmentation
// run on worker goroutines; an index-ordered aggregator reassembles results
// so that, with Shuffle off, batch contents are identical across epochs.
// With Shuffle on, the sample order is reshuffled per epoch from Seed+epoch.
type Loader struct {
	opts LoaderOptions
}

// NewLoader validates opts and constructs a Loader.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Split == nil || len(opts.Split.Samples) == 0 {
		return nil, errors.New("loader: empty split")
	}
	if opts.BatchSize <= 0 {
		return nil, errors.New("loader: batch size must be > 0")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	return &Loader{opts: opts}, nil
}

// Batches starts one epoch's pipeline. The batch channel closes after the
// final (possibly partial) batch; the error channel closes with it and
// carries at most one fatal error. Undecodable images are skipped.
func (l *Loader) Batches(ctx context.Context, epoch int) (<-chan model.Batch, <-chan error) {
	out := make(chan model.Batch)
	errCh := make(chan error, 1)
	go l.run(ctx, epoch, out, errCh)
	return out, errCh
}

type loadJob struct {
	id     int
	sample Sample
}

type loadResult struct {
	id       int
	features []float64
	label    int
	err      error
}

func (l *Loader) run(ctx context.Context, epoch int, out chan<- model.Batch, errCh chan<- error) {
	defer close(out)
	defer close(errCh)

	order := make([]int, len(l.opts.Split.Samples))
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		rng := rand.New(rand.NewSource(l.opts.Seed + int64(epoch)))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	jobs := make(chan loadJob, l.opts.NumWorkers)
	results := make(chan loadResult, l.opts.NumWorkers*2)

	var wg sync.WaitGroup
	for w := 0; w < l.opts.NumWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l.worker(ctx, epoch, id, jobs, results)
		}(w)
	}

	go func() {
		defer close(jobs)
		for i, idx := range order {
			select {
			case <-ctx.Done():
				return
			case jobs <- loadJob{id: i, sample: l.opts.Split.Samples[idx]}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]loadResult)
	next := 0
	inputs := make([][]float64, 0, l.opts.BatchSize)
	labels := make([]int, 0, l.opts.BatchSize)

	emit := func() bool {
		batch := model.Batch{Inputs: inputs, Labels: labels}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return false
		case out <- batch:
		}
		inputs = make([][]float64, 0, l.opts.BatchSize)
		labels = make([]int, 0, l.opts.BatchSize)
		return true
	}

	for res := range results {
		pending[res.id] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if r.err != nil {
				continue
			}
			inputs = append(inputs, r.features)
			labels = append(labels, r.label)
			if len(inputs) == l.opts.BatchSize {
				if !emit() {
					return
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		errCh <- err
		return
	}
	if len(inputs) > 0 {
		emit()
	}
}

func (l *Loader) worker(ctx context.Context, epoch, id int, jobs <-chan loadJob, results chan<- loadResult) {
	rng := rand.New(rand.NewSource(l.opts.Seed ^ (int64(epoch) << 16) ^ int64(id)))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			features, err := l.load(job.sample, rng)
			res := loadResult{id: job.id, features: features, label: job.sample.Label, err: err}
			select {
			case <-ctx.Done():
				return
			case results <- res:
			}
		}
	}
}

func (l *Loader) load(sample Sample, rng *rand.Rand) ([]float64, error) {
	f, err := os.Open(sample.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", sample.Path)
	}
	return l.opts.Transform.Apply(img, rng), nil
}
