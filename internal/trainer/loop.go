package trainer

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/dvd42/lesionnet/internal/metrics"
	"github.com/dvd42/lesionnet/internal/model"
)

// BatchSource yields one finite stream of batches per epoch.
// *dataset.Loader is the canonical implementation.
type BatchSource interface {
	Batches(ctx context.Context, epoch int) (<-chan model.Batch, <-chan error)
}

// Reporter is notified after every completed epoch with the history so far.
// Plot redrawing hangs off this; the numerical loop does not know about it.
type Reporter interface {
	EpochEnd(epoch int, hist *metrics.History)
}

// NopReporter ignores every notification.
type NopReporter struct{}

// EpochEnd implements Reporter.
func (NopReporter) EpochEnd(int, *metrics.History) {}

// FitConfig describes one fine-tuning run.
type FitConfig struct {
	Epochs   int
	Train    BatchSource
	Val      BatchSource
	Reporter Reporter
}

// Fit runs the train-then-validate loop for cfg.Epochs epochs, strictly
// sequential, appending one result per epoch to the returned History. The
// best validation accuracy is History.BestValidationAccuracy.
func (t *Trainer) Fit(ctx context.Context, cfg FitConfig) (*metrics.History, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.Train == nil || cfg.Val == nil {
		return nil, errors.New("trainer: train and val sources are required")
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}

	hist := &metrics.History{}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		trainBatches, trainErrs := cfg.Train.Batches(ctx, epoch)
		trainSum, err := t.TrainEpoch(ctx, epoch, trainBatches, trainErrs)
		if err != nil {
			return nil, errors.Wrapf(err, "train epoch %d", epoch)
		}

		valBatches, valErrs := cfg.Val.Batches(ctx, epoch)
		valSum, err := t.ValidateEpoch(ctx, valBatches, valErrs)
		if err != nil {
			return nil, errors.Wrapf(err, "validate epoch %d", epoch)
		}

		hist.Append(trainSum, valSum)
		log.Printf("epoch=%d train_loss=%.4f train_acc=%.4f val_loss=%.4f val_acc=%.4f",
			epoch, trainSum.Loss, trainSum.Accuracy, valSum.Loss, valSum.Accuracy)
		reporter.EpochEnd(epoch, hist)
	}
	return hist, nil
}
