package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dvd42/lesionnet/internal/config"
	"github.com/dvd42/lesionnet/internal/dataset"
	"github.com/dvd42/lesionnet/internal/loss"
	"github.com/dvd42/lesionnet/internal/model"
	"github.com/dvd42/lesionnet/internal/optim"
	"github.com/dvd42/lesionnet/internal/parallel"
	"github.com/dvd42/lesionnet/internal/plot"
	"github.com/dvd42/lesionnet/internal/trainer"
	"github.com/dvd42/lesionnet/internal/transform"
)

func main() {
	cfgPath := flag.String("config", "configs/finetune.yaml", "Path to YAML config")
	dataRoot := flag.String("data-root", "", "Dataset root with train/ and val/ splits")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	learningRate := flag.Float64("lr", 0, "Learning rate")
	momentum := flag.Float64("momentum", 0, "SGD momentum")
	devices := flag.Int("devices", 0, "Number of parallel devices (0 = autodetect)")
	numWorkers := flag.Int("num-workers", 0, "Number of data loader workers")
	imageSize := flag.Int("image-size", 0, "Input image size (multiple of 4)")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N training steps")
	weights := flag.String("weights", "", "Pretrained backbone checkpoint")
	outDir := flag.String("out-dir", "", "Directory for plots and the fine-tuned checkpoint")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataRoot:     *dataRoot,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *learningRate,
		Momentum:     *momentum,
		Devices:      *devices,
		NumWorkers:   *numWorkers,
		ImageSize:    *imageSize,
		Seed:         *seed,
		LogEvery:     *logEvery,
		Weights:      *weights,
		OutDir:       *outDir,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	trainSplit, err := dataset.Discover(filepath.Join(cfg.DataRoot, "train"))
	if err != nil {
		log.Fatalf("discover train split: %v", err)
	}
	valSplit, err := dataset.Discover(filepath.Join(cfg.DataRoot, "val"))
	if err != nil {
		log.Fatalf("discover val split: %v", err)
	}
	if len(trainSplit.Classes) != len(valSplit.Classes) {
		log.Fatalf("class mismatch: train has %d classes, val has %d", len(trainSplit.Classes), len(valSplit.Classes))
	}
	for i, class := range trainSplit.Classes {
		if valSplit.Classes[i] != class {
			log.Fatalf("class mismatch at index %d: train=%s val=%s", i, class, valSplit.Classes[i])
		}
	}
	log.Printf("classes=%d train_samples=%d val_samples=%d", len(trainSplit.Classes), len(trainSplit.Samples), len(valSplit.Samples))

	numClasses := len(trainSplit.Classes)
	var net *model.LesionNet
	if cfg.Weights != "" {
		net = model.NewLesionNet(cfg.ImageSize, model.PretrainedClasses, cfg.Seed)
		if err := model.LoadPretrained(cfg.Weights, net); err != nil {
			log.Fatalf("load pretrained weights: %v", err)
		}
		net.ReplaceClassifier(numClasses, cfg.Seed+1)
		log.Printf("loaded pretrained backbone from %s; classifier replaced with %d outputs", cfg.Weights, numClasses)
	} else {
		net = model.NewLesionNet(cfg.ImageSize, numClasses, cfg.Seed)
		log.Printf("no pretrained weights configured; training from scratch")
	}

	trainLoader, err := dataset.NewLoader(dataset.LoaderOptions{
		Split:      trainSplit,
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Shuffle:    true,
		Seed:       cfg.Seed,
		Transform: transform.Pipeline{
			Size:    cfg.ImageSize,
			Augment: true,
			Norm:    transform.DefaultNormalize,
		},
	})
	if err != nil {
		log.Fatalf("train loader: %v", err)
	}
	valLoader, err := dataset.NewLoader(dataset.LoaderOptions{
		Split:      valSplit,
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		Transform: transform.Pipeline{
			Size: cfg.ImageSize,
			Norm: transform.DefaultNormalize,
		},
	})
	if err != nil {
		log.Fatalf("val loader: %v", err)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		log.Fatalf("create out dir: %v", err)
	}

	engine := parallel.NewEngine(cfg.Devices)
	log.Printf("devices=%d workers=%d batch_size=%d lr=%g momentum=%g", engine.Devices(), cfg.NumWorkers, cfg.BatchSize, cfg.LearningRate, cfg.Momentum)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := &trainer.Trainer{
		Model:    net,
		Loss:     loss.CrossEntropy{},
		Optim:    optim.NewSGD(net.Parameters(), cfg.LearningRate, cfg.Momentum),
		Engine:   engine,
		LogEvery: cfg.LogEvery,
		Seed:     cfg.Seed,
	}

	hist, err := t.Fit(ctx, trainer.FitConfig{
		Epochs:   cfg.Epochs,
		Train:    trainLoader,
		Val:      valLoader,
		Reporter: &plot.CurvePlotter{Dir: cfg.OutDir},
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	ckPath := filepath.Join(cfg.OutDir, "finetuned.gob")
	if err := model.SaveCheckpoint(ckPath, net); err != nil {
		log.Fatalf("save checkpoint: %v", err)
	}
	log.Printf("saved fine-tuned checkpoint to %s", ckPath)
	reportBest(os.Stdout, hist.BestValidationAccuracy())
}

// reportBest writes the final result of the run. Unlike the log lines this
// goes to stdout so the value survives a redirected stderr.
func reportBest(w io.Writer, best float64) {
	fmt.Fprintf(w, "best validation accuracy: %.4f\n", best)
}
