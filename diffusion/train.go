package diffusion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/drift-ml/drift/internal/optim"
	"github.com/drift-ml/drift/internal/tensor"
)

// TrainConfig configures the training loop. Zero values pick the
// documented defaults.
type TrainConfig struct {
	// Epochs is the number of passes over the batches. Required.
	Epochs int

	// Loss selects the noise regression loss. Defaults to LossHuber.
	Loss LossKind

	// LogEvery logs training progress every n steps. Defaults to 10.
	LogEvery int

	// SampleEvery generates a sample batch every n epochs. Defaults to
	// 10. Negative disables sampling.
	SampleEvery int

	// SampleBatch is the number of images per generated batch.
	// Defaults to 4.
	SampleBatch int
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.LogEvery == 0 {
		c.LogEvery = 10
	}
	if c.SampleEvery == 0 {
		c.SampleEvery = 10
	}
	if c.SampleBatch == 0 {
		c.SampleBatch = 4
	}
	return c
}

// Recorder receives training progress: per-step losses and periodically
// generated sample batches.
type Recorder[B tensor.Backend] interface {
	RecordLoss(epoch, step int, loss float32)
	RecordSamples(epoch int, batch *tensor.Tensor[float32, B])
}

// Train fits the model's noise prediction on the given image batches.
//
// Every batch must be [batch, channels, size, size] with pixel values in
// [-1, 1]. The backend must carry a gradient tape. rec may be nil.
func Train[B tensor.Backend](
	model NoiseModel[B],
	process *Process[B],
	sampler *Sampler[B],
	optimizer optim.Optimizer,
	batches []*tensor.Tensor[float32, B],
	config TrainConfig,
	rec Recorder[B],
	backend B,
) error {
	config = config.withDefaults()
	if config.Epochs <= 0 {
		return fmt.Errorf("diffusion: epochs must be positive, got %d", config.Epochs)
	}
	if len(batches) == 0 {
		return fmt.Errorf("diffusion: no training batches")
	}
	for i, b := range batches {
		if len(b.Shape()) != 4 {
			return fmt.Errorf("diffusion: batch %d must be 4D [N,C,H,W], got %v", i, b.Shape())
		}
	}

	owner, ok := any(backend).(tapeOwner)
	if !ok {
		return fmt.Errorf("diffusion: backend %q records no gradients, wrap it in an autodiff backend", backend.Name())
	}
	tape := owner.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	shape := batches[0].Shape()
	channels, imageSize := shape[1], shape[2]

	start := time.Now()
	for epoch := 0; epoch < config.Epochs; epoch++ {
		var epochLoss float64

		for step, batch := range batches {
			optimizer.ZeroGrad()
			tape.Clear()

			t := process.SampleTimesteps(batch.Shape()[0])
			loss, err := process.Loss(model, batch, nil, t, config.Loss)
			if err != nil {
				return err
			}

			seed := tensor.Ones[float32](tensor.Shape{}, backend)
			grads := tape.Backward(seed.Raw(), backend)
			optimizer.Step(grads)

			lossVal := loss.Item()
			epochLoss += float64(lossVal)
			if rec != nil {
				rec.RecordLoss(epoch, step, lossVal)
			}
			if step%config.LogEvery == 0 {
				slog.Info("train step",
					"epoch", epoch,
					"step", step,
					"loss", lossVal,
					"lr", optimizer.GetLR(),
				)
			}
		}

		slog.Info("epoch done",
			"epoch", epoch,
			"avg_loss", epochLoss/float64(len(batches)),
			"elapsed", time.Since(start).Round(time.Second),
		)

		if rec != nil && config.SampleEvery > 0 && (epoch+1)%config.SampleEvery == 0 {
			trajectory, err := sampler.Sample(model, imageSize, config.SampleBatch, channels)
			if err != nil {
				return err
			}
			rec.RecordSamples(epoch, trajectory.Final())
		}
	}
	return nil
}
