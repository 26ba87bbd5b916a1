package diffusion

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/drift-ml/drift/internal/tensor"
)

// SaveSampleGrid renders a batch of images as a PNG grid. The batch must
// be [n, c, h, w] with c == 1 (grayscale) or c == 3 (RGB) and pixel
// values in [-1, 1]; values outside the range are clamped. cols sets the
// grid width and scale upscales with nearest neighbour.
func SaveSampleGrid[B tensor.Backend](path string, batch *tensor.Tensor[float32, B], cols, scale int) error {
	shape := batch.Shape()
	if len(shape) != 4 {
		return fmt.Errorf("diffusion: sample grid needs 4D batch [N,C,H,W], got %v", shape)
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if c != 1 && c != 3 {
		return fmt.Errorf("diffusion: sample grid supports 1 or 3 channels, got %d", c)
	}
	if cols <= 0 {
		cols = 1
	}
	if scale <= 0 {
		scale = 1
	}

	rows := (n + cols - 1) / cols
	grid := image.NewRGBA(image.Rect(0, 0, cols*w, rows*h))
	data := batch.Data()

	for i := 0; i < n; i++ {
		originX := (i % cols) * w
		originY := (i / cols) * h
		img := data[i*c*h*w:]

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if c == 1 {
					v := toByte(img[y*w+x])
					grid.SetRGBA(originX+x, originY+y, color.RGBA{v, v, v, 255})
				} else {
					grid.SetRGBA(originX+x, originY+y, color.RGBA{
						toByte(img[0*h*w+y*w+x]),
						toByte(img[1*h*w+y*w+x]),
						toByte(img[2*h*w+y*w+x]),
						255,
					})
				}
			}
		}
	}

	out := image.Image(grid)
	if scale > 1 {
		scaled := image.NewRGBA(image.Rect(0, 0, cols*w*scale, rows*h*scale))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), grid, grid.Bounds(), draw.Src, nil)
		out = scaled
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("diffusion: sample grid: %w", err)
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return fmt.Errorf("diffusion: sample grid: %w", err)
	}
	return f.Close()
}

// toByte maps a pixel value from [-1, 1] to [0, 255] with clamping.
func toByte(v float32) uint8 {
	scaled := (v + 1) / 2 * 255
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return uint8(scaled)
}

// PNGRecorder logs losses through slog and writes generated sample
// batches as PNG grids into a directory.
type PNGRecorder[B tensor.Backend] struct {
	dir   string
	cols  int
	scale int
}

// NewPNGRecorder creates a recorder writing sample grids under dir,
// cols images per row, upscaled by scale.
func NewPNGRecorder[B tensor.Backend](dir string, cols, scale int) (*PNGRecorder[B], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diffusion: png recorder: %w", err)
	}
	return &PNGRecorder[B]{dir: dir, cols: cols, scale: scale}, nil
}

// RecordLoss logs the step loss.
func (r *PNGRecorder[B]) RecordLoss(epoch, step int, loss float32) {
	slog.Debug("loss", "epoch", epoch, "step", step, "loss", loss)
}

// RecordSamples writes the batch as samples_epoch_<n>.png.
func (r *PNGRecorder[B]) RecordSamples(epoch int, batch *tensor.Tensor[float32, B]) {
	path := filepath.Join(r.dir, fmt.Sprintf("samples_epoch_%04d.png", epoch))
	if err := SaveSampleGrid(path, batch, r.cols, r.scale); err != nil {
		slog.Error("writing sample grid", "path", path, "error", err)
		return
	}
	slog.Info("wrote sample grid", "path", path)
}
