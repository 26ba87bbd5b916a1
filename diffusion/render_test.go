package diffusion

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

func TestSaveSampleGrid(t *testing.T) {
	backend := autodiff.New(cpu.New())
	batch := tensor.Randn(tensor.Shape{4, 1, 8, 8}, nil, backend)

	path := filepath.Join(t.TempDir(), "grid.png")
	require.NoError(t, SaveSampleGrid(path, batch, 2, 3))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)

	// 2x2 grid of 8x8 tiles, upscaled 3x.
	bounds := img.Bounds()
	assert.Equal(t, 48, bounds.Dx())
	assert.Equal(t, 48, bounds.Dy())
}

func TestSaveSampleGridRGB(t *testing.T) {
	backend := autodiff.New(cpu.New())
	batch := tensor.Zeros[float32](tensor.Shape{2, 3, 4, 4}, backend)

	path := filepath.Join(t.TempDir(), "rgb.png")
	require.NoError(t, SaveSampleGrid(path, batch, 2, 1))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	// Zero pixels map to mid gray.
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.EqualValues(t, r, g)
	assert.EqualValues(t, g, b)
	assert.InDelta(t, 127, float64(r>>8), 1)
}

func TestSaveSampleGridValidation(t *testing.T) {
	backend := autodiff.New(cpu.New())
	path := filepath.Join(t.TempDir(), "bad.png")

	assert.Error(t, SaveSampleGrid(path, tensor.Zeros[float32](tensor.Shape{4}, backend), 2, 1))
	assert.Error(t, SaveSampleGrid(path, tensor.Zeros[float32](tensor.Shape{1, 2, 4, 4}, backend), 2, 1))
}

func TestToByteClamps(t *testing.T) {
	assert.EqualValues(t, 0, toByte(-2))
	assert.EqualValues(t, 0, toByte(-1))
	assert.EqualValues(t, 255, toByte(1))
	assert.EqualValues(t, 255, toByte(5))
	assert.EqualValues(t, 127, toByte(0))
}

func TestPNGRecorderWritesGrid(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dir := t.TempDir()

	rec, err := NewPNGRecorder[testBackend](dir, 2, 1)
	require.NoError(t, err)

	rec.RecordLoss(0, 0, 0.5) // logs only

	batch := tensor.Zeros[float32](tensor.Shape{4, 1, 4, 4}, backend)
	rec.RecordSamples(3, batch)

	_, err = os.Stat(filepath.Join(dir, "samples_epoch_0003.png"))
	assert.NoError(t, err)
}
