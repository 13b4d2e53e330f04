package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-server/internal/model"
)

// pngBytes кодирует картинку заданного размера в PNG.
// transparent=true дает полностью прозрачные пиксели.
func pngBytes(t *testing.T, width, height int, transparent bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if !transparent {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// decodeDataURL разбирает data:image/jpeg;base64,... обратно в картинку.
func decodeDataURL(t *testing.T, dataURL string) image.Image {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	require.True(t, strings.HasPrefix(dataURL, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestTransformDownscalesPreservingAspectRatio(t *testing.T) {
	tr := NewTransformer(800, 70, zap.NewNop())

	dataURL, err := tr.Transform(context.Background(), pngBytes(t, 2000, 1000, false))
	require.NoError(t, err)

	img := decodeDataURL(t, dataURL)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestTransformNeverUpscales(t *testing.T) {
	tr := NewTransformer(800, 70, zap.NewNop())

	dataURL, err := tr.Transform(context.Background(), pngBytes(t, 300, 200, false))
	require.NoError(t, err)

	img := decodeDataURL(t, dataURL)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestTransformFlattensTransparencyToWhite(t *testing.T) {
	tr := NewTransformer(800, 90, zap.NewNop())

	dataURL, err := tr.Transform(context.Background(), pngBytes(t, 10, 10, true))
	require.NoError(t, err)

	img := decodeDataURL(t, dataURL)
	r, g, b, _ := img.At(5, 5).RGBA()
	// JPEG слегка шумит, поэтому сверяем с запасом
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestTransformRejectsGarbage(t *testing.T) {
	tr := NewTransformer(800, 70, zap.NewNop())

	_, err := tr.Transform(context.Background(), []byte("definitely not an image"))
	assert.ErrorIs(t, err, model.ErrEncoding)

	_, err = tr.Transform(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrEncoding)
}

func TestTransformHonorsCancelledContext(t *testing.T) {
	tr := NewTransformer(800, 70, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Transform(ctx, pngBytes(t, 10, 10, false))
	assert.ErrorIs(t, err, model.ErrEncoding)
}
