package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"portfolio-server/internal/model"
)

// Transformer преобразует сырой файл изображения в компактное представление,
// пригодное для хранения в документе: длинная сторона ограничена maxDimension,
// прозрачность заливается белым, результат - JPEG фиксированного качества,
// упакованный в data URL.
type Transformer struct {
	maxDimension int
	jpegQuality  int
	logger       *zap.Logger
}

// NewTransformer создает Transformer с заданными лимитами.
func NewTransformer(maxDimension, jpegQuality int, logger *zap.Logger) *Transformer {
	if maxDimension <= 0 {
		maxDimension = 800
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 70
	}
	return &Transformer{
		maxDimension: maxDimension,
		jpegQuality:  jpegQuality,
		logger:       logger.Named("ImageTransform"),
	}
}

// Transform декодирует raw, масштабирует и возвращает data:image/jpeg;base64,...
// При любой ошибке возвращается ошибка, оборачивающая model.ErrEncoding;
// вызывающий обязан не трогать слот в этом случае.
func (t *Transformer) Transform(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrEncoding, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty input", model.ErrEncoding)
	}

	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		t.logger.Warn("Failed to decode uploaded image", zap.Error(err), zap.Int("size_bytes", len(raw)))
		return "", fmt.Errorf("%w: decode: %v", model.ErrEncoding, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Масштабируем только вниз: если обе стороны уже в пределах лимита,
	// размеры не меняются.
	if width > t.maxDimension || height > t.maxDimension {
		src = imaging.Fit(src, t.maxDimension, t.maxDimension, imaging.Lanczos)
		bounds = src.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrEncoding, err)
	}

	// Непрозрачная белая подложка, чтобы прозрачность PNG не просвечивала
	// сквозь JPEG.
	canvas := imaging.New(width, height, color.White)
	canvas = imaging.Paste(canvas, src, image.Pt(0, 0))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(t.jpegQuality)); err != nil {
		t.logger.Error("Failed to encode image to JPEG", zap.Error(err))
		return "", fmt.Errorf("%w: encode: %v", model.ErrEncoding, err)
	}

	t.logger.Debug("Image transformed",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("encoded_bytes", buf.Len()),
	)

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
