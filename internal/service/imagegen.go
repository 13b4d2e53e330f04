package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"portfolio-server/internal/model"
)

// ErrImageSynthesisDenied - ключ API не имеет прав на синтез изображений.
// Сообщение пробрасывается в UI как есть.
var ErrImageSynthesisDenied = errors.New("image synthesis is not enabled for this API key; enable billing or use a key with image generation access")

// ImageSynthesizer генерирует изображение по текстовому описанию.
// Вспомогательный инструмент админки, не участвует в пайплайне загрузки.
type ImageSynthesizer struct {
	client AIClient
	logger *zap.Logger
}

// NewImageSynthesizer создает сервис синтеза изображений.
func NewImageSynthesizer(client AIClient, logger *zap.Logger) *ImageSynthesizer {
	return &ImageSynthesizer{
		client: client,
		logger: logger.Named("ImageSynthesizer"),
	}
}

// Synthesize возвращает готовый data URL для сгенерированного изображения.
// referenceImage (data URL) опционален: с ним генерация идет через edits
// endpoint и опирается на референс.
func (s *ImageSynthesizer) Synthesize(ctx context.Context, prompt string, aspectRatio string, referenceImage string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt пуст", model.ErrProvider)
	}

	size := sizeForAspectRatio(aspectRatio)
	var b64 string
	var err error
	if referenceImage != "" {
		b64, err = s.client.EditImage(ctx, prompt, referenceImage, size)
	} else {
		b64, err = s.client.GenerateImage(ctx, prompt, size)
	}
	if err != nil {
		if isPermissionSignal(err) {
			s.logger.Warn("Image synthesis denied for API key", zap.Error(err))
			return "", ErrImageSynthesisDenied
		}
		if isRateLimitSignal(err) {
			return "", fmt.Errorf("%w: %v", model.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("%w: %v", model.ErrProvider, err)
	}

	s.logger.Info("Image synthesized", zap.String("aspect_ratio", aspectRatio), zap.Int("b64_chars", len(b64)))
	return "data:image/png;base64," + b64, nil
}

// sizeForAspectRatio переводит соотношение сторон в размер для images API.
func sizeForAspectRatio(aspectRatio string) string {
	switch aspectRatio {
	case "16:9":
		return "1792x1024"
	case "9:16":
		return "1024x1792"
	default: // "1:1" и все нераспознанное
		return "1024x1024"
	}
}
