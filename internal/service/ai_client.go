package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"portfolio-server/internal/config"
)

// ErrAIGenerationFailed - ошибка при обращении к AI API.
var ErrAIGenerationFailed = errors.New("ошибка генерации AI")

// AIClient интерфейс для взаимодействия с AI API.
type AIClient interface {
	// GenerateStoryText отправляет изображение с системной инструкцией и
	// возвращает сырой текст ответа модели (ожидается JSON, но не гарантируется).
	GenerateStoryText(ctx context.Context, systemPrompt string, imageDataURL string) (string, error)
	// GenerateImage синтезирует изображение по текстовому prompt.
	// Возвращает base64-содержимое без префикса data URL.
	GenerateImage(ctx context.Context, prompt string, size string) (string, error)
	// EditImage генерирует вариант референсного изображения (data URL)
	// по текстовому prompt.
	EditImage(ctx context.Context, prompt string, referenceDataURL string, size string) (string, error)
}

// openAIClient реализует AIClient поверх OpenAI-совместимого endpoint
// (Gemini, OpenRouter и т.п. предоставляют такой слой совместимости).
type openAIClient struct {
	client     *openaigo.Client
	model      string
	imageModel string
	logger     *zap.Logger
}

// NewAIClient создает клиент AI API на основе конфигурации.
func NewAIClient(cfg *config.Config, logger *zap.Logger) AIClient {
	clientConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	clientConfig.BaseURL = cfg.AIBaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}

	log := logger.Named("AIClient")
	log.Info("AI client created",
		zap.String("base_url", cfg.AIBaseURL),
		zap.String("model", cfg.AIModel),
		zap.String("image_model", cfg.AIImageModel),
		zap.Duration("timeout", cfg.AITimeout),
	)

	return &openAIClient{
		client:     openaigo.NewClientWithConfig(clientConfig),
		model:      cfg.AIModel,
		imageModel: cfg.AIImageModel,
		logger:     log,
	}
}

// GenerateStoryText отправляет vision-запрос: системная инструкция + картинка.
func (c *openAIClient) GenerateStoryText(ctx context.Context, systemPrompt string, imageDataURL string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return "", fmt.Errorf("%w: системный промпт пуст", ErrAIGenerationFailed)
	}
	if imageDataURL == "" {
		return "", fmt.Errorf("%w: изображение отсутствует", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role: openaigo.ChatMessageRoleUser,
			MultiContent: []openaigo.ChatMessagePart{
				{
					Type: openaigo.ChatMessagePartTypeImageURL,
					ImageURL: &openaigo.ChatMessageImageURL{
						URL: imageDataURL,
					},
				},
				{
					Type: openaigo.ChatMessagePartTypeText,
					Text: "Output valid JSON with 'title' and 'story'.",
				},
			},
		},
	}

	startTime := time.Now()
	c.logger.Debug("Sending vision request",
		zap.String("model", c.model),
		zap.Int("prompt_bytes", len(systemPrompt)),
		zap.Int("image_bytes", len(imageDataURL)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: 8192,
		// Просим строго типизированный JSON, если endpoint это поддерживает
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("AI API call failed", zap.Duration("duration", duration), zap.Error(err))
		MetricsRecordAIRequest(c.model, "error", duration)
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("AI API returned empty response", zap.Duration("duration", duration))
		MetricsRecordAIRequest(c.model, "error_empty_response", duration)
		return "", fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	MetricsRecordAIRequest(c.model, "success", duration)
	text := resp.Choices[0].Message.Content
	c.logger.Debug("AI API responded", zap.Duration("duration", duration), zap.Int("response_chars", len(text)))
	return text, nil
}

// GenerateImage синтезирует изображение по prompt через images endpoint.
func (c *openAIClient) GenerateImage(ctx context.Context, prompt string, size string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt пуст", ErrAIGenerationFailed)
	}

	startTime := time.Now()
	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           size,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Image synthesis failed", zap.Duration("duration", duration), zap.Error(err))
		MetricsRecordAIRequest(c.imageModel, "error", duration)
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		MetricsRecordAIRequest(c.imageModel, "error_empty_response", duration)
		return "", fmt.Errorf("%w: API не вернул данные изображения", ErrAIGenerationFailed)
	}

	MetricsRecordAIRequest(c.imageModel, "success", duration)
	return resp.Data[0].B64JSON, nil
}

// EditImage отправляет референс в images/edits endpoint. API принимает
// только файл, поэтому содержимое data URL выгружается во временный PNG.
func (c *openAIClient) EditImage(ctx context.Context, prompt string, referenceDataURL string, size string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt пуст", ErrAIGenerationFailed)
	}

	refFile, err := tempImageFile(referenceDataURL)
	if err != nil {
		return "", fmt.Errorf("%w: reference image: %v", ErrAIGenerationFailed, err)
	}
	defer func() {
		refFile.Close()
		os.Remove(refFile.Name())
	}()

	startTime := time.Now()
	resp, err := c.client.CreateEditImage(ctx, openaigo.ImageEditRequest{
		Image:          refFile,
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           size,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Image edit failed", zap.Duration("duration", duration), zap.Error(err))
		MetricsRecordAIRequest(c.imageModel, "error", duration)
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		MetricsRecordAIRequest(c.imageModel, "error_empty_response", duration)
		return "", fmt.Errorf("%w: API не вернул данные изображения", ErrAIGenerationFailed)
	}

	MetricsRecordAIRequest(c.imageModel, "success", duration)
	return resp.Data[0].B64JSON, nil
}

// tempImageFile раскодирует data URL во временный файл для multipart-запроса.
func tempImageFile(dataURL string) (*os.File, error) {
	idx := strings.Index(dataURL, ",")
	if idx < 0 {
		return nil, fmt.Errorf("not a data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+1:])
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "reference-*.png")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}

// isRateLimitSignal распознает лимит квоты или временную ошибку сервера,
// после которых вызов имеет смысл повторить: HTTP 429, RESOURCE_EXHAUSTED,
// 500/503.
func isRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// isPermissionSignal распознает отказ в доступе (ключ без нужных прав).
func isPermissionSignal(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusForbidden {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED")
}
