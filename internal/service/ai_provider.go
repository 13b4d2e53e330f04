package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio-server/internal/config"
	"portfolio-server/internal/model"
)

// Системная инструкция модели. Ответ обязан быть JSON с парой title+story;
// модель не должна опознавать людей на снимке.
const storySystemPrompt = `You are a creative writer for a photo portfolio.
Look at the provided photograph and write an evocative short story inspired by it.
Do not attempt to identify any person in the photograph.
The story must be between 1500 and 2000 characters long.
Also invent a short, punchy title (a few words).
Respond with valid JSON only, no markdown, in the shape:
{"title": "...", "story": "..."}`

// Заготовки деградации. Контракт провайдера: история возвращается всегда,
// даже когда вызов провалился окончательно.
const (
	rawFallbackTitle   = "ANALYSIS RESULT (RAW)"
	pendingTitle       = "ANALYSIS PENDING"
	quotaExceededStory = "The analysis service is busy right now. The image is saved; run the analysis again later."
	providerFailStory  = "Automatic analysis failed for this image. The image is saved; you can write the story manually."
)

// AIStoryProvider получает историю от мультимодальной модели через AIClient.
// Все невосстановимые исходы преобразуются в пригодный для показа placeholder,
// а характер сбоя передается меткой-ошибкой.
type AIStoryProvider struct {
	client     AIClient
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewAIStoryProvider создает AI-провайдер историй.
func NewAIStoryProvider(client AIClient, cfg *config.Config, logger *zap.Logger) *AIStoryProvider {
	return &AIStoryProvider{
		client:     client,
		maxRetries: cfg.AIMaxRetries,
		baseDelay:  cfg.AIBaseRetryDelay,
		logger:     logger.Named("AIStoryProvider"),
	}
}

// Generate запрашивает историю для изображения. Возвращаемая ошибка - только
// метка (model.ErrQuotaExceeded или model.ErrProvider); история пригодна
// для показа при любом исходе.
func (p *AIStoryProvider) Generate(ctx context.Context, encodedImage string) (model.Story, error) {
	raw, err := withRetries(ctx, p.logger, p.maxRetries, p.baseDelay, func() (string, error) {
		return p.client.GenerateStoryText(ctx, storySystemPrompt, encodedImage)
	})
	if err != nil {
		if errors.Is(err, model.ErrQuotaExceeded) {
			p.logger.Warn("Quota exhausted after retries", zap.Error(err))
			return model.Story{Title: pendingTitle, Story: quotaExceededStory}, model.ErrQuotaExceeded
		}
		p.logger.Error("Story generation failed", zap.Error(err))
		return model.Story{Title: pendingTitle, Story: providerFailStory}, fmt.Errorf("%w: %v", model.ErrProvider, err)
	}

	story, ok := parseStoryResponse(raw)
	if !ok {
		// Модель вернула не-JSON: показываем сырой текст, это не сбой.
		p.logger.Warn("Model response is not valid JSON, using raw text", zap.Int("chars", len(raw)))
		return model.Story{Title: rawFallbackTitle, Story: strings.TrimSpace(raw)}, nil
	}
	return story, nil
}

// RateLimited: внешний API лимитирует частоту, пакетная загрузка обязана
// делать паузы между вызовами.
func (p *AIStoryProvider) RateLimited() bool {
	return true
}

// parseStoryResponse извлекает пару title+story из ответа модели.
// Markdown-ограждения (```json ... ```) срезаются, ключ story допускает
// синоним description.
func parseStoryResponse(raw string) (model.Story, bool) {
	cleaned := stripJSONFence(raw)

	var payload struct {
		Title       string `json:"title"`
		Story       string `json:"story"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return model.Story{}, false
	}

	text := payload.Story
	if text == "" {
		text = payload.Description
	}
	if payload.Title == "" || text == "" {
		return model.Story{}, false
	}
	return model.Story{Title: payload.Title, Story: text}, true
}

// stripJSONFence удаляет markdown-ограждение вокруг JSON, если оно есть.
func stripJSONFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
