package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-server/internal/config"
	"portfolio-server/internal/mocks"
	"portfolio-server/internal/model"
	"portfolio-server/internal/service"
)

const testImage = "data:image/jpeg;base64,AAAA"

func newTestProvider(t *testing.T, client *mocks.MockAIClient) *service.AIStoryProvider {
	t.Helper()
	cfg := &config.Config{
		AIMaxRetries:     3,
		AIBaseRetryDelay: time.Millisecond,
	}
	return service.NewAIStoryProvider(client, cfg, zap.NewNop())
}

func TestGenerateParsesModelJSON(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateStoryText", mock.Anything, mock.Anything, testImage).
		Return(`{"title":"Dusk","story":"A long story about light."}`, nil).Once()

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	require.NoError(t, err)
	assert.Equal(t, "Dusk", story.Title)
	assert.Equal(t, "A long story about light.", story.Story)
	client.AssertExpectations(t)
}

func TestGenerateStripsMarkdownFence(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return("```json\n{\"title\":\"T\",\"story\":\"S\"}\n```", nil).Once()

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	require.NoError(t, err)
	assert.Equal(t, "T", story.Title)
	assert.Equal(t, "S", story.Story)
}

func TestGenerateAcceptsDescriptionKey(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"title":"T","description":"from synonym key"}`, nil).Once()

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	require.NoError(t, err)
	assert.Equal(t, "from synonym key", story.Story)
}

func TestGenerateFallsBackToRawText(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return("  The model ignored the JSON instruction entirely.  ", nil).Once()

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	// Не-JSON ответ не считается сбоем: показываем сырой текст
	require.NoError(t, err)
	assert.Equal(t, "ANALYSIS RESULT (RAW)", story.Title)
	assert.Equal(t, "The model ignored the JSON instruction entirely.", story.Story)
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	rateLimit := errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return("", rateLimit).Twice()
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"title":"T","story":"S"}`, nil).Once()

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	require.NoError(t, err)
	assert.Equal(t, "T", story.Title)
	client.AssertExpectations(t)
}

func TestGenerateQuotaExhaustion(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	rateLimit := errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return("", rateLimit)

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	// Ошибка - только метка, история пригодна для показа
	assert.ErrorIs(t, err, model.ErrQuotaExceeded)
	assert.Equal(t, "ANALYSIS PENDING", story.Title)
	assert.NotEmpty(t, story.Story)

	// Первая попытка плюс три ретрая
	client.AssertNumberOfCalls(t, "GenerateStoryText", 4)
}

func TestGenerateDoesNotRetryFatalErrors(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateStoryText", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("400 invalid request"))

	provider := newTestProvider(t, client)
	story, err := provider.Generate(context.Background(), testImage)

	assert.ErrorIs(t, err, model.ErrProvider)
	assert.NotEmpty(t, story.Story)
	client.AssertNumberOfCalls(t, "GenerateStoryText", 1)
}

func TestAIProviderIsRateLimited(t *testing.T) {
	provider := newTestProvider(t, mocks.NewMockAIClient(t))
	assert.True(t, provider.RateLimited())
}

func TestManualProviderReturnsPlaceholderInstantly(t *testing.T) {
	provider := service.NewManualStoryProvider()

	story, err := provider.Generate(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, "JUDUL BARU", story.Title)
	assert.Equal(t, "Tulis deskripsi prompt manual disini...", story.Story)
	assert.False(t, provider.RateLimited())
}
