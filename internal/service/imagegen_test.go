package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-server/internal/mocks"
	"portfolio-server/internal/model"
	"portfolio-server/internal/service"
)

func TestSynthesizeReturnsDataURL(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateImage", mock.Anything, "a calm lake", "1792x1024").
		Return("QUJD", nil).Once()

	s := service.NewImageSynthesizer(client, zap.NewNop())
	dataURL, err := s.Synthesize(context.Background(), "a calm lake", "16:9", "")

	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,QUJD", dataURL)
	client.AssertExpectations(t)
}

func TestSynthesizeUsesEditEndpointWithReference(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("EditImage", mock.Anything, "same scene at night", testImage, "1024x1024").
		Return("QUJD", nil).Once()

	s := service.NewImageSynthesizer(client, zap.NewNop())
	_, err := s.Synthesize(context.Background(), "same scene at night", "1:1", testImage)

	require.NoError(t, err)
	client.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSynthesizeMapsPermissionDenied(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateImage", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("googleapi: Error 403: PERMISSION_DENIED")).Once()

	s := service.NewImageSynthesizer(client, zap.NewNop())
	_, err := s.Synthesize(context.Background(), "prompt", "1:1", "")

	assert.ErrorIs(t, err, service.ErrImageSynthesisDenied)
}

func TestSynthesizeMapsQuota(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateImage", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("429 RESOURCE_EXHAUSTED")).Once()

	s := service.NewImageSynthesizer(client, zap.NewNop())
	_, err := s.Synthesize(context.Background(), "prompt", "1:1", "")

	assert.ErrorIs(t, err, model.ErrQuotaExceeded)
}

func TestSynthesizeRejectsEmptyPrompt(t *testing.T) {
	s := service.NewImageSynthesizer(mocks.NewMockAIClient(t), zap.NewNop())
	_, err := s.Synthesize(context.Background(), "   ", "1:1", "")
	assert.ErrorIs(t, err, model.ErrProvider)
}
