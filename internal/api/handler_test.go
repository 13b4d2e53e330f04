package api_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-server/internal/api"
	"portfolio-server/internal/cache"
	"portfolio-server/internal/config"
	"portfolio-server/internal/imaging"
	"portfolio-server/internal/model"
	"portfolio-server/internal/service"
	"portfolio-server/internal/store"
	"portfolio-server/internal/syncgw"
)

const (
	testAdminUser = "admin"
	testAdminPass = "secret-password"
)

type testEnv struct {
	router *gin.Engine
	store  *store.SlotStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	st := store.NewSlotStore(logger)
	localCache := cache.NewLocalCache(filepath.Join(t.TempDir(), "portfolio.json"), time.Hour, logger)
	hub := api.NewHub(logger)
	hub.Start()

	tr := imaging.NewTransformer(800, 70, logger)
	pipeline := service.NewPipeline(st, tr, service.NewManualStoryProvider(), 0, logger)

	gateway := syncgw.NewGateway(&config.Config{
		RedisAddr:   "localhost:6379",
		SyncKey:     "test/slots",
		SyncChannel: "test/updates",
	}, logger)
	t.Cleanup(func() { gateway.Close() })

	handler := api.NewHandler(st, pipeline, nil, gateway, localCache, hub, testAdminUser, testAdminPass, logger)
	return &testEnv{
		router: api.NewRouter(handler, testAdminPass, logger),
		store:  st,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, admin bool, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if admin {
		req.Header.Set("X-Admin-Password", testAdminPass)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartImage(t *testing.T, field string) ([]byte, string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body.Bytes(), writer.FormDataContentType()
}

func TestGetSlotsReturnsFullFrame(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/slots", nil, false, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Slots []model.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Slots, model.TotalSlots)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"username":"admin","password":"secret-password"}`)
	rec := env.do(t, http.MethodPost, "/api/v1/login", body, false, "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)

	body = []byte(`{"username":"admin","password":"wrong"}`)
	rec = env.do(t, http.MethodPost, "/api/v1/login", body, false, "application/json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/login", []byte(`{}`), false, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequirePassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/v1/slots/1", nil, false, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/slots/reset", nil, false, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadImageFillsSlot(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartImage(t, "image")
	rec := env.do(t, http.MethodPost, "/api/v1/slots/5/image", body, true, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)

	slot, err := env.store.Get(5)
	require.NoError(t, err)
	assert.False(t, slot.IsEmpty())
	assert.True(t, strings.HasPrefix(slot.ImageData, "data:image/jpeg;base64,"))

	// История дописывается в фоне
	require.Eventually(t, func() bool {
		slot, _ := env.store.Get(5)
		return slot.Story != "" && !slot.Pending
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUploadImageAcceptsRawBody(t *testing.T) {
	env := newTestEnv(t)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	rec := env.do(t, http.MethodPost, "/api/v1/slots/6/image", pngBuf.Bytes(), true, "image/png")
	require.Equal(t, http.StatusAccepted, rec.Code)

	slot, _ := env.store.Get(6)
	assert.False(t, slot.IsEmpty())
}

func TestUploadImageRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "junk.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte("not an image at all"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := env.do(t, http.MethodPost, "/api/v1/slots/5/image", body.Bytes(), true, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	slot, _ := env.store.Get(5)
	assert.True(t, slot.IsEmpty())
}

func TestUpdateStory(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"title":"New Title","story":"New story text"}`)

	// Пустой слот: конфликт
	rec := env.do(t, http.MethodPut, "/api/v1/slots/2/story", body, true, "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, env.store.SetUploaded(2, "data:image/jpeg;base64,AAAA", model.Story{Title: "old", Story: "old"}))
	rec = env.do(t, http.MethodPut, "/api/v1/slots/2/story", body, true, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	slot, _ := env.store.Get(2)
	parsed, ok := model.ParseStory(slot.Story)
	require.True(t, ok)
	assert.Equal(t, "New Title", parsed.Title)
}

func TestDeleteSlot(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SetUploaded(9, "data:image/jpeg;base64,AAAA", model.Story{Title: "t", Story: "s"}))

	rec := env.do(t, http.MethodDelete, "/api/v1/slots/9", nil, true, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	slot, _ := env.store.Get(9)
	assert.True(t, slot.IsEmpty())

	// Идемпотентность
	rec = env.do(t, http.MethodDelete, "/api/v1/slots/9", nil, true, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSlotIDValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/slots/0", "/api/v1/slots/51", "/api/v1/slots/abc"} {
		rec := env.do(t, http.MethodDelete, path, nil, true, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestResetSlots(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SetUploaded(1, "data:image/jpeg;base64,AAAA", model.Story{Title: "t", Story: "s"}))

	rec := env.do(t, http.MethodPost, "/api/v1/slots/reset", nil, true, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.store.EmptySlotIDs(), model.TotalSlots)
}

func TestBulkUploadValidation(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	rec := env.do(t, http.MethodPost, "/api/v1/uploads/bulk", body.Bytes(), true, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkUploadStartsBatch(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartImage(t, "images")
	rec := env.do(t, http.MethodPost, "/api/v1/uploads/bulk", body, true, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		BatchID string `json:"batchId"`
		Files   int    `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 1, resp.Files)

	require.Eventually(t, func() bool {
		return len(env.store.EmptySlotIDs()) == model.TotalSlots-1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatsCountVisits(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stats", nil, false, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Visits int64 `json:"visits"`
		Online int   `json:"online"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Visits)
	assert.GreaterOrEqual(t, resp.Online, 12)

	rec = env.do(t, http.MethodGet, "/api/v1/stats", nil, false, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp.Visits)
}

func TestGenerateImageDisabledWithoutAI(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"prompt":"a calm lake","aspectRatio":"1:1"}`)
	rec := env.do(t, http.MethodPost, "/api/v1/images/generate", body, true, "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
