package api

import (
	"crypto/subtle"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"portfolio-server/internal/cache"
	"portfolio-server/internal/model"
	"portfolio-server/internal/service"
	"portfolio-server/internal/store"
	"portfolio-server/internal/syncgw"
)

// Лимит на размер одного загружаемого файла.
const maxUploadBytes = 20 << 20 // 20 MiB

// Handler обрабатывает HTTP запросы API галереи.
type Handler struct {
	store       *store.SlotStore
	pipeline    *service.Pipeline
	synthesizer *service.ImageSynthesizer
	gateway     *syncgw.Gateway
	cache       *cache.LocalCache
	hub         *Hub
	adminUser   string
	adminPass   string
	logger      *zap.Logger
}

// NewHandler создает обработчик API.
// synthesizer может быть nil (режим manual без AI ключа).
func NewHandler(
	st *store.SlotStore,
	pipeline *service.Pipeline,
	synthesizer *service.ImageSynthesizer,
	gateway *syncgw.Gateway,
	localCache *cache.LocalCache,
	hub *Hub,
	adminUser, adminPass string,
	logger *zap.Logger,
) *Handler {
	if st == nil || pipeline == nil || gateway == nil || localCache == nil || hub == nil {
		log.Fatal().Msg("nil dependency for API Handler")
	}
	return &Handler{
		store:       st,
		pipeline:    pipeline,
		synthesizer: synthesizer,
		gateway:     gateway,
		cache:       localCache,
		hub:         hub,
		adminUser:   adminUser,
		adminPass:   adminPass,
		logger:      logger.Named("APIHandler"),
	}
}

// --- Public endpoints ---

// GetSlots возвращает снимок всей коллекции.
// GET /api/v1/slots
func (h *Handler) GetSlots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slots": h.store.Snapshot()})
}

// HandleWS апгрейдит соединение для live-обновлений галереи.
// GET /api/v1/ws
func (h *Handler) HandleWS(c *gin.Context) {
	h.hub.Handle(c.Writer, c.Request)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login проверяет пару логин/пароль администратора.
// POST /api/v1/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminPass)) == 1
	if !userOK || !passOK {
		h.logger.Warn("Failed login attempt", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetStats возвращает счетчик посещений и оценку числа зрителей онлайн.
// Каждый вызов считается одним посещением страницы.
// GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	visits := h.cache.RecordVisit()

	// Реальные websocket-подключения плюс декоративная добавка,
	// исторически показываемая в шапке галереи (12..85).
	online := h.hub.ClientCount() + 12 + rand.Intn(74)

	c.JSON(http.StatusOK, gin.H{
		"visits": visits,
		"online": online,
	})
}

// --- Admin endpoints ---

// UploadImage принимает файл для конкретного слота, отвечает сразу после
// публикации картинки; история дописывается в фоне.
// POST /api/v1/slots/:id/image
func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := slotID(c)
	if !ok {
		return
	}

	raw, ok := readUpload(c, "image")
	if !ok {
		return
	}

	slot, err := h.pipeline.UploadOne(c.Request.Context(), id, raw)
	if err != nil {
		if errors.Is(err, model.ErrEncoding) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported or corrupted image file"})
			return
		}
		if errors.Is(err, model.ErrSlotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
			return
		}
		h.logger.Error("Upload failed", zap.Int("slot_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"slot": slot})
}

type updateStoryRequest struct {
	Title string `json:"title" binding:"required"`
	Story string `json:"story" binding:"required"`
}

// UpdateStory заменяет пару заголовок+история заполненного слота.
// PUT /api/v1/slots/:id/story
func (h *Handler) UpdateStory(c *gin.Context) {
	id, ok := slotID(c)
	if !ok {
		return
	}

	var req updateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	err := h.store.UpdateStory(id, model.Story{Title: req.Title, Story: req.Story})
	if err != nil {
		if errors.Is(err, model.ErrSlotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
			return
		}
		if errors.Is(err, model.ErrSlotEmpty) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slot is empty, upload an image first"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update story"})
		return
	}

	slot, _ := h.store.Get(id)
	c.JSON(http.StatusOK, gin.H{"slot": slot})
}

// DeleteSlot сбрасывает слот в пустое состояние. Идемпотентен.
// DELETE /api/v1/slots/:id
func (h *Handler) DeleteSlot(c *gin.Context) {
	id, ok := slotID(c)
	if !ok {
		return
	}

	if err := h.store.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetSlots очищает всю коллекцию.
// POST /api/v1/slots/reset
func (h *Handler) ResetSlots(c *gin.Context) {
	h.store.Reset()
	c.JSON(http.StatusOK, gin.H{"slots": h.store.Snapshot()})
}

// BulkUpload принимает multipart-набор файлов и запускает пакетную
// обработку в фоне. Прогресс виден через live-обновления галереи.
// POST /api/v1/uploads/bulk
func (h *Handler) BulkUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	fileHeaders := form.File["images"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files in 'images' field"})
		return
	}

	files := make([][]byte, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large: " + fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file: " + fh.Filename})
			return
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file: " + fh.Filename})
			return
		}
		files = append(files, raw)
	}

	batchID, err := h.pipeline.StartBatch(files)
	if err != nil {
		if errors.Is(err, model.ErrBatchInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "Bulk upload already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start bulk upload"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"batchId": batchID, "files": len(files)})
}

// Sync записывает текущую коллекцию в общее хранилище.
// POST /api/v1/sync
func (h *Handler) Sync(c *gin.Context) {
	err := h.gateway.Save(c.Request.Context(), h.store.Snapshot())
	if err != nil {
		if errors.Is(err, model.ErrSyncInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress"})
			return
		}
		h.logger.Error("Sync failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Shared store write failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type generateImageRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	AspectRatio    string `json:"aspectRatio"`
	ReferenceImage string `json:"referenceImage"` // data URL, опционально
}

// GenerateImage синтезирует изображение по текстовому описанию.
// POST /api/v1/images/generate
func (h *Handler) GenerateImage(c *gin.Context) {
	if h.synthesizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI image synthesis is disabled"})
		return
	}

	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	dataURL, err := h.synthesizer.Synthesize(c.Request.Context(), req.Prompt, req.AspectRatio, req.ReferenceImage)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageSynthesisDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, model.ErrQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Image synthesis quota exceeded, try again later"})
		default:
			h.logger.Error("Image synthesis failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Image synthesis failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageData": dataURL})
}

// --- helpers ---

// slotID извлекает и валидирует параметр :id. При ошибке сам пишет ответ.
func slotID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 || id > model.TotalSlots {
		c.JSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		return 0, false
	}
	return id, true
}

// readUpload читает один файл из multipart-формы либо, если форма не
// прислана, сырое тело запроса. При ошибке сам пишет ответ.
func readUpload(c *gin.Context, field string) ([]byte, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		if !strings.HasPrefix(c.ContentType(), "multipart/") {
			raw, readErr := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes+1))
			if readErr != nil || len(raw) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Empty request body"})
				return nil, false
			}
			if len(raw) > maxUploadBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
				return nil, false
			}
			return raw, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file field '" + field + "'"})
		return nil, false
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return nil, false
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return nil, false
	}
	return raw, true
}
