package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio-server/internal/model"
	"portfolio-server/internal/store"
)

// document - формат файла кэша на диске.
type document struct {
	Slots  []model.Slot `json:"slots"`
	Visits int64        `json:"visits"`
}

// LocalCache хранит снимок коллекции и счетчик посещений в JSON-файле.
// Записи дебаунсятся: серия быстрых мутаций схлопывается в одну запись на
// диск. Кэш вспомогательный, все ошибки записи только логируются.
type LocalCache struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	timer  *time.Timer
	slots  []model.Slot
	visits int64
}

// NewLocalCache создает кэш по заданному пути.
func NewLocalCache(path string, debounce time.Duration, logger *zap.Logger) *LocalCache {
	return &LocalCache{
		path:     path,
		debounce: debounce,
		logger:   logger.Named("LocalCache"),
	}
}

// Load читает снимок с диска. Отсутствие файла не ошибка: возвращается
// nil и вызывающий использует дефолты.
func (c *LocalCache) Load() ([]model.Slot, error) {
	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.logger.Warn("Cache file is corrupted, ignoring", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.visits = doc.Visits
	c.slots = store.Reframe(doc.Slots)
	snapshot := c.slots
	c.mu.Unlock()

	c.logger.Info("Cache loaded", zap.String("path", c.path), zap.Int64("visits", doc.Visits))
	return snapshot, nil
}

// Store запоминает новый снимок и планирует отложенную запись на диск.
func (c *LocalCache) Store(slots []model.Slot) {
	c.mu.Lock()
	c.slots = slots
	c.schedule()
	c.mu.Unlock()
}

// RecordVisit увеличивает счетчик посещений и возвращает новое значение.
func (c *LocalCache) RecordVisit() int64 {
	c.mu.Lock()
	c.visits++
	visits := c.visits
	c.schedule()
	c.mu.Unlock()
	return visits
}

// Visits возвращает текущее значение счетчика посещений.
func (c *LocalCache) Visits() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visits
}

// Flush немедленно записывает отложенный снимок (вызывается при остановке).
func (c *LocalCache) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	doc := document{Slots: c.slots, Visits: c.visits}
	c.mu.Unlock()
	c.write(doc)
}

// schedule взводит (или перевзводит) таймер отложенной записи.
// Вызывается под c.mu.
func (c *LocalCache) schedule() {
	if c.timer != nil {
		c.timer.Reset(c.debounce)
		return
	}
	c.timer = time.AfterFunc(c.debounce, c.flushPending)
}

func (c *LocalCache) flushPending() {
	c.mu.Lock()
	c.timer = nil
	doc := document{Slots: c.slots, Visits: c.visits}
	c.mu.Unlock()
	c.write(doc)
}

// write пишет документ на диск best-effort.
func (c *LocalCache) write(doc document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		c.logger.Error("Failed to marshal cache document", zap.Error(err))
		return
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.logger.Error("Failed to create cache directory", zap.Error(err))
			return
		}
	}

	// Пишем во временный файл и переименовываем, чтобы читатель никогда
	// не увидел полузаписанный JSON.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		c.logger.Error("Failed to write cache file", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.logger.Error("Failed to replace cache file", zap.Error(err))
		return
	}

	c.logger.Debug("Cache written", zap.Int("bytes", len(payload)))
}
