package syncgw

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portfolio-server/internal/config"
	"portfolio-server/internal/model"
	"portfolio-server/internal/store"
)

// SnapshotHandler получает коллекцию из общего хранилища. nil означает,
// что данных нет (пустое хранилище или хранилище недоступно) и вызывающий
// должен использовать дефолты.
type SnapshotHandler func(slots []model.Slot)

// Gateway синхронизирует коллекцию слотов через Redis: документ целиком
// лежит под одним ключом, уведомления об изменениях идут через pub/sub.
// Запись выполняется только явно, по команде синхронизации.
type Gateway struct {
	client     *redis.Client
	key        string
	channel    string
	instanceID string
	inFlight   atomic.Bool
	logger     *zap.Logger
}

// NewGateway создает шлюз общего хранилища.
func NewGateway(cfg *config.Config, logger *zap.Logger) *Gateway {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Gateway{
		client:  client,
		key:     cfg.SyncKey,
		channel: cfg.SyncChannel,
		// Метка издателя: свои собственные pub/sub сообщения пропускаются,
		// чтобы не перечитывать только что записанный документ.
		instanceID: uuid.New().String(),
		logger:     logger.Named("SyncGateway"),
	}
}

// Save записывает коллекцию целиком и публикует уведомление. Одновременно
// выполняется не больше одной записи. При любом сбое локальное состояние
// вызывающего не меняется.
func (g *Gateway) Save(ctx context.Context, slots []model.Slot) error {
	if !g.inFlight.CompareAndSwap(false, true) {
		return model.ErrSyncInFlight
	}
	defer g.inFlight.Store(false)

	payload, err := json.Marshal(store.Reframe(slots))
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", model.ErrSyncWrite, err)
	}

	if err := g.client.Set(ctx, g.key, payload, 0).Err(); err != nil {
		g.logger.Error("Failed to write collection to shared store", zap.Error(err))
		return fmt.Errorf("%w: %v", model.ErrSyncWrite, err)
	}

	// Уведомление best-effort: документ уже записан, подписчики при
	// пропуске сообщения догонят состояние при следующем обновлении.
	if err := g.client.Publish(ctx, g.channel, g.instanceID).Err(); err != nil {
		g.logger.Warn("Failed to publish update notification", zap.Error(err))
	}

	g.logger.Info("Collection saved to shared store", zap.Int("bytes", len(payload)))
	return nil
}

// Load читает коллекцию из общего хранилища. Возвращает nil без ошибки,
// если документа еще нет.
func (g *Gateway) Load(ctx context.Context) ([]model.Slot, error) {
	raw, err := g.client.Get(ctx, g.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSyncRead, err)
	}

	var slots []model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		g.logger.Warn("Shared store document is corrupted, ignoring", zap.Error(err))
		return nil, fmt.Errorf("%w: unmarshal: %v", model.ErrSyncRead, err)
	}
	return store.Reframe(slots), nil
}

// Subscribe выполняет первичное чтение и запускает фоновое слежение за
// обновлениями. onSnapshot вызывается сразу с текущим состоянием (nil при
// недоступном или пустом хранилище), затем при каждом чужом обновлении.
// Возвращает функцию остановки слежения.
func (g *Gateway) Subscribe(ctx context.Context, onSnapshot SnapshotHandler) func() {
	slots, err := g.Load(ctx)
	if err != nil {
		g.logger.Warn("Shared store unavailable on startup, falling back to defaults", zap.Error(err))
	}
	onSnapshot(slots)

	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := g.client.Subscribe(subCtx, g.channel)

	go g.watch(subCtx, pubsub, onSnapshot)

	return func() {
		cancel()
		if err := pubsub.Close(); err != nil {
			g.logger.Warn("Failed to close pub/sub subscription", zap.Error(err))
		}
	}
}

// watch перечитывает документ после каждого чужого уведомления.
func (g *Gateway) watch(ctx context.Context, pubsub *redis.PubSub, onSnapshot SnapshotHandler) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == g.instanceID {
				continue
			}
			slots, err := g.Load(ctx)
			if err != nil {
				g.logger.Warn("Failed to reload collection after update notification", zap.Error(err))
				continue
			}
			if slots == nil {
				continue
			}
			g.logger.Info("Remote update received, collection reloaded")
			onSnapshot(slots)
		}
	}
}

// InFlight сообщает, выполняется ли сейчас запись.
func (g *Gateway) InFlight() bool {
	return g.inFlight.Load()
}

// Ping проверяет доступность общего хранилища.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis.
func (g *Gateway) Close() error {
	return g.client.Close()
}
