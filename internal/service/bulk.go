package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolio-server/internal/imaging"
	"portfolio-server/internal/model"
	"portfolio-server/internal/store"
)

// BatchResult - сводка по завершенному пакету загрузки.
type BatchResult struct {
	BatchID   string `json:"batchId"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Pipeline связывает преобразование изображения, провайдер историй и
// хранилище слотов в единый конвейер загрузки. Один и тот же путь
// обслуживает и одиночную загрузку, и пакетную.
type Pipeline struct {
	store         *store.SlotStore
	transformer   *imaging.Transformer
	provider      StoryProvider
	itemDelay     time.Duration
	batchInFlight atomic.Bool
	logger        *zap.Logger
}

// NewPipeline создает конвейер загрузки.
func NewPipeline(st *store.SlotStore, tr *imaging.Transformer, provider StoryProvider, itemDelay time.Duration, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:       st,
		transformer: tr,
		provider:    provider,
		itemDelay:   itemDelay,
		logger:      logger.Named("Pipeline"),
	}
}

// ProcessOne прогоняет один файл через конвейер для конкретного слота.
// Порядок фаз жесткий: преобразование (сбой не трогает слот), затем
// оптимистичная публикация картинки, затем история. Провайдер по контракту
// всегда возвращает пригодную историю, поэтому вторая фаза завершается
// при любом исходе; сбой провайдера остается в слоте как метка failure.
func (p *Pipeline) ProcessOne(ctx context.Context, slotID int, raw []byte) error {
	encoded, err := p.transformer.Transform(ctx, raw)
	if err != nil {
		return err
	}

	if err := p.store.BeginStory(slotID, encoded); err != nil {
		return err
	}

	story, genErr := p.provider.Generate(ctx, encoded)
	failure := ""
	if genErr != nil {
		failure = failureLabel(genErr)
	}
	if err := p.store.FinishStory(slotID, story, failure); err != nil {
		return err
	}

	p.logger.Info("Slot processed",
		zap.Int("slot_id", slotID),
		zap.Bool("story_failed", genErr != nil),
	)
	return nil
}

// UploadOne обслуживает одиночную загрузку: преобразование и оптимистичная
// публикация картинки выполняются синхронно (ошибки кодирования доходят до
// клиента), история дописывается в фоне и доезжает до зрителей рассылкой.
func (p *Pipeline) UploadOne(ctx context.Context, slotID int, raw []byte) (model.Slot, error) {
	encoded, err := p.transformer.Transform(ctx, raw)
	if err != nil {
		return model.Slot{}, err
	}
	if err := p.store.BeginStory(slotID, encoded); err != nil {
		return model.Slot{}, err
	}

	// Генерация отвязана от контекста запроса: клиент получает ответ сразу,
	// история приходит позже.
	go func() {
		story, genErr := p.provider.Generate(context.Background(), encoded)
		failure := ""
		if genErr != nil {
			failure = failureLabel(genErr)
		}
		if err := p.store.FinishStory(slotID, story, failure); err != nil {
			p.logger.Warn("Slot changed while story was pending", zap.Int("slot_id", slotID), zap.Error(err))
		}
	}()

	slot, err := p.store.Get(slotID)
	if err != nil {
		return model.Slot{}, err
	}
	return slot, nil
}

// StartBatch запускает пакетную загрузку в фоне и сразу возвращает id пакета.
// Одновременно выполняется не больше одного пакета.
func (p *Pipeline) StartBatch(files [][]byte) (string, error) {
	if !p.batchInFlight.CompareAndSwap(false, true) {
		return "", model.ErrBatchInFlight
	}

	batchID := uuid.New().String()
	go func() {
		defer p.batchInFlight.Store(false)
		p.runBatch(context.Background(), batchID, files)
	}()
	return batchID, nil
}

// ProcessBatch выполняет пакет синхронно. Семантика та же, что у StartBatch.
func (p *Pipeline) ProcessBatch(ctx context.Context, files [][]byte) (BatchResult, error) {
	if !p.batchInFlight.CompareAndSwap(false, true) {
		return BatchResult{}, model.ErrBatchInFlight
	}
	defer p.batchInFlight.Store(false)
	return p.runBatch(ctx, uuid.New().String(), files), nil
}

// runBatch распределяет файлы по пустым слотам в порядке возрастания id
// и обрабатывает их строго последовательно. Файлы сверх числа пустых
// слотов пропускаются. Ошибка кодирования одного файла не прерывает пакет:
// слот остается нетронутым, файл учитывается как failed.
func (p *Pipeline) runBatch(ctx context.Context, batchID string, files [][]byte) BatchResult {
	result := BatchResult{BatchID: batchID}
	emptyIDs := p.store.EmptySlotIDs()

	if len(files) > len(emptyIDs) {
		result.Skipped = len(files) - len(emptyIDs)
		files = files[:len(emptyIDs)]
	}

	p.logger.Info("Batch started",
		zap.String("batch_id", result.BatchID),
		zap.Int("files", len(files)),
		zap.Int("empty_slots", len(emptyIDs)),
		zap.Int("skipped", result.Skipped),
	)
	startTime := time.Now()

itemLoop:
	for i, raw := range files {
		if err := ctx.Err(); err != nil {
			// Контекст пакета отменен: оставшиеся файлы считаем пропущенными.
			result.Skipped += len(files) - i
			break
		}

		// Пауза между обращениями к лимитируемому провайдеру. Перед первым
		// элементом паузы нет; кодирование пауз не требует.
		if i > 0 && p.provider.RateLimited() && p.itemDelay > 0 {
			select {
			case <-ctx.Done():
				result.Skipped += len(files) - i
				break itemLoop
			case <-time.After(p.itemDelay):
			}
		}

		slotID := emptyIDs[i]
		if err := p.ProcessOne(ctx, slotID, raw); err != nil {
			result.Failed++
			p.logger.Warn("Batch item failed",
				zap.String("batch_id", result.BatchID),
				zap.Int("slot_id", slotID),
				zap.Error(err),
			)
			continue
		}
		result.Processed++
	}

	MetricsAddBatchItems("processed", result.Processed)
	MetricsAddBatchItems("failed", result.Failed)
	MetricsAddBatchItems("skipped", result.Skipped)
	MetricsRecordBatchDuration(time.Since(startTime))

	p.logger.Info("Batch finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", time.Since(startTime)),
	)
	return result
}

// BatchInFlight сообщает, идет ли сейчас пакетная загрузка.
func (p *Pipeline) BatchInFlight() bool {
	return p.batchInFlight.Load()
}

// failureLabel переводит метку-ошибку провайдера в короткое сообщение
// для поля failure слота.
func failureLabel(err error) string {
	switch {
	case errors.Is(err, model.ErrQuotaExceeded):
		return "AI quota exceeded, story analysis postponed"
	default:
		return "AI story analysis failed"
	}
}
