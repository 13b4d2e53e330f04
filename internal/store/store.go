package store

import (
	"sync"

	"go.uber.org/zap"

	"portfolio-server/internal/model"
)

// Listener вызывается после каждой мутации с полной копией коллекции.
// Слушатели регистрируются один раз при старте (кэш, websocket-рассылка).
type Listener func(slots []model.Slot)

// SlotStore - единственный источник истины для сетки портфолио: ровно
// model.TotalSlots слотов, ids 1..N. Все мутации выполняются заменой
// целой записи (copy-on-write), чтобы слушатели никогда не видели
// частично обновленный слот.
type SlotStore struct {
	mu        sync.RWMutex
	slots     []model.Slot
	listeners []Listener
	logger    *zap.Logger
}

// NewSlotStore создает хранилище, заполненное пустыми слотами.
func NewSlotStore(logger *zap.Logger) *SlotStore {
	return &SlotStore{
		slots:  model.NewFrame(),
		logger: logger.Named("SlotStore"),
	}
}

// Subscribe регистрирует слушателя изменений. Не потокобезопасно
// относительно мутаций - вызывается только при старте, до запуска сервера.
func (s *SlotStore) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Snapshot возвращает копию всей коллекции.
func (s *SlotStore) Snapshot() []model.Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copySlots()
}

// Get возвращает копию слота по id.
func (s *SlotStore) Get(id int) (model.Slot, error) {
	if !validID(id) {
		return model.Slot{}, model.ErrSlotNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[id-1], nil
}

// EmptySlotIDs возвращает ids пустых слотов по возрастанию.
func (s *SlotStore) EmptySlotIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.IsEmpty() {
			ids = append(ids, slot.ID)
		}
	}
	return ids
}

// SetUploaded записывает изображение вместе с готовой историей
// (единственный шаг ручного пути загрузки).
func (s *SlotStore) SetUploaded(id int, imageData string, story model.Story) error {
	return s.replace(id, model.Slot{
		ID:        id,
		ImageData: imageData,
		Story:     model.EncodeStory(story),
	})
}

// BeginStory выполняет оптимистичную фазу двухфазного обновления:
// изображение становится видимым сразу, pending=true до прихода истории.
func (s *SlotStore) BeginStory(id int, imageData string) error {
	return s.replace(id, model.Slot{
		ID:        id,
		ImageData: imageData,
		Pending:   true,
	})
}

// FinishStory завершает двухфазное обновление одной заменой записи:
// pending снимается всегда, история записывается, failure либо пуст
// (успех), либо содержит сообщение последней ошибки. Pending и failure
// взаимоисключающие по инварианту, поэтому оба исхода проходят через
// одну и ту же запись.
func (s *SlotStore) FinishStory(id int, story model.Story, failure string) error {
	if !validID(id) {
		return model.ErrSlotNotFound
	}
	s.mu.Lock()
	current := s.slots[id-1]
	if current.IsEmpty() {
		s.mu.Unlock()
		return model.ErrSlotEmpty
	}
	s.slots[id-1] = model.Slot{
		ID:        id,
		ImageData: current.ImageData,
		Story:     model.EncodeStory(story),
		Failure:   failure,
	}
	snapshot := s.copySlots()
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

// UpdateStory атомарно заменяет пару title+description заполненного слота.
// Частичные обновления запрещены - вызывающий всегда передает пару целиком.
func (s *SlotStore) UpdateStory(id int, story model.Story) error {
	if !validID(id) {
		return model.ErrSlotNotFound
	}
	s.mu.Lock()
	current := s.slots[id-1]
	if current.IsEmpty() {
		s.mu.Unlock()
		return model.ErrSlotEmpty
	}
	s.slots[id-1] = model.Slot{
		ID:        id,
		ImageData: current.ImageData,
		Story:     model.EncodeStory(story),
	}
	snapshot := s.copySlots()
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

// Delete сбрасывает слот в пустое состояние. Идемпотентна: удаление уже
// пустого слота ничего не меняет и не уведомляет слушателей.
func (s *SlotStore) Delete(id int) error {
	if !validID(id) {
		return model.ErrSlotNotFound
	}
	s.mu.Lock()
	if s.slots[id-1].IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	s.slots[id-1] = model.EmptySlot(id)
	snapshot := s.copySlots()
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

// Reset сбрасывает всю коллекцию в пустую рамку.
func (s *SlotStore) Reset() {
	s.mu.Lock()
	s.slots = model.NewFrame()
	snapshot := s.copySlots()
	s.mu.Unlock()
	s.notify(snapshot)
	s.logger.Info("Store reset to empty frame")
}

// ReplaceAll заменяет коллекцию целиком (гидратация из кэша или из общего
// хранилища). Вход нормализуется к жесткой рамке: отсутствующие ids
// заполняются пустыми слотами, лишние записи отбрасываются, транзитные
// флаги (pending/failure) с провода не переносятся.
func (s *SlotStore) ReplaceAll(slots []model.Slot) {
	framed := Reframe(slots)
	s.mu.Lock()
	s.slots = framed
	snapshot := s.copySlots()
	s.mu.Unlock()
	s.notify(snapshot)
}

// Reframe нормализует произвольный набор слотов к рамке ровно из
// model.TotalSlots записей с ids 1..N.
func Reframe(slots []model.Slot) []model.Slot {
	framed := model.NewFrame()
	for _, slot := range slots {
		if !validID(slot.ID) {
			continue
		}
		framed[slot.ID-1] = model.Slot{
			ID:        slot.ID,
			ImageData: slot.ImageData,
			Story:     slot.Story,
		}
	}
	return framed
}

func (s *SlotStore) replace(id int, slot model.Slot) error {
	if !validID(id) {
		return model.ErrSlotNotFound
	}
	s.mu.Lock()
	s.slots[id-1] = slot
	snapshot := s.copySlots()
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

func (s *SlotStore) copySlots() []model.Slot {
	out := make([]model.Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s *SlotStore) notify(snapshot []model.Slot) {
	for _, l := range s.listeners {
		l(snapshot)
	}
}

func validID(id int) bool {
	return id >= 1 && id <= model.TotalSlots
}
