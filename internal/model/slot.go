package model

import "encoding/json"

// TotalSlots - фиксированный размер коллекции. Слоты никогда не добавляются
// и не удаляются, меняется только их содержимое.
const TotalSlots = 50

// Story представляет текстовую пару, привязанную к заполненному слоту.
// Поле Story содержит длинное описание (prompt), Title - короткий заголовок.
type Story struct {
	Title string `json:"title"`
	Story string `json:"story"`
}

// Slot - одна позиция портфолио. JSON-имена совпадают с документом в общем
// хранилище, поэтому старые данные читаются без миграции.
type Slot struct {
	ID        int    `json:"id"`
	ImageData string `json:"imageData,omitempty"` // data:image/jpeg;base64,... либо пусто
	Story     string `json:"story,omitempty"`     // сериализованная Story либо пусто
	Pending   bool   `json:"isLoading"`
	Failure   string `json:"error,omitempty"`
}

// IsEmpty reports whether the slot holds no image.
func (s Slot) IsEmpty() bool {
	return s.ImageData == ""
}

// EmptySlot возвращает пустой слот с указанным id (все остальные поля сброшены).
func EmptySlot(id int) Slot {
	return Slot{ID: id}
}

// NewFrame создает стартовую коллекцию: ровно TotalSlots пустых слотов, ids 1..N.
func NewFrame() []Slot {
	slots := make([]Slot, TotalSlots)
	for i := range slots {
		slots[i] = EmptySlot(i + 1)
	}
	return slots
}

// EncodeStory serializes a story pair into the single text blob stored on the slot.
func EncodeStory(story Story) string {
	data, err := json.Marshal(story)
	if err != nil {
		// Story состоит из двух строк, маршалинг не может упасть.
		return ""
	}
	return string(data)
}

// ParseStory decodes the stored blob back into a pair. ok=false when the slot
// carries no story or the blob is corrupted.
func ParseStory(blob string) (Story, bool) {
	if blob == "" {
		return Story{}, false
	}
	var story Story
	if err := json.Unmarshal([]byte(blob), &story); err != nil {
		return Story{}, false
	}
	return story, true
}
