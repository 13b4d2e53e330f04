package service

import (
	"context"

	"portfolio-server/internal/model"
)

// StoryProvider - способность получить текстовую пару для закодированного
// изображения. Контракт: Generate ВСЕГДА возвращает пригодную для показа
// историю; при невосстановимой ошибке вместо паники/ошибки возвращается
// placeholder, а сопутствующая ошибка (model.ErrQuotaExceeded или
// model.ErrProvider) служит только меткой для слота и сообщений UI.
type StoryProvider interface {
	Generate(ctx context.Context, encodedImage string) (model.Story, error)
	// RateLimited сообщает, лимитирует ли внешний сервис частоту вызовов.
	// Координатор пакетной загрузки делает паузы только для таких провайдеров.
	RateLimited() bool
}

// Текст ручного заполнения (совместим с историческими данными портфолио).
const (
	manualTitle = "JUDUL BARU"
	manualStory = "Tulis deskripsi prompt manual disini..."
)

// ManualStoryProvider возвращает фиксированную заготовку мгновенно и без I/O.
// Используется в режиме ручного заполнения, когда админ пишет prompt сам.
type ManualStoryProvider struct{}

// NewManualStoryProvider создает провайдер ручного режима.
func NewManualStoryProvider() *ManualStoryProvider {
	return &ManualStoryProvider{}
}

// Generate возвращает заготовку. Ошибки невозможны.
func (p *ManualStoryProvider) Generate(_ context.Context, _ string) (model.Story, error) {
	return model.Story{Title: manualTitle, Story: manualStory}, nil
}

// RateLimited: ручной режим не ходит во внешние сервисы.
func (p *ManualStoryProvider) RateLimited() bool {
	return false
}
