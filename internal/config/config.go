package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервера портфолио.
type Config struct {
	// Настройки HTTP
	HTTPPort    string `envconfig:"HTTP_PORT" default:":8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9091"`

	// Настройки администратора
	AdminUser string `envconfig:"ADMIN_USER" default:"admin"`
	// Секретное поле БЕЗ envconfig тега
	AdminPassword string

	// Выбор провайдера историй: manual или ai
	StoryProvider string `envconfig:"STORY_PROVIDER" default:"manual"`

	// Настройки AI (OpenAI-совместимый endpoint)
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	AIModel          string        `envconfig:"AI_MODEL" default:"gemini-2.5-flash"`
	AIImageModel     string        `envconfig:"AI_IMAGE_MODEL" default:"gemini-2.5-flash-image"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxRetries     int           `envconfig:"AI_MAX_RETRIES" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"2s"`
	// Секретное поле БЕЗ envconfig тега; обязателен только при STORY_PROVIDER=ai
	AIAPIKey string

	// Пауза между элементами пакетной загрузки (только если провайдер лимитируется)
	BulkItemDelay time.Duration `envconfig:"BULK_ITEM_DELAY" default:"5s"`

	// Настройки Redis (общее хранилище)
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Секрет, может быть пустым для локального Redis
	RedisPassword string

	// Ключ документа и канал уведомлений в общем хранилище
	SyncKey     string `envconfig:"SYNC_KEY" default:"portfolio/slots"`
	SyncChannel string `envconfig:"SYNC_CHANNEL" default:"portfolio/updates"`

	// Локальный кэш
	CachePath     string        `envconfig:"CACHE_PATH" default:"./data/portfolio.json"`
	CacheDebounce time.Duration `envconfig:"CACHE_DEBOUNCE" default:"500ms"`

	// Преобразование изображений
	ImageMaxDimension int `envconfig:"IMAGE_MAX_DIMENSION" default:"800"`
	ImageJPEGQuality  int `envconfig:"IMAGE_JPEG_QUALITY" default:"70"`

	// Логирование
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	provider := strings.ToLower(cfg.StoryProvider)
	if provider != "manual" && provider != "ai" {
		return nil, fmt.Errorf("неизвестный провайдер историй: '%s' (ожидается manual или ai)", cfg.StoryProvider)
	}
	cfg.StoryProvider = provider

	// Загружаем секреты
	var err error
	cfg.AdminPassword, err = readSecret("admin_password", true)
	if err != nil {
		return nil, err
	}
	// Ключ AI обязателен только когда выбран AI-провайдер
	cfg.AIAPIKey, err = readSecret("ai_api_key", provider == "ai")
	if err != nil {
		return nil, err
	}
	cfg.RedisPassword, _ = readSecret("redis_password", false)

	// Логируем загруженную конфигурацию (кроме паролей/ключей)
	log.Printf("Конфигурация загружена:")
	log.Printf("  HTTP Port: %s", cfg.HTTPPort)
	log.Printf("  Metrics Port: %s", cfg.MetricsPort)
	log.Printf("  Story Provider: %s", cfg.StoryProvider)
	log.Printf("  AI Base URL: %s", cfg.AIBaseURL)
	log.Printf("  AI Model: %s", cfg.AIModel)
	log.Printf("  AI Timeout: %v", cfg.AITimeout)
	log.Printf("  AI Max Retries: %d", cfg.AIMaxRetries)
	log.Printf("  AI Base Retry Delay: %v", cfg.AIBaseRetryDelay)
	log.Printf("  Bulk Item Delay: %v", cfg.BulkItemDelay)
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	log.Printf("  Sync Key: %s", cfg.SyncKey)
	log.Printf("  Cache Path: %s", cfg.CachePath)
	if cfg.AIAPIKey != "" {
		log.Println("  AI API Key: [ЗАГРУЖЕН]")
	}

	return &cfg, nil
}

// readSecret читает секрет из файла в стандартном пути Docker Secrets.
// Для локальной разработки допускается fallback на переменную окружения
// с тем же именем в верхнем регистре (ADMIN_PASSWORD, AI_API_KEY, ...).
func readSecret(secretName string, required bool) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	if secretBytes, err := os.ReadFile(filePath); err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret != "" {
			return secret, nil
		}
	}

	envName := strings.ToUpper(secretName)
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		return value, nil
	}

	if required {
		return "", fmt.Errorf("secret '%s' not found (neither %s nor env %s)", secretName, filePath, envName)
	}
	return "", nil
}
