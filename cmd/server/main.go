package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"portfolio-server/internal/api"
	"portfolio-server/internal/cache"
	"portfolio-server/internal/config"
	"portfolio-server/internal/imaging"
	"portfolio-server/internal/logger"
	"portfolio-server/internal/model"
	"portfolio-server/internal/service"
	"portfolio-server/internal/store"
	"portfolio-server/internal/syncgw"
)

func main() {
	// Загружаем .env файл (если есть) для локальной разработки
	_ = godotenv.Load()

	log.Println("Запуск сервера портфолио...")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zapLogger.Sync()

	// Хранилище слотов и локальный кэш
	slotStore := store.NewSlotStore(zapLogger)
	localCache := cache.NewLocalCache(cfg.CachePath, cfg.CacheDebounce, zapLogger)
	cachedSlots, err := localCache.Load()
	if err != nil {
		zapLogger.Warn("Local cache unavailable", zap.Error(err))
	}

	// WebSocket-рассылка
	hub := api.NewHub(zapLogger)
	hub.Start()

	// Слушатели мутаций регистрируются до гидратации, чтобы стартовое
	// состояние тоже попало в кэш и к подключившимся зрителям.
	slotStore.Subscribe(localCache.Store)
	slotStore.Subscribe(hub.BroadcastSlots)

	// Шлюз общего хранилища: первичное чтение плюс слежение за чужими
	// обновлениями. Порядок источников при старте: общее хранилище,
	// затем локальный кэш, затем пустая рамка.
	gateway := syncgw.NewGateway(cfg, zapLogger)
	defer gateway.Close()

	stopWatch := gateway.Subscribe(context.Background(), func(slots []model.Slot) {
		if slots == nil {
			if cachedSlots != nil {
				zapLogger.Info("Hydrating collection from local cache")
				slotStore.ReplaceAll(cachedSlots)
			}
			return
		}
		slotStore.ReplaceAll(slots)
	})
	defer stopWatch()

	// Провайдер историй по конфигурации
	var provider service.StoryProvider
	var synthesizer *service.ImageSynthesizer
	if cfg.StoryProvider == "ai" {
		aiClient := service.NewAIClient(cfg, zapLogger)
		provider = service.NewAIStoryProvider(aiClient, cfg, zapLogger)
		synthesizer = service.NewImageSynthesizer(aiClient, zapLogger)
	} else {
		provider = service.NewManualStoryProvider()
	}

	// Преобразование изображений и конвейер загрузки
	transformer := imaging.NewTransformer(cfg.ImageMaxDimension, cfg.ImageJPEGQuality, zapLogger)
	pipeline := service.NewPipeline(slotStore, transformer, provider, cfg.BulkItemDelay, zapLogger)

	// HTTP API
	handler := api.NewHandler(slotStore, pipeline, synthesizer, gateway, localCache, hub, cfg.AdminUser, cfg.AdminPassword, zapLogger)
	router := api.NewRouter(handler, cfg.AdminPassword, zapLogger)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Отдельный сервер метрик
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		zapLogger.Info("Metrics server listening", zap.String("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Ожидание сигнала завершения для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(ctx)

	// Сбрасываем отложенный снимок кэша на диск
	localCache.Flush()

	zapLogger.Info("Server stopped")
}
