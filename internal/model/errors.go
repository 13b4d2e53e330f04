package model

import "errors"

// ErrEncoding - ошибка декодирования или перекодирования изображения.
// Фатальна для конкретной загрузки, слот при этом не изменяется.
var ErrEncoding = errors.New("image encoding failed")

// ErrQuotaExceeded - провайдер историй исчерпал лимит после всех ретраев.
var ErrQuotaExceeded = errors.New("story provider quota exceeded")

// ErrProvider - прочая ошибка провайдера историй (не квота).
var ErrProvider = errors.New("story provider failed")

// ErrSyncWrite - запись всей коллекции в общее хранилище не удалась.
// Локальное состояние остается без изменений.
var ErrSyncWrite = errors.New("shared store write failed")

// ErrSyncRead - общее хранилище недоступно при старте; используются дефолты.
var ErrSyncRead = errors.New("shared store unavailable")

// ErrSlotNotFound - запрошен id вне диапазона 1..TotalSlots.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotEmpty - операция требует заполненный слот.
var ErrSlotEmpty = errors.New("slot is empty")

// ErrBatchInFlight - пакетная загрузка уже выполняется.
var ErrBatchInFlight = errors.New("bulk upload already in progress")

// ErrSyncInFlight - синхронизация уже выполняется.
var ErrSyncInFlight = errors.New("sync already in progress")
