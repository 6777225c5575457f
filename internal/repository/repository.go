// Package repository слой чтения обнаружений, устройств и строк отчетов.
// Данные пишут конвейер сканирования и batch-задача отчетов, сервис их только читает.
package repository

import (
	"context"
	"errors"
	"time"

	"visitor-analytics/internal/models"
)

// ErrRepositoryUnavailable хранилище недоступно или запрос превысил таймаут
var ErrRepositoryUnavailable = errors.New("repository unavailable")

// SightingFilter обнаружения с From <= timestamp < To и rssi <= MaxRSSI.
// Нулевой To оставляет интервал открытым.
type SightingFilter struct {
	From    time.Time
	To      time.Time
	MaxRSSI int
}

// ReturningFilter неигнорируемые устройства внутри геозоны с
// seen_last >= SeenLastFrom, SeenFirstFrom <= seen_first <= SeenFirstTo
// и seen_counter > MinCounter
type ReturningFilter struct {
	SeenLastFrom  time.Time
	SeenFirstFrom time.Time
	SeenFirstTo   time.Time
	MinCounter    int
}

// ManufacturerFilter группировка устройств внутри геозоны по производителю
type ManufacturerFilter struct {
	SeenLastFrom time.Time
	Exclude      string
	Limit        int
}

type SightingRepository interface {
	CountSightings(ctx context.Context, f SightingFilter) (int64, error)
}

type DeviceRepository interface {
	CountReturningDevices(ctx context.Context, f ReturningFilter) (int64, error)
	ManufacturerCounts(ctx context.Context, f ManufacturerFilter) ([]models.ManufacturerCount, error)
}

type ReportRepository interface {
	// ReportPeriods токены периодов заданного типа по возрастанию
	ReportPeriods(ctx context.Context, typ models.ReportType) ([]string, error)
	// ReportRows строки заданного типа, период которых начинается с prefix, по возрастанию периода
	ReportRows(ctx context.Context, typ models.ReportType, prefix string) ([]models.ReportRow, error)
}
