package models

import "time"

// Sighting одно обнаружение устройства сканером
type Sighting struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"device_id"`
	RSSI      int       `json:"rssi"`
	Timestamp time.Time `json:"timestamp"`
}

// Device отслеживаемое устройство с производными атрибутами
type Device struct {
	ID                 int64     `json:"id"`
	Address            string    `json:"address"`
	Manufacturer       string    `json:"manufacturer"`
	SeenFirst          time.Time `json:"seen_first"`
	SeenLast           time.Time `json:"seen_last"`
	SeenCounter        int       `json:"seen_counter"`
	SeenWithinGeofence bool      `json:"seen_within_geofence"`
	Ignore             bool      `json:"ignore"`
}

// ReportType тип предагрегированного отчета
type ReportType string

const (
	ReportHourly ReportType = "H"
	ReportDaily  ReportType = "D"
)

// Форматы токенов периода
const (
	HourPeriodLayout = "2006-01-02-15"
	DayPeriodLayout  = "2006-01-02"
)

// ReportRow строка отчета, заполняемая внешним batch-процессом
type ReportRow struct {
	Type   ReportType `json:"report_type"`
	Period string     `json:"period"`
	Count  int64      `json:"count"`
}

// ManufacturerCount количество устройств производителя
type ManufacturerCount struct {
	Manufacturer string `json:"manufacturer"`
	Count        int64  `json:"count"`
}

// SeriesPoint точка временного ряда для графика
type SeriesPoint struct {
	Period string `json:"period"`
	Label  string `json:"label"`
	Count  int64  `json:"count"`
}

// DayRange доступные дни отчетов и границы для выбора даты
type DayRange struct {
	Days []string `json:"days"`
	Min  *string  `json:"min_day"`
	Max  *string  `json:"max_day"`
}

// Dashboard сводка метрик для главной страницы
type Dashboard struct {
	VisitorsThisHour     int64     `json:"visitors_this_hour"`
	VisitorsToday        int64     `json:"visitors_today"`
	VisitorsThisWeek     int64     `json:"visitors_this_week"`
	ReturningVisitors30  int64     `json:"returning_visitors_30_days"`
	ReturningVisitors60  int64     `json:"returning_visitors_60_days"`
	ReturningVisitors180 int64     `json:"returning_visitors_180_days"`
	TopManufacturers     []string  `json:"top_3_manufacturers"`
	GeneratedAt          time.Time `json:"generated_at"`
}
