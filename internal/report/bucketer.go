// Package report раскладывает предагрегированные строки отчетов
// по часовым и дневным временным рядам для графиков.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visitor-analytics/internal/metrics"
	"visitor-analytics/internal/models"
	"visitor-analytics/internal/repository"
)

// ErrInvalidDate год, месяц или день вне календаря
var ErrInvalidDate = errors.New("invalid report date")

// LabelFunc преобразует время периода в подпись оси X
type LabelFunc func(time.Time) string

// HourLabel подпись часа в формате HH:MM
func HourLabel(t time.Time) string { return t.Format("15:04") }

// DayLabel подпись календарного дня
func DayLabel(t time.Time) string { return t.Format("Jan 2") }

// Option дополнительная настройка Bucketer
type Option func(*Bucketer)

func WithHourLabel(fn LabelFunc) Option {
	return func(b *Bucketer) { b.hourLabel = fn }
}

func WithDayLabel(fn LabelFunc) Option {
	return func(b *Bucketer) { b.dayLabel = fn }
}

// Bucketer строит ряды и список доступных дней по строкам отчетов
type Bucketer struct {
	repo      repository.ReportRepository
	log       zerolog.Logger
	hourLabel LabelFunc
	dayLabel  LabelFunc
}

func NewBucketer(repo repository.ReportRepository, log zerolog.Logger, opts ...Option) *Bucketer {
	b := &Bucketer{
		repo:      repo,
		log:       log.With().Str("component", "report").Logger(),
		hourLabel: HourLabel,
		dayLabel:  DayLabel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AvailableDays дни, за которые есть дневные отчеты, и границы для выбора даты
func (b *Bucketer) AvailableDays(ctx context.Context) (models.DayRange, error) {
	periods, err := b.repo.ReportPeriods(ctx, models.ReportDaily)
	if err != nil {
		return models.DayRange{}, err
	}
	return AvailablePeriods(periods), nil
}

// AvailablePeriods оставляет уникальные токены вида YYYY-MM-DD по возрастанию.
// Токены другой длины или с невалидной датой отбрасываются.
func AvailablePeriods(periods []string) models.DayRange {
	seen := make(map[string]struct{}, len(periods))
	days := make([]string, 0, len(periods))
	for _, p := range periods {
		if len(p) != len(models.DayPeriodLayout) {
			continue
		}
		if _, err := time.Parse(models.DayPeriodLayout, p); err != nil {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		days = append(days, p)
	}
	// Для YYYY-MM-DD лексикографический порядок совпадает с хронологическим
	sort.Strings(days)

	r := models.DayRange{Days: days}
	if len(days) > 0 {
		lo, hi := days[0], days[len(days)-1]
		r.Min, r.Max = &lo, &hi
	}
	return r
}

// HourlySeries почасовой ряд за день
func (b *Bucketer) HourlySeries(ctx context.Context, year, month, day int) ([]models.SeriesPoint, error) {
	if !validDate(year, month, day) {
		return nil, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	prefix := fmt.Sprintf("%04d-%02d-%02d-", year, month, day)

	rows, err := b.repo.ReportRows(ctx, models.ReportHourly, prefix)
	if err != nil {
		return nil, err
	}
	return b.series(rows, models.ReportHourly, prefix, models.HourPeriodLayout, b.hourLabel), nil
}

// DailySeries дневной ряд за месяц
func (b *Bucketer) DailySeries(ctx context.Context, year, month int) ([]models.SeriesPoint, error) {
	if !validDate(year, month, 1) {
		return nil, fmt.Errorf("%w: %04d-%02d", ErrInvalidDate, year, month)
	}
	prefix := fmt.Sprintf("%04d-%02d-", year, month)

	rows, err := b.repo.ReportRows(ctx, models.ReportDaily, prefix)
	if err != nil {
		return nil, err
	}
	return b.series(rows, models.ReportDaily, prefix, models.DayPeriodLayout, b.dayLabel), nil
}

// series отбирает строки нужного типа с корректным токеном периода и
// упорядочивает их по времени. Некорректные токены пропускаются.
func (b *Bucketer) series(rows []models.ReportRow, typ models.ReportType, prefix, layout string, label LabelFunc) []models.SeriesPoint {
	type point struct {
		at  time.Time
		row models.ReportRow
	}

	points := make([]point, 0, len(rows))
	for _, r := range rows {
		if r.Type != typ || len(r.Period) != len(layout) || !strings.HasPrefix(r.Period, prefix) {
			b.skip(r)
			continue
		}
		at, err := time.Parse(layout, r.Period)
		if err != nil {
			b.skip(r)
			continue
		}
		points = append(points, point{at: at, row: r})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	out := make([]models.SeriesPoint, 0, len(points))
	for _, p := range points {
		out = append(out, models.SeriesPoint{
			Period: p.row.Period,
			Label:  label(p.at),
			Count:  p.row.Count,
		})
	}
	return out
}

func (b *Bucketer) skip(r models.ReportRow) {
	metrics.SkippedPeriods.WithLabelValues(string(r.Type)).Inc()
	b.log.Debug().Str("report_type", string(r.Type)).Str("period", r.Period).Msg("skipping malformed period")
}

func validDate(year, month, day int) bool {
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day
}
