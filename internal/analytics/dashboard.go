package analytics

import (
	"context"
	"fmt"
	"time"

	"visitor-analytics/internal/metrics"
	"visitor-analytics/internal/models"
)

// DaysSinceMonday число дней от ближайшего прошедшего понедельника (0 в понедельник)
func DaysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Dashboard собирает все метрики главной страницы одним вызовом
func (e *Engine) Dashboard(ctx context.Context) (models.Dashboard, error) {
	now := e.localNow()
	d := models.Dashboard{GeneratedAt: now}

	counters := []struct {
		name string
		dst  *int64
		fn   func(context.Context) (int64, error)
	}{
		{"visitors_this_hour", &d.VisitorsThisHour, e.CurrentHourVisitors},
		{"visitors_today", &d.VisitorsToday, func(ctx context.Context) (int64, error) {
			return e.CurrentVisitors(ctx, 0)
		}},
		{"visitors_this_week", &d.VisitorsThisWeek, func(ctx context.Context) (int64, error) {
			return e.CurrentVisitors(ctx, DaysSinceMonday(now))
		}},
		{"returning_visitors_30_days", &d.ReturningVisitors30, func(ctx context.Context) (int64, error) {
			return e.ReturningVisitors(ctx, 30)
		}},
		{"returning_visitors_60_days", &d.ReturningVisitors60, func(ctx context.Context) (int64, error) {
			return e.ReturningVisitors(ctx, 60)
		}},
		{"returning_visitors_180_days", &d.ReturningVisitors180, func(ctx context.Context) (int64, error) {
			return e.ReturningVisitors(ctx, 180)
		}},
	}

	for _, c := range counters {
		v, err := c.fn(ctx)
		if err != nil {
			return models.Dashboard{}, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = v
		metrics.DashboardValue.WithLabelValues(c.name).Set(float64(v))
	}

	top, err := e.TopManufacturers(ctx, 3, 7)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("top_3_manufacturers: %w", err)
	}
	d.TopManufacturers = top

	return d, nil
}
