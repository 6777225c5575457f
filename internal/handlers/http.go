package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"visitor-analytics/internal/metrics"
	"visitor-analytics/internal/models"
	"visitor-analytics/internal/report"
	"visitor-analytics/internal/repository"
)

// DashboardService источник сводки метрик
type DashboardService interface {
	Dashboard(ctx context.Context) (models.Dashboard, error)
}

// ReportService источник рядов отчетов
type ReportService interface {
	AvailableDays(ctx context.Context) (models.DayRange, error)
	HourlySeries(ctx context.Context, year, month, day int) ([]models.SeriesPoint, error)
	DailySeries(ctx context.Context, year, month int) ([]models.SeriesPoint, error)
}

// Pinger зависимость, проверяемая health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler обработчик HTTP запросов
type Handler struct {
	dashboard DashboardService
	reports   ReportService
	cache     Pinger
	repo      Pinger
	stats     func() map[string]interface{}
	log       zerolog.Logger
}

// NewHandler создает новый обработчик. stats может быть nil.
func NewHandler(dashboard DashboardService, reports ReportService, cache, repo Pinger,
	stats func() map[string]interface{}, log zerolog.Logger) *Handler {
	return &Handler{
		dashboard: dashboard,
		reports:   reports,
		cache:     cache,
		repo:      repo,
		stats:     stats,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// Routes собирает роутер API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/api/dashboard", h.GetDashboard)
	r.Get("/api/reports/days", h.GetAvailableDays)
	r.Get("/api/reports/hourly/{year}/{month}/{day}", h.GetHourlySeries)
	r.Get("/api/reports/daily/{year}/{month}", h.GetDailySeries)
	r.Get("/health", h.HealthCheck)
	r.Get("/stats", h.GetStats)
	return r
}

// instrument пишет количество и длительность запросов по шаблону маршрута
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	})
}

// GetDashboard обрабатывает GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Dashboard(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetAvailableDays обрабатывает GET /api/reports/days
func (h *Handler) GetAvailableDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.reports.AvailableDays(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// GetHourlySeries обрабатывает GET /api/reports/hourly/{year}/{month}/{day}
func (h *Handler) GetHourlySeries(w http.ResponseWriter, r *http.Request) {
	parts, ok := intParams(r, "year", "month", "day")
	if !ok {
		writeError(w, http.StatusBadRequest, "year, month and day must be integers")
		return
	}
	series, err := h.reports.HourlySeries(r.Context(), parts[0], parts[1], parts[2])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetDailySeries обрабатывает GET /api/reports/daily/{year}/{month}
func (h *Handler) GetDailySeries(w http.ResponseWriter, r *http.Request) {
	parts, ok := intParams(r, "year", "month")
	if !ok {
		writeError(w, http.StatusBadRequest, "year and month must be integers")
		return
	}
	series, err := h.reports.DailySeries(r.Context(), parts[0], parts[1])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	cacheOK := h.cache.Ping(r.Context()) == nil
	repoOK := h.repo.Ping(r.Context()) == nil

	status := "healthy"
	httpStatus := http.StatusOK

	// Кэш только ускоряет ответы, без него сервис работает в деградированном режиме
	if !cacheOK {
		status = "degraded"
	}
	if !repoOK {
		status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":     status,
		"cache":      cacheOK,
		"repository": repoOK,
		"timestamp":  time.Now(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	cacheStats := map[string]interface{}{}
	if h.stats != nil {
		cacheStats = h.stats()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache":     cacheStats,
		"timestamp": time.Now(),
	})
}

// fail переводит ошибку ядра в HTTP ответ. Недоступность хранилища
// показывается как общий признак деградации сервиса.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		h.log.Error().Err(err).Msg("repository unavailable")
		writeError(w, http.StatusServiceUnavailable, "service degraded")
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func intParams(r *http.Request, names ...string) ([]int, bool) {
	out := make([]int, 0, len(names))
	for _, name := range names {
		v, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
