package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"visitor-analytics/internal/metrics"
	"visitor-analytics/internal/models"
)

// Временные метки хранятся как unix-секунды
const schema = `
CREATE TABLE IF NOT EXISTS sightings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL,
	rssi INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sightings_timestamp ON sightings(timestamp);

CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL UNIQUE,
	manufacturer TEXT NOT NULL DEFAULT 'Unknown',
	seen_first INTEGER NOT NULL,
	seen_last INTEGER NOT NULL,
	seen_counter INTEGER NOT NULL DEFAULT 0,
	seen_within_geofence INTEGER NOT NULL DEFAULT 0,
	ignored INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_devices_seen_last ON devices(seen_last);

CREATE TABLE IF NOT EXISTS report_rows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	report_type TEXT NOT NULL,
	period TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_report_rows_type_period ON report_rows(report_type, period);
`

// SQLiteRepository реализует все три интерфейса чтения поверх SQLite
type SQLiteRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLiteRepository открывает базу и создает схему, если ее нет
func NewSQLiteRepository(path string, timeout time.Duration) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepository{db: db, timeout: timeout}, nil
}

// query выполняет fn с таймаутом и учитывает задержку в метриках
func (s *SQLiteRepository) query(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RepositoryQueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RepositoryErrors.WithLabelValues(name).Inc()
		return fmt.Errorf("%w: %s: %v", ErrRepositoryUnavailable, name, err)
	}
	return nil
}

// CountSightings считает обнаружения по интервалу времени и порогу сигнала
func (s *SQLiteRepository) CountSightings(ctx context.Context, f SightingFilter) (int64, error) {
	q := `SELECT COUNT(*) FROM sightings WHERE timestamp >= ? AND rssi <= ?`
	args := []interface{}{f.From.Unix(), f.MaxRSSI}
	if !f.To.IsZero() {
		q += ` AND timestamp < ?`
		args = append(args, f.To.Unix())
	}

	var n int64
	err := s.query(ctx, "count_sightings", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	})
	return n, err
}

// CountReturningDevices считает вернувшихся посетителей
func (s *SQLiteRepository) CountReturningDevices(ctx context.Context, f ReturningFilter) (int64, error) {
	const q = `
		SELECT COUNT(*) FROM devices
		WHERE ignored = 0
		  AND seen_within_geofence = 1
		  AND seen_last >= ?
		  AND seen_first >= ?
		  AND seen_first <= ?
		  AND seen_counter > ?`

	var n int64
	err := s.query(ctx, "count_returning_devices", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, q,
			f.SeenLastFrom.Unix(), f.SeenFirstFrom.Unix(), f.SeenFirstTo.Unix(), f.MinCounter,
		).Scan(&n)
	})
	return n, err
}

// ManufacturerCounts группирует устройства по производителю, по убыванию количества
func (s *SQLiteRepository) ManufacturerCounts(ctx context.Context, f ManufacturerFilter) ([]models.ManufacturerCount, error) {
	const q = `
		SELECT manufacturer, COUNT(*) AS cnt FROM devices
		WHERE seen_within_geofence = 1
		  AND seen_last >= ?
		  AND manufacturer != ?
		GROUP BY manufacturer
		ORDER BY cnt DESC, manufacturer ASC
		LIMIT ?`

	result := []models.ManufacturerCount{}
	err := s.query(ctx, "manufacturer_counts", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, q, f.SeenLastFrom.Unix(), f.Exclude, f.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var mc models.ManufacturerCount
			if err := rows.Scan(&mc.Manufacturer, &mc.Count); err != nil {
				return err
			}
			result = append(result, mc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReportPeriods возвращает периоды отчетов заданного типа
func (s *SQLiteRepository) ReportPeriods(ctx context.Context, typ models.ReportType) ([]string, error) {
	const q = `SELECT period FROM report_rows WHERE report_type = ? ORDER BY period ASC`

	periods := []string{}
	err := s.query(ctx, "report_periods", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, q, string(typ))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			periods = append(periods, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return periods, nil
}

// ReportRows возвращает строки отчета по префиксу периода
func (s *SQLiteRepository) ReportRows(ctx context.Context, typ models.ReportType, prefix string) ([]models.ReportRow, error) {
	const q = `
		SELECT report_type, period, count FROM report_rows
		WHERE report_type = ? AND substr(period, 1, ?) = ?
		ORDER BY period ASC`

	result := []models.ReportRow{}
	err := s.query(ctx, "report_rows", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, q, string(typ), len(prefix), prefix)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r   models.ReportRow
				rtp string
			)
			if err := rows.Scan(&rtp, &r.Period, &r.Count); err != nil {
				return err
			}
			r.Type = models.ReportType(rtp)
			result = append(result, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ping проверяет доступность базы
func (s *SQLiteRepository) Ping(ctx context.Context) error {
	return s.query(ctx, "ping", s.db.PingContext)
}

// Close закрывает базу
func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}
