package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	if driver == "postgres" || driver == "postgrespool" {
		gormDialector = postgres.Open(dsn)
	} else if driver == "sqlite" {
		gormDialector = sqlite.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&EstimateEntry{},
		&QuarantineItem{},
		&IntervalReading{},
		&Setting{},
		&ScheduledJob{},
	)
}

// Estimate cache

func (s *GormStorage) GetEstimate(ctx context.Context, cacheKey string) (*EstimateEntry, error) {
	var e EstimateEntry
	result := s.db.WithContext(ctx).First(&e, "cache_key = ?", cacheKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &e, nil
}

func (s *GormStorage) PutEstimate(ctx context.Context, e EstimateEntry) error {
	if e.ComputedAt.IsZero() {
		e.ComputedAt = time.Now()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		UpdateAll: true,
	}).Create(&e).Error
}

func (s *GormStorage) DeleteEstimate(ctx context.Context, cacheKey string) error {
	return s.db.WithContext(ctx).Delete(&EstimateEntry{}, "cache_key = ?", cacheKey).Error
}

func (s *GormStorage) DeleteEstimatesForHome(ctx context.Context, homeID string) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&EstimateEntry{}, "home_id = ?", homeID)
	return result.RowsAffected, result.Error
}

func (s *GormStorage) PurgeExpiredEstimates(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&EstimateEntry{}, "expires_at < ?", now)
	return result.RowsAffected, result.Error
}

// Quarantine queue

func (s *GormStorage) UpsertQuarantineItem(ctx context.Context, item QuarantineItem) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dedupe_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen_at": item.LastSeenAt,
			"detail":       item.Detail,
			"seen_count":   gorm.Expr("quarantine_items.seen_count + 1"),
			// A resolved item seen again reopens.
			"status":      QuarantineOpen,
			"resolved_at": nil,
			"resolution":  "",
		}),
	}).Create(&item).Error
}

func (s *GormStorage) GetQuarantineItem(ctx context.Context, id string) (*QuarantineItem, error) {
	var item QuarantineItem
	result := s.db.WithContext(ctx).First(&item, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &item, nil
}

func (s *GormStorage) GetQuarantineItemByDedupeKey(ctx context.Context, dedupeKey string) (*QuarantineItem, error) {
	var item QuarantineItem
	result := s.db.WithContext(ctx).First(&item, "dedupe_key = ?", dedupeKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &item, nil
}

func (s *GormStorage) ListQuarantineItems(ctx context.Context, status string, limit int) ([]QuarantineItem, error) {
	q := s.db.WithContext(ctx).Order("last_seen_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []QuarantineItem
	result := q.Find(&items)
	return items, result.Error
}

func (s *GormStorage) ResolveQuarantineItem(ctx context.Context, id, resolution string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&QuarantineItem{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      QuarantineResolved,
		"resolved_at": now,
		"resolution":  resolution,
	}).Error
}

// Interval readings

func (s *GormStorage) SaveIntervalReadings(ctx context.Context, readings []IntervalReading) error {
	if len(readings) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meter_id"}, {Name: "ts"}, {Name: "source"}},
		UpdateAll: true,
	}).CreateInBatches(readings, 500).Error
}

func (s *GormStorage) QueryIntervalReadings(ctx context.Context, meterID string, from, to time.Time) ([]IntervalReading, error) {
	var out []IntervalReading
	result := s.db.WithContext(ctx).
		Where("meter_id = ? AND ts >= ? AND ts <= ?", meterID, from, to).
		Order("ts asc").
		Find(&out)
	return out, result.Error
}

func (s *GormStorage) LatestIntervalTimestamp(ctx context.Context, meterID string) (time.Time, error) {
	var r IntervalReading
	result := s.db.WithContext(ctx).Where("meter_id = ?", meterID).Order("ts desc").First(&r)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, result.Error
	}
	return r.Timestamp, nil
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled jobs & locking

func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error
		return ok, err
	}
	// SQLite has no advisory locks; single-instance deployments always win.
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&ok).Error
		return ok, err
	}
	return true, nil
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}
