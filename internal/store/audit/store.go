// Package audit persists resilience events, discrepancies and
// execution outcomes to a local sqlite database for post-incident
// review.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bastion/internal/logger"
	"bastion/internal/resilience"
	"bastion/internal/store/model"
	"bastion/internal/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db)
}

func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(
		&model.AuditEventModel{},
		&model.DiscrepancyModel{},
		&model.ExecutionModel{},
	); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

// Attach subscribes the store to the event bus. Persistence failures
// are logged and swallowed; audit must never block execution.
func (s *Store) Attach(bus *resilience.Bus) {
	if s == nil || bus == nil {
		return
	}
	bus.Subscribe(func(evt resilience.Event) {
		if err := s.RecordEvent(context.Background(), evt); err != nil {
			logger.Warnf("audit: persisting event %s failed: %v", evt.Type, err)
		}
	})
}

func (s *Store) RecordEvent(ctx context.Context, evt resilience.Event) error {
	row := model.AuditEventModel{
		EventType:  string(evt.Type),
		InstanceID: evt.InstanceID,
		StrategyID: evt.StrategyID,
		SignalID:   evt.SignalID,
		Attempt:    evt.Attempt,
		ElapsedMs:  evt.Elapsed.Milliseconds(),
		OccurredAt: evt.Timestamp.UnixMilli(),
	}
	if evt.Err != nil {
		row.Error = evt.Err.Error()
	}
	if evt.Detail != "" {
		if raw, err := json.Marshal(map[string]string{"detail": evt.Detail}); err == nil {
			row.Detail = raw
		}
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) RecordDiscrepancies(ctx context.Context, ds []resilience.Discrepancy) error {
	if len(ds) == 0 {
		return nil
	}
	rows := make([]model.DiscrepancyModel, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, model.DiscrepancyModel{
			Type:        string(d.Type),
			StrategyID:  d.StrategyID,
			Field:       d.Field,
			BridgeValue: d.BridgeValue,
			LocalValue:  d.LocalValue,
			Magnitude:   d.Magnitude,
			Corrected:   d.Corrected,
			DetectedAt:  d.DetectedAt.UnixMilli(),
		})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Store) RecordExecution(ctx context.Context, signal types.TradingSignal, res types.ExecutionResult) error {
	row := model.ExecutionModel{
		SignalID:   signal.ID,
		StrategyID: signal.StrategyID,
		Symbol:     signal.Symbol,
		Direction:  string(signal.Direction),
		Method:     string(res.Method),
		Success:    res.Success,
		OrderID:    res.OrderID,
		FilledQty:  res.FilledQty,
		AvgPrice:   res.AvgPrice,
		ExecutedAt: res.Timestamp.UnixMilli(),
	}
	if res.Err != nil {
		row.Error = res.Err.Error()
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RecentEvents returns the newest events first, capped at limit.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]model.AuditEventModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.AuditEventModel
	err := s.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// RecentDiscrepancies returns the newest discrepancies first.
func (s *Store) RecentDiscrepancies(ctx context.Context, limit int) ([]model.DiscrepancyModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.DiscrepancyModel
	err := s.db.WithContext(ctx).
		Order("detected_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UncorrectedCount reports how many discrepancies await manual review.
func (s *Store) UncorrectedCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.DiscrepancyModel{}).
		Where("corrected = ?", false).
		Count(&n).Error
	return n, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
