// Package orderlog keeps the ledger of order intents the engine emitted and
// of intents the validator rejected.
package orderlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quorum/internal/engine"
)

// OrderStatus tracks an intent through its short lifecycle.
type OrderStatus int

const (
	OrderStatusPending  OrderStatus = 0
	OrderStatusAccepted OrderStatus = 1
	OrderStatusRejected OrderStatus = 2
)

// OrderModel is one order intent row.
type OrderModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	TraceID     string         `gorm:"column:trace_id;index"`
	Symbol      string         `gorm:"column:symbol;index"`
	Action      string         `gorm:"column:action"`
	Exposure    float64        `gorm:"column:exposure"`
	Notional    float64        `gorm:"column:notional"`
	ReasonCode  string         `gorm:"column:reason_code"`
	Path        string         `gorm:"column:path"`
	Status      OrderStatus    `gorm:"column:status"`
	RejectCode  string         `gorm:"column:reject_code"`
	RejectNote  string         `gorm:"column:reject_note"`
	Snapshot    datatypes.JSON `gorm:"column:snapshot"`
	CreatedUnix int64          `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "order_intents" }

// Store is the gorm-backed ledger.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("order log path cannot be empty")
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
	if err := db.AutoMigrate(&OrderModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// RecordAccepted appends a validated intent.
func (s *Store) RecordAccepted(ctx context.Context, d engine.Decision, notional float64) (int64, error) {
	return s.record(ctx, d, notional, OrderStatusAccepted, "", "")
}

// RecordRejected appends an intent the validator refused.
func (s *Store) RecordRejected(ctx context.Context, d engine.Decision, notional float64, reject engine.RejectReason) (int64, error) {
	return s.record(ctx, d, notional, OrderStatusRejected, reject.Code, reject.Detail)
}

func (s *Store) record(ctx context.Context, d engine.Decision, notional float64, status OrderStatus, rejectCode, rejectNote string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("order log store not initialized")
	}
	snap, err := json.Marshal(d)
	if err != nil {
		return 0, fmt.Errorf("encode decision: %w", err)
	}
	row := OrderModel{
		TraceID:     d.TraceID,
		Symbol:      d.Symbol,
		Action:      string(d.Action),
		Exposure:    d.Exposure,
		Notional:    notional,
		ReasonCode:  string(d.ReasonCode),
		Path:        string(d.Path),
		Status:      status,
		RejectCode:  rejectCode,
		RejectNote:  rejectNote,
		Snapshot:    datatypes.JSON(snap),
		CreatedUnix: time.Now().UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// ListBySymbol returns intents for a symbol, newest first.
func (s *Store) ListBySymbol(ctx context.Context, symbol string, limit int) ([]OrderModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order log store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []OrderModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRejected returns rejected intents, newest first.
func (s *Store) ListRejected(ctx context.Context, limit int) ([]OrderModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order log store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []OrderModel
	err := s.db.WithContext(ctx).
		Where("status = ?", OrderStatusRejected).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Close releases the underlying connection.
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
