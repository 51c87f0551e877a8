package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"monorail/internal/store"
	"monorail/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SqliteStore 基于 sqlite 的 FailureStore 实现。
type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", store.ErrStorage, err)
	}
	return newSqliteStore(db)
}

// NewSqliteStoreFromDB 允许测试注入已建好的 gorm 连接。
func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	if err := db.AutoMigrate(&model.FailedTrade{}); err != nil {
		return nil, fmt.Errorf("%w: migrate failed_trades: %v", store.ErrStorage, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

// Insert 写入一条失败记录。Timestamp 为零值时取当前 UTC 时间。
func (s *SqliteStore) Insert(ctx context.Context, rec model.FailedTrade) (int64, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("%w: insert failed trade: %v", store.ErrStorage, err)
	}
	return rec.ID, nil
}

// ListAll 返回全部失败记录，最近的在前。
func (s *SqliteStore) ListAll(ctx context.Context) ([]model.FailedTrade, error) {
	var recs []model.FailedTrade
	if err := s.db.WithContext(ctx).Order("timestamp DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%w: list failed trades: %v", store.ErrStorage, err)
	}
	return recs, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
