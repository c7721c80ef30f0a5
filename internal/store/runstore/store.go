package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"arbiter/internal/engine"
)

// 中文说明：
// 仲裁结果落库。每次评估生成一条 run 记录，trace_id 在这一层分配，
// 引擎本身保持确定性输出。

// ErrRunNotFound 指定 trace 不存在。
var ErrRunNotFound = errors.New("run not found")

type runModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TraceID       string         `gorm:"column:trace_id;uniqueIndex"`
	Timestamp     string         `gorm:"column:timestamp"`
	TradingDate   string         `gorm:"column:trading_date;index"`
	MarketStatus  string         `gorm:"column:market_status"`
	AccountCount  int            `gorm:"column:account_count"`
	DecisionCount int            `gorm:"column:decision_count"`
	ResultJSON    datatypes.JSON `gorm:"column:result_json"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (runModel) TableName() string { return "arbitration_runs" }

// RunRecord run 的摘要信息。
type RunRecord struct {
	TraceID       string `json:"trace_id"`
	Timestamp     string `json:"timestamp"`
	TradingDate   string `json:"trading_date"`
	MarketStatus  string `json:"market_status"`
	AccountCount  int    `json:"account_count"`
	DecisionCount int    `json:"decision_count"`
	CreatedAt     int64  `json:"created_at"`
}

// Store 基于 Gorm + SQLite 的 run 存储。
type Store struct {
	db *gorm.DB
}

// New 打开（或创建）run 数据库。
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep parallelism small, HTTP reads share the pool.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层连接。
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

// Save 落库一次评估结果并返回摘要（含新分配的 trace_id）。
func (s *Store) Save(ctx context.Context, res *engine.Result) (RunRecord, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, fmt.Errorf("run store 未初始化")
	}
	if res == nil {
		return RunRecord{}, fmt.Errorf("run store: result 为空")
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal result failed: %w", err)
	}
	decisions := 0
	for _, acct := range res.Accounts {
		decisions += len(acct.Decisions)
	}
	ts := res.Timestamp.Format(time.RFC3339)
	m := runModel{
		TraceID:       uuid.NewString(),
		Timestamp:     ts,
		TradingDate:   tradingDateOf(ts),
		MarketStatus:  string(res.MarketStatus),
		AccountCount:  len(res.Accounts),
		DecisionCount: decisions,
		ResultJSON:    datatypes.JSON(payload),
		CreatedAtUnix: time.Now().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return RunRecord{}, err
	}
	return recordOf(m), nil
}

// List 按时间倒序返回最近 limit 条 run 摘要。
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store 未初始化")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []runModel
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		out = append(out, recordOf(m))
	}
	return out, nil
}

// GetByTrace 返回指定 trace 的完整结果。
func (s *Store) GetByTrace(ctx context.Context, traceID string) (*engine.Result, RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, RunRecord{}, fmt.Errorf("run store 未初始化")
	}
	var m runModel
	err := s.db.WithContext(ctx).
		Where("trace_id = ?", strings.TrimSpace(traceID)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return nil, RunRecord{}, err
	}
	var res engine.Result
	if err := json.Unmarshal([]byte(m.ResultJSON), &res); err != nil {
		return nil, RunRecord{}, fmt.Errorf("unmarshal stored result failed: %w", err)
	}
	return &res, recordOf(m), nil
}

func recordOf(m runModel) RunRecord {
	return RunRecord{
		TraceID:       m.TraceID,
		Timestamp:     m.Timestamp,
		TradingDate:   m.TradingDate,
		MarketStatus:  m.MarketStatus,
		AccountCount:  m.AccountCount,
		DecisionCount: m.DecisionCount,
		CreatedAt:     m.CreatedAtUnix,
	}
}

// tradingDateOf 从 ISO 时间戳截取日期部分。
func tradingDateOf(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
