package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"arbiter/internal/engine"
)

// 中文说明：
// 审计事件流水。规范化提示、闸门失败与持仓审计事件按 trace 追加落库，
// 只增不改，方便事后排查一次评估的完整信号链。

// EventRecord 一条审计流水。
type EventRecord struct {
	ID        int64  `json:"id"`
	TraceID   string `json:"trace_id"`
	Timestamp int64  `json:"ts"`
	AccountID string `json:"account_id,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

// Query 流水筛选条件。
type Query struct {
	TraceID   string
	AccountID string
	Symbol    string
	Kind      string
	Limit     int
}

// Store 基于 SQLite 的审计流水存储。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// New 初始化 SQLite 流水库。
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit log path 不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		detail TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_trace ON audit_events(trace_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_kind ON audit_events(kind);`
	_, err := db.Exec(ddl)
	return err
}

// Close 关闭底层 DB。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// AppendRun 把一次评估的闸门失败与审计事件整体追加到流水。
func (s *Store) AppendRun(ctx context.Context, traceID string, res *engine.Result) error {
	if s == nil {
		return fmt.Errorf("audit log store 未初始化")
	}
	if res == nil {
		return nil
	}
	now := time.Now().Unix()
	records := make([]EventRecord, 0, len(res.GateFailures))
	for _, failure := range res.GateFailures {
		records = append(records, EventRecord{
			TraceID:   traceID,
			Timestamp: now,
			Kind:      kindOf(failure),
			Detail:    failure,
		})
	}
	accountIDs := make([]string, 0, len(res.Accounts))
	for id := range res.Accounts {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)
	for _, id := range accountIDs {
		for _, evt := range res.Accounts[id].AuditLog {
			records = append(records, EventRecord{
				TraceID:   traceID,
				Timestamp: now,
				AccountID: id,
				Symbol:    evt.Symbol,
				Kind:      evt.Type,
				Detail:    evt.Detail,
			})
		}
	}
	return s.Append(ctx, records)
}

// Append 追加流水记录。
func (s *Store) Append(ctx context.Context, records []EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("audit log store 已关闭")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO audit_events (trace_id, ts, account_id, symbol, kind, detail) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.TraceID, rec.Timestamp, rec.AccountID, rec.Symbol, rec.Kind, rec.Detail); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// List 按条件查询流水，时间倒序。
func (s *Store) List(ctx context.Context, q Query) ([]EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("audit log store 已关闭")
	}
	var (
		where []string
		args  []interface{}
	)
	if v := strings.TrimSpace(q.TraceID); v != "" {
		where = append(where, "trace_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.AccountID); v != "" {
		where = append(where, "account_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Symbol); v != "" {
		where = append(where, "symbol = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Kind); v != "" {
		where = append(where, "kind = ?")
		args = append(args, v)
	}
	query := "SELECT id, trace_id, ts, account_id, symbol, kind, detail FROM audit_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &rec.AccountID, &rec.Symbol, &rec.Kind, &rec.Detail); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// kindOf 从信号文本前缀推断类别。
func kindOf(signal string) string {
	switch {
	case strings.HasPrefix(signal, "SCHEMA_FAIL"):
		return "SCHEMA_FAIL"
	case strings.HasPrefix(signal, "HEALTH_FAIL"):
		return "HEALTH_FAIL"
	case strings.HasPrefix(signal, "normalize:"):
		return "NORMALIZE"
	default:
		return "SIGNAL"
	}
}
