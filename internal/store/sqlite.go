package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"stocksim-go/infrastructure/alert"
	"stocksim-go/internal/engine"
	"stocksim-go/order"
)

// SQLiteRecorder 把成交历史与通知写入 SQLite。同时实现 engine.TradeRecorder 与 alert.Channel。
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder 打开（或创建）数据库并建表。
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL：报表工具读取时不阻塞模拟写入
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id              TEXT PRIMARY KEY,
			order_id        TEXT NOT NULL,
			parent_id       TEXT,
			cycle           INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			side            TEXT NOT NULL,
			kind            TEXT NOT NULL,
			shares          INTEGER NOT NULL,
			price           REAL,
			effective_price REAL,
			total           REAL,
			fee             REAL,
			pnl             REAL,
			loan_id         TEXT,
			partial         INTEGER NOT NULL DEFAULT 0,
			status          TEXT NOT NULL,
			reason          TEXT,
			message         TEXT,
			timestamp       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_cycle ON trades(cycle)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			level     TEXT NOT NULL,
			kind      TEXT NOT NULL,
			order_id  TEXT,
			symbol    TEXT,
			message   TEXT,
			fields    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_ts ON notifications(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Record 写入一条成交记录。
func (r *SQLiteRecorder) Record(ctx context.Context, rec engine.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO trades
		(id, order_id, parent_id, cycle, symbol, side, kind, shares,
		 price, effective_price, total, fee, pnl, loan_id, partial,
		 status, reason, message, timestamp)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.OrderID, rec.ParentID, rec.Cycle, rec.Symbol, string(rec.Side), string(rec.Kind), rec.Shares,
		rec.Price, rec.EffectivePrice, rec.Total, rec.Fee, rec.PnL, rec.LoanID, rec.Partial,
		string(rec.Status), string(rec.Reason), rec.Message, rec.Timestamp.UnixNano(),
	)
	return err
}

// Recent 按写入顺序返回最近 limit 条成交记录（旧的在前）。
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]engine.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT
		id, order_id, parent_id, cycle, symbol, side, kind, shares,
		price, effective_price, total, fee, pnl, loan_id, partial,
		status, reason, message, timestamp
		FROM trades ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TradeRecord
	for rows.Next() {
		var (
			rec                 engine.TradeRecord
			side, kind          string
			status, reason      string
			parent, loanID, msg sql.NullString
			ts                  int64
		)
		if err := rows.Scan(&rec.ID, &rec.OrderID, &parent, &rec.Cycle, &rec.Symbol, &side, &kind, &rec.Shares,
			&rec.Price, &rec.EffectivePrice, &rec.Total, &rec.Fee, &rec.PnL, &loanID, &rec.Partial,
			&status, &reason, &msg, &ts); err != nil {
			return nil, err
		}
		rec.ParentID = parent.String
		rec.LoanID = loanID.String
		rec.Message = msg.String
		rec.Side = order.Side(side)
		rec.Kind = order.KindName(kind)
		rec.Status = engine.TradeStatus(status)
		rec.Reason = engine.FailReason(reason)
		rec.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 反转为时间正序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Send 作为通知通道写入通知日志。
func (r *SQLiteRecorder) Send(a alert.Alert) error {
	fields := ""
	if len(a.Fields) > 0 {
		b, err := json.Marshal(a.Fields)
		if err != nil {
			return fmt.Errorf("encode fields: %w", err)
		}
		fields = string(b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(`INSERT INTO notifications
		(timestamp, level, kind, order_id, symbol, message, fields)
		VALUES (?,?,?,?,?,?,?)`,
		a.Timestamp.UnixNano(), string(a.Level), string(a.Kind), a.OrderID, a.Symbol, a.Message, fields,
	)
	return err
}

// Name 通道名称
func (r *SQLiteRecorder) Name() string { return "sqlite" }

// CountNotifications 按级别统计通知数（level 为空时统计全部）。
func (r *SQLiteRecorder) CountNotifications(ctx context.Context, level alert.Level) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	var err error
	if level == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE level = ?`, string(level)).Scan(&n)
	}
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
