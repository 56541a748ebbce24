package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cdczone-bot-go/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// OrderStore keeps the append-only order history and the per-cycle rule
// evaluation audit trail in SQLite.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore opens (or creates) the SQLite database at dataSourceName.
func NewOrderStore(dataSourceName string) (*OrderStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite is single-writer; a second pooled connection would also see a
	// different database entirely under the :memory: DSN.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err = createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &OrderStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	createOrdersTableSQL := `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_order_id TEXT NOT NULL UNIQUE,
		exchange_order_id INTEGER,
		pair TEXT NOT NULL,
		order_type TEXT NOT NULL,
		side TEXT NOT NULL,
		requested_qty REAL NOT NULL,
		filled_qty REAL NOT NULL,
		avg_price REAL NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		pnl REAL,
		pnl_pct REAL,
		signal_bar INTEGER NOT NULL,
		requested_at INTEGER NOT NULL,
		filled_at INTEGER
	);`
	if _, err := db.Exec(createOrdersTableSQL); err != nil {
		return err
	}

	createEvaluationsTableSQL := `
	CREATE TABLE IF NOT EXISTS rule_evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		bar_open_time INTEGER NOT NULL,
		entry_rules TEXT NOT NULL,
		exit_rules TEXT,
		entry_pass BOOLEAN NOT NULL,
		any_exit_pass BOOLEAN NOT NULL,
		exit_reason TEXT,
		snapshot TEXT NOT NULL
	);`
	if _, err := db.Exec(createEvaluationsTableSQL); err != nil {
		return err
	}
	return nil
}

// AppendOrder inserts a new order record and fills in its row id.
func (s *OrderStore) AppendOrder(order *models.OrderRecord) error {
	query := `
	INSERT INTO orders (client_order_id, exchange_order_id, pair, order_type, side,
		requested_qty, filled_qty, avg_price, status, reason, pnl, pnl_pct,
		signal_bar, requested_at, filled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query,
		order.ClientOrderID, order.ExchangeOrderID, order.Pair, order.OrderType, order.Side,
		order.RequestedQty, order.FilledQty, order.AvgPrice, order.Status, order.Reason,
		order.PnL, order.PnLPct,
		order.SignalBar.UnixMilli(), order.RequestedAt.UnixMilli(), unixMilliOrZero(order.FilledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.ClientOrderID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read order id %s: %w", order.ClientOrderID, err)
	}
	order.ID = id
	return nil
}

// UpdateOrder finalizes an existing order's fill outcome by client order id.
func (s *OrderStore) UpdateOrder(order *models.OrderRecord) error {
	query := `
	UPDATE orders
	SET exchange_order_id = ?, filled_qty = ?, avg_price = ?, status = ?,
		pnl = ?, pnl_pct = ?, filled_at = ?
	WHERE client_order_id = ?`

	_, err := s.db.Exec(query,
		order.ExchangeOrderID, order.FilledQty, order.AvgPrice, order.Status,
		order.PnL, order.PnLPct, unixMilliOrZero(order.FilledAt),
		order.ClientOrderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ClientOrderID, err)
	}
	return nil
}

// PendingOrders returns the pair's orders still awaiting reconciliation.
func (s *OrderStore) PendingOrders(pair string) ([]models.OrderRecord, error) {
	query := `
	SELECT id, client_order_id, exchange_order_id, pair, order_type, side,
		requested_qty, filled_qty, avg_price, status, reason, pnl, pnl_pct,
		signal_bar, requested_at, filled_at
	FROM orders
	WHERE pair = ? AND status = ?
	ORDER BY id ASC`

	rows, err := s.db.Query(query, pair, models.OrderPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// OrdersForPair returns the most recent orders for a pair, newest first.
func (s *OrderStore) OrdersForPair(pair string, limit int) ([]models.OrderRecord, error) {
	query := `
	SELECT id, client_order_id, exchange_order_id, pair, order_type, side,
		requested_qty, filled_qty, avg_price, status, reason, pnl, pnl_pct,
		signal_bar, requested_at, filled_at
	FROM orders
	WHERE pair = ?
	ORDER BY id DESC
	LIMIT ?`

	rows, err := s.db.Query(query, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]models.OrderRecord, error) {
	var orders []models.OrderRecord
	for rows.Next() {
		var o models.OrderRecord
		var signalBar, requestedAt, filledAt int64
		var reason sql.NullString
		var pnl, pnlPct sql.NullFloat64
		var exchangeID sql.NullInt64
		if err := rows.Scan(
			&o.ID, &o.ClientOrderID, &exchangeID, &o.Pair, &o.OrderType, &o.Side,
			&o.RequestedQty, &o.FilledQty, &o.AvgPrice, &o.Status, &reason, &pnl, &pnlPct,
			&signalBar, &requestedAt, &filledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		o.ExchangeOrderID = exchangeID.Int64
		o.Reason = reason.String
		o.PnL = pnl.Float64
		o.PnLPct = pnlPct.Float64
		o.SignalBar = time.UnixMilli(signalBar).UTC()
		o.RequestedAt = time.UnixMilli(requestedAt).UTC()
		if filledAt > 0 {
			o.FilledAt = time.UnixMilli(filledAt).UTC()
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// AppendEvaluation writes one rule evaluation audit row. Every cycle appends
// one regardless of pass/fail.
func (s *OrderStore) AppendEvaluation(eval *models.RuleEvaluation) error {
	entryRules, err := json.Marshal(eval.EntryRules)
	if err != nil {
		return err
	}
	exitRules, err := json.Marshal(eval.ExitRules)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(eval.Snapshot)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO rule_evaluations (pair, timestamp, bar_open_time, entry_rules,
		exit_rules, entry_pass, any_exit_pass, exit_reason, snapshot)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query,
		eval.Pair, eval.Timestamp.UnixMilli(), eval.BarOpenTime.UnixMilli(),
		string(entryRules), string(exitRules), eval.EntryPass, eval.AnyExitPass,
		eval.ExitReason, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule evaluation for %s: %w", eval.Pair, err)
	}
	return nil
}

// Close gracefully closes the database connection.
func (s *OrderStore) Close() error {
	return s.db.Close()
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
