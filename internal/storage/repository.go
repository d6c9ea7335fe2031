package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or was soft deleted.
var ErrNotFound = errors.New("not found")

// ItemRecord is a recurring item together with its storage-only bookkeeping.
type ItemRecord struct {
	Item             core.RecurringItem
	LastMaterialized time.Time // zero when never materialized
	CreatedAt        time.Time
}

// PendingSyncTransaction is the minimal data the sync queue needs.
type PendingSyncTransaction struct {
	ID        int64
	CreatedAt time.Time
}

// ImportRecord tracks one processed statement import batch.
type ImportRecord struct {
	ID        int64
	Ref       string
	Filename  string
	Format    string
	RowCount  int
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateItem inserts a recurring item and returns its ID.
func (r *SQLiteRepository) CreateItem(ctx context.Context, it core.RecurringItem) (int64, error) {
	var fixed, target sql.NullInt64
	if it.FixedAmount != nil {
		fixed = sql.NullInt64{Int64: it.FixedAmount.Cents, Valid: true}
	}
	if it.TargetAmount != nil {
		target = sql.NullInt64{Int64: it.TargetAmount.Cents, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_items (
			kind, label, amount_cents, frequency, base_calculation,
			percentage, fixed_amount_cents, target_amount_cents,
			current_amount_cents, split_mode, active,
			start_year, start_month, start_day
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(it.Kind), it.Label, it.Amount.Cents, string(it.Frequency),
		string(it.BaseCalculation), it.Percentage, fixed, target,
		it.CurrentAmount.Cents, string(it.SplitMode), boolToInt(it.Active),
		it.StartDate.Year(), it.StartDate.Month(), it.StartDate.Day(),
	)
	if err != nil {
		return 0, fmt.Errorf("create recurring item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring item saved",
		"id", id,
		"kind", it.Kind,
		"label", it.Label,
		"split_mode", it.SplitMode)

	return id, nil
}

const itemColumns = `
	id, kind, label, amount_cents, frequency, base_calculation,
	percentage, fixed_amount_cents, target_amount_cents,
	current_amount_cents, split_mode, active,
	start_year, start_month, start_day, last_materialized, created_at`

// GetItem returns a single non-deleted item by ID.
func (r *SQLiteRepository) GetItem(ctx context.Context, id int64) (*ItemRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM recurring_items
		WHERE id = ? AND deleted_at IS NULL`, id)

	rec, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get recurring item: %w", err)
	}
	return rec, nil
}

// ListItems returns all non-deleted items, optionally filtered by kind.
func (r *SQLiteRepository) ListItems(ctx context.Context, kind string) ([]core.RecurringItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM recurring_items
		WHERE deleted_at IS NULL`
	args := []any{}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	defer rows.Close()

	var items []core.RecurringItem
	for rows.Next() {
		rec, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring item: %w", err)
		}
		items = append(items, rec.Item)
	}
	return items, rows.Err()
}

// ListActiveItems returns all active, non-deleted items with their
// materialization bookkeeping.
func (r *SQLiteRepository) ListActiveItems(ctx context.Context) ([]ItemRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM recurring_items
		WHERE deleted_at IS NULL AND active = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active recurring items: %w", err)
	}
	defer rows.Close()

	var records []ItemRecord
	for rows.Next() {
		rec, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring item: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// SetItemActive toggles an item's active flag.
func (r *SQLiteRepository) SetItemActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set item active: %w", err)
	}
	return requireRow(res)
}

// UpdateItemCurrentAmount replaces a provision's accumulated amount.
func (r *SQLiteRepository) UpdateItemCurrentAmount(ctx context.Context, id int64, cents int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET current_amount_cents = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, cents, id)
	if err != nil {
		return fmt.Errorf("update current amount: %w", err)
	}
	return requireRow(res)
}

// UpdateItemLastMaterialized records when an item last produced a transaction.
func (r *SQLiteRepository) UpdateItemLastMaterialized(ctx context.Context, id int64, t time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET last_materialized = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, t.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last materialized: %w", err)
	}
	return requireRow(res)
}

// SoftDeleteItem marks an item deleted without removing its transactions.
func (r *SQLiteRepository) SoftDeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete item: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recurring item soft deleted", "id", id)
	return nil
}

// CreateTransaction inserts a materialized or imported transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var itemID sql.NullInt64
	if t.ItemID != nil {
		itemID = sql.NullInt64{Int64: *t.ItemID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			year, month, day, label, amount_cents,
			member1_cents, member2_cents, item_id, import_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.Year(), t.Date.Month(), t.Date.Day(), t.Label, t.Amount.Cents,
		t.MemberOne.Cents, t.MemberTwo.Cents, itemID, t.ImportRef,
	)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"label", t.Label,
		"amount_cents", t.Amount.Cents,
		"year", t.Date.Year(),
		"month", t.Date.Month())

	return id, nil
}

// GetTransaction returns a single non-deleted transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, year, month, day, label, amount_cents,
		       member1_cents, member2_cents, item_id, import_ref
		FROM transactions
		WHERE id = ? AND deleted_at IS NULL`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the non-deleted transactions of a month.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, year, month, day, label, amount_cents,
		       member1_cents, member2_cents, item_id, import_ref
		FROM transactions
		WHERE year = ? AND month = ? AND deleted_at IS NULL
		ORDER BY day, id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// MonthTotal sums the non-deleted transactions of a month.
func (r *SQLiteRepository) MonthTotal(ctx context.Context, year, month int) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE year = ? AND month = ? AND deleted_at IS NULL`, year, month).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("month total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// HasMaterialized reports whether an item already produced a transaction for
// the given month. Guards against double materialization.
func (r *SQLiteRepository) HasMaterialized(ctx context.Context, itemID int64, year, month int) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE item_id = ? AND year = ? AND month = ? AND deleted_at IS NULL`,
		itemID, year, month).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check materialized: %w", err)
	}
	return n > 0, nil
}

// GetPendingSyncTransactions returns transactions not yet exported to the
// ledger, oldest first.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at
		FROM transactions
		WHERE synced = 0 AND sync_error = 0 AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncTransaction
	for rows.Next() {
		var p PendingSyncTransaction
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks a transaction as successfully exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction as having export errors.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}

	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

// CreateImport records a processed import batch.
func (r *SQLiteRepository) CreateImport(ctx context.Context, ref, filename, format string, rowCount int) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO imports (ref, filename, format, row_count)
		VALUES (?, ?, ?, ?)`, ref, filename, format, rowCount); err != nil {
		return fmt.Errorf("create import record: %w", err)
	}

	slog.InfoContext(ctx, "Import batch recorded",
		"import_ref", ref,
		"filename", filename,
		"rows", rowCount)
	return nil
}

// ListImports returns import batches, newest first.
func (r *SQLiteRepository) ListImports(ctx context.Context) ([]ImportRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ref, filename, format, row_count, created_at
		FROM imports
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var imports []ImportRecord
	for rows.Next() {
		var rec ImportRecord
		if err := rows.Scan(&rec.ID, &rec.Ref, &rec.Filename, &rec.Format, &rec.RowCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import record: %w", err)
		}
		imports = append(imports, rec)
	}
	return imports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*ItemRecord, error) {
	var (
		rec              ItemRecord
		kind, freq       string
		base, split      string
		fixed, target    sql.NullInt64
		active           int
		sy, sm, sd       int
		lastMaterialized sql.NullTime
	)
	err := row.Scan(
		&rec.Item.ID, &kind, &rec.Item.Label, &rec.Item.Amount.Cents, &freq,
		&base, &rec.Item.Percentage, &fixed, &target,
		&rec.Item.CurrentAmount.Cents, &split, &active,
		&sy, &sm, &sd, &lastMaterialized, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Item.Kind = core.ItemKind(kind)
	rec.Item.Frequency = core.Frequency(freq)
	rec.Item.BaseCalculation = core.BaseCalculation(base)
	rec.Item.SplitMode = core.SplitMode(split)
	rec.Item.Active = active != 0
	rec.Item.StartDate = core.NewDate(sy, sm, sd)
	if fixed.Valid {
		rec.Item.FixedAmount = &core.Money{Cents: fixed.Int64}
	}
	if target.Valid {
		rec.Item.TargetAmount = &core.Money{Cents: target.Int64}
	}
	if lastMaterialized.Valid {
		rec.LastMaterialized = lastMaterialized.Time
	}
	return &rec, nil
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t       core.Transaction
		y, m, d int
		itemID  sql.NullInt64
	)
	err := row.Scan(
		&t.ID, &y, &m, &d, &t.Label, &t.Amount.Cents,
		&t.MemberOne.Cents, &t.MemberTwo.Cents, &itemID, &t.ImportRef,
	)
	if err != nil {
		return nil, err
	}
	t.Date = core.NewDate(y, m, d)
	if itemID.Valid {
		id := itemID.Int64
		t.ItemID = &id
	}
	return &t, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
