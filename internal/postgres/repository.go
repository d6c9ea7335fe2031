package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
	"bilancio/internal/ledger"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Repository is the Postgres data backend. It mirrors the SQLite backend
// semantics (soft deletes, month-scoped listings) for multi-host setups.
type Repository struct {
	db *sql.DB
}

var (
	_ ledger.ItemWriter        = (*Repository)(nil)
	_ ledger.ItemReader        = (*Repository)(nil)
	_ ledger.TransactionWriter = (*Repository)(nil)
	_ ledger.TransactionReader = (*Repository)(nil)
)

func New(url string) (*Repository, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) SaveItem(ctx context.Context, it core.RecurringItem) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}

	var fixed, target sql.NullInt64
	if it.FixedAmount != nil {
		fixed = sql.NullInt64{Int64: it.FixedAmount.Cents, Valid: true}
	}
	if it.TargetAmount != nil {
		target = sql.NullInt64{Int64: it.TargetAmount.Cents, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO recurring_items (
			kind, label, amount_cents, frequency, base_calculation,
			percentage, fixed_amount_cents, target_amount_cents,
			current_amount_cents, split_mode, active,
			start_year, start_month, start_day
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		string(it.Kind), it.Label, it.Amount.Cents, string(it.Frequency),
		string(it.BaseCalculation), it.Percentage, fixed, target,
		it.CurrentAmount.Cents, string(it.SplitMode), it.Active,
		it.StartDate.Year(), it.StartDate.Month(), it.StartDate.Day(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create recurring item: %w", err)
	}

	slog.InfoContext(ctx, "Recurring item saved",
		"id", id,
		"kind", it.Kind,
		"label", it.Label)

	return id, nil
}

const itemColumns = `
	id, kind, label, amount_cents, frequency, base_calculation,
	percentage, fixed_amount_cents, target_amount_cents,
	current_amount_cents, split_mode, active,
	start_year, start_month, start_day`

func (r *Repository) GetItem(ctx context.Context, id int64) (core.RecurringItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM recurring_items
		WHERE id = $1 AND deleted_at IS NULL`, id)

	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.RecurringItem{}, ledger.ErrNotFound
		}
		return core.RecurringItem{}, fmt.Errorf("get recurring item: %w", err)
	}
	return it, nil
}

func (r *Repository) ListItems(ctx context.Context, kind core.ItemKind) ([]core.RecurringItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM recurring_items
		WHERE deleted_at IS NULL`
	args := []any{}
	if kind != "" {
		query += ` AND kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	defer rows.Close()

	var items []core.RecurringItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) SetItemActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET active = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL`, active, id)
	if err != nil {
		return fmt.Errorf("set item active: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete item: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) SaveTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var itemID sql.NullInt64
	if t.ItemID != nil {
		itemID = sql.NullInt64{Int64: *t.ItemID, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (
			year, month, day, label, amount_cents,
			member1_cents, member2_cents, item_id, import_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		t.Date.Year(), t.Date.Month(), t.Date.Day(), t.Label, t.Amount.Cents,
		t.MemberOne.Cents, t.MemberTwo.Cents, itemID, t.ImportRef,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

func (r *Repository) ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, year, month, day, label, amount_cents,
		       member1_cents, member2_cents, item_id, import_ref
		FROM transactions
		WHERE year = $1 AND month = $2 AND deleted_at IS NULL
		ORDER BY day, id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			y, m, d int
			itemID  sql.NullInt64
		)
		if err := rows.Scan(
			&t.ID, &y, &m, &d, &t.Label, &t.Amount.Cents,
			&t.MemberOne.Cents, &t.MemberTwo.Cents, &itemID, &t.ImportRef,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = core.NewDate(y, m, d)
		if itemID.Valid {
			id := itemID.Int64
			t.ItemID = &id
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *Repository) MonthTotal(ctx context.Context, year, month int) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE year = $1 AND month = $2 AND deleted_at IS NULL`, year, month).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("month total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (core.RecurringItem, error) {
	var (
		it            core.RecurringItem
		kind, freq    string
		base, split   string
		fixed, target sql.NullInt64
		sy, sm, sd    int
	)
	err := row.Scan(
		&it.ID, &kind, &it.Label, &it.Amount.Cents, &freq,
		&base, &it.Percentage, &fixed, &target,
		&it.CurrentAmount.Cents, &split, &it.Active,
		&sy, &sm, &sd,
	)
	if err != nil {
		return core.RecurringItem{}, err
	}

	it.Kind = core.ItemKind(kind)
	it.Frequency = core.Frequency(freq)
	it.BaseCalculation = core.BaseCalculation(base)
	it.SplitMode = core.SplitMode(split)
	it.StartDate = core.NewDate(sy, sm, sd)
	if fixed.Valid {
		it.FixedAmount = &core.Money{Cents: fixed.Int64}
	}
	if target.Valid {
		it.TargetAmount = &core.Money{Cents: target.Int64}
	}
	return it, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
