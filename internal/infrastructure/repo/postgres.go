package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"key2pay-backend/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const orderColumns = `order_id,status,total,currency,payment_method,transaction_id,
	billing_email,billing_phone,billing_country,billing_city,billing_state,billing_address,billing_zip,
	created_at,updated_at`

// PostgresRepo stores orders in PostgreSQL. Every mutation locks the order row
// and commits status, metadata and note changes in one transaction.
type PostgresRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepo opens dsn with driver ("postgres" for lib/pq, "pgx" for pgx)
// and applies pending migrations.
func NewPostgresRepo(driver, dsn string) (*PostgresRepo, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresRepoWithDB(db), nil
}

// NewPostgresRepoWithDB wraps an open handle without migrating it.
func NewPostgresRepoWithDB(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func Open(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := s.Scan(&o.OrderID, (*string)(&o.Status), &o.Total, &o.Currency, &o.PaymentMethod, &o.TransactionID,
		&o.BillingEmail, &o.BillingPhone, &o.BillingCountry, &o.BillingCity, &o.BillingState, &o.BillingAddress, &o.BillingZip,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepo) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (order_id) DO NOTHING`,
		o.OrderID, string(o.Status), o.Total, o.Currency, o.PaymentMethod, o.TransactionID,
		o.BillingEmail, o.BillingPhone, o.BillingCountry, o.BillingCity, o.BillingState, o.BillingAddress, o.BillingZip,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderExists
	}
	if err := insertMeta(ctx, tx, o.OrderID, o.Meta); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	return load(ctx, r.db, id, false)
}

func load(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT key, value FROM order_meta WHERE order_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		if o.Meta == nil {
			o.Meta = map[string]string{}
		}
		o.Meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `SELECT id, content, created_at FROM order_notes WHERE order_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		o.Notes = append(o.Notes, n)
	}
	return o, rows.Err()
}

// List returns order headers newest first; metadata and notes are not loaded.
func (r *PostgresRepo) List(ctx context.Context, page, pageSize int) ([]domain.Order, int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, order_id DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Order, 0, pageSize)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return out, total, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, note string) (*domain.Order, error) {
	return r.mutate(ctx, id, note, func(o *domain.Order) (map[string]string, error) {
		if err := expectStatus(o, from); err != nil {
			return nil, err
		}
		o.Status = to
		return nil, nil
	})
}

func (r *PostgresRepo) PaymentComplete(ctx context.Context, id string, from domain.OrderStatus, transactionID, note string) (*domain.Order, error) {
	return r.mutate(ctx, id, note, func(o *domain.Order) (map[string]string, error) {
		if err := expectStatus(o, from); err != nil {
			return nil, err
		}
		return completePayment(o, transactionID), nil
	})
}

func (r *PostgresRepo) AddNote(ctx context.Context, id, note string) (*domain.Order, error) {
	return r.mutate(ctx, id, note, func(*domain.Order) (map[string]string, error) { return nil, nil })
}

func (r *PostgresRepo) BeginPayment(ctx context.Context, id, paymentMethod string, meta map[string]string, note string) (*domain.Order, error) {
	return r.mutate(ctx, id, note, func(o *domain.Order) (map[string]string, error) {
		return beginPayment(o, paymentMethod, meta), nil
	})
}

func (r *PostgresRepo) mutate(ctx context.Context, id, note string, fn func(o *domain.Order) (map[string]string, error)) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	added, err := fn(o)
	if err != nil {
		return nil, err
	}
	now := r.now()
	o.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status=$2, payment_method=$3, transaction_id=$4, updated_at=$5 WHERE order_id=$1`,
		o.OrderID, string(o.Status), o.PaymentMethod, o.TransactionID, now); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if err := insertMeta(ctx, tx, o.OrderID, added); err != nil {
		return nil, err
	}
	if note != "" {
		n := domain.Note{ID: uuid.NewString(), Content: note, CreatedAt: now}
		if _, err := tx.ExecContext(ctx, `INSERT INTO order_notes (id, order_id, content, created_at) VALUES ($1,$2,$3,$4)`,
			n.ID, o.OrderID, n.Content, n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to insert order note: %w", err)
		}
		o.Notes = append(o.Notes, n)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return o, nil
}

func insertMeta(ctx context.Context, tx *sql.Tx, orderID string, meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO order_meta (order_id, key, value) VALUES ($1,$2,$3)
			ON CONFLICT (order_id, key) DO NOTHING`, orderID, k, meta[k]); err != nil {
			return fmt.Errorf("failed to insert order meta: %w", err)
		}
	}
	return nil
}
