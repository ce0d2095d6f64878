package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, customer_name, customer_phone, customer_email, amount, currency,
	status, payment_reference, payment_receipt_id, notes, items, created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerEmail,
		order.Amount,
		order.Currency,
		order.Status,
		order.PaymentReference,
		order.PaymentReceiptID,
		order.Notes,
		itemsJSON)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	return r.queryOrders(ctx, query, args...)
}

func (r *Repository) SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error {
	query := `UPDATE orders
	          SET payment_reference = $2, status = $3, updated_at = NOW()
	          WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, reference, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("set payment reference: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) UpdatePayment(ctx context.Context, id uuid.UUID, status domain.OrderStatus, receiptID *string) error {
	// The WHERE clause mirrors domain.CanTransitionTo: a PAID row only
	// accepts PAID (receipt re-affirmation) or SHIPPED, and SHIPPED or
	// CANCELLED rows never change here. Enforcing it in SQL closes the
	// race against a concurrent callback.
	query := `UPDATE orders
	          SET status = $2,
	              payment_receipt_id = COALESCE($3, payment_receipt_id),
	              updated_at = NOW()
	          WHERE id = $1 AND (
	              (status = 'PENDING' AND $2 IN ('PENDING', 'PAID', 'FAILED', 'CANCELLED')) OR
	              (status = 'FAILED' AND $2 IN ('PENDING', 'PAID', 'CANCELLED')) OR
	              (status = 'PAID' AND $2 IN ('PAID', 'SHIPPED'))
	          )`

	res, err := r.db.ExecContext(ctx, query, id, status, receiptID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing order from the downgrade guard firing.
		if _, getErr := r.GetOrderByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrPaidDowngrade
	}
	return nil
}

func (r *Repository) AppendNote(ctx context.Context, id uuid.UUID, note string) error {
	query := `UPDATE orders
	          SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
	              updated_at = NOW()
	          WHERE id = $1`

	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), note)
	res, err := r.db.ExecContext(ctx, query, id, line)
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	return checkAffected(res)
}

func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE status = $1 AND payment_reference <> '' AND updated_at < $2
	          ORDER BY updated_at ASC`

	return r.queryOrders(ctx, query, domain.OrderStatusPending, cutoff)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan order row: %w", scanErr)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CustomerName,
		&order.CustomerPhone,
		&order.CustomerEmail,
		&order.Amount,
		&order.Currency,
		&order.Status,
		&order.PaymentReference,
		&order.PaymentReceiptID,
		&order.Notes,
		&itemsJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return &order, nil
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
