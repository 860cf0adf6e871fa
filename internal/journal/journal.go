// Package journal persists settlement receipts for end-of-day
// reconciliation. The journal is advisory: the dealer backend stays the
// source of truth and a journal failure never fails a settlement.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Open opens the connection pool and verifies it with a ping.
func Open(config DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		config.Host,
		config.Port,
		config.Database,
		config.User,
		config.Password,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Connected to PostgreSQL database: %s", config.Database)
	return db, nil
}

// Receipt is one journaled settlement line. Amounts are whole VND.
type Receipt struct {
	ID             string    `json:"id"`
	OrderID        int64     `json:"orderId"`
	Method         string    `json:"method"` // CASH or VNPAY
	Amount         int64     `json:"amount"`
	TotalCollected int64     `json:"totalCollected"`
	Remaining      int64     `json:"remaining"`
	ChangeAmount   int64     `json:"changeAmount"`
	PaymentStatus  string    `json:"paymentStatus"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository is a thin wrapper around *sql.DB intended for dependency
// injection. Schema is managed by migrations, not at runtime.
type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// InsertReceipt appends one settlement line.
func (r *Repository) InsertReceipt(ctx context.Context, rec Receipt) error {
	if r == nil || r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	query := `
        INSERT INTO receipts (id, order_id, method, amount, total_collected, remaining, change_amount, payment_status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID, rec.OrderID, rec.Method, rec.Amount,
		rec.TotalCollected, rec.Remaining, rec.ChangeAmount,
		rec.PaymentStatus, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	log.Printf("[DB] Journaled receipt %s for order %d", rec.ID, rec.OrderID)
	return nil
}

// ListByOrder returns the journal lines for one order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]Receipt, error) {
	if r == nil || r.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, order_id, method, amount, total_collected, remaining, change_amount, payment_status, created_at
        FROM receipts
        WHERE order_id = $1
        ORDER BY created_at ASC
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var rec Receipt
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.Method, &rec.Amount,
			&rec.TotalCollected, &rec.Remaining, &rec.ChangeAmount,
			&rec.PaymentStatus, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}
