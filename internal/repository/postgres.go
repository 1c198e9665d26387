package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/yourorg/payment-settlement/internal/apperr"
	"github.com/yourorg/payment-settlement/internal/payment"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Schema creates the payments table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS payments (
	id               BIGSERIAL PRIMARY KEY,
	pg_order_id      VARCHAR(100) NOT NULL UNIQUE,
	user_id          VARCHAR(100) NOT NULL,
	product_id       BIGINT       NOT NULL,
	order_id         VARCHAR(100) NOT NULL DEFAULT '',
	total_amount     BIGINT       NOT NULL,
	pg_type          VARCHAR(20)  NOT NULL,
	pg_tid           VARCHAR(100) NOT NULL DEFAULT '',
	auth_token       TEXT         NOT NULL DEFAULT '',
	auth_result_code VARCHAR(100) NOT NULL DEFAULT '',
	payment_method   VARCHAR(50)  NOT NULL DEFAULT '',
	status           VARCHAR(20)  NOT NULL,
	memo             VARCHAR(500) NOT NULL DEFAULT '',
	metadata         TEXT,
	created_at       TIMESTAMPTZ  NOT NULL,
	updated_at       TIMESTAMPTZ  NOT NULL,
	approved_at      TIMESTAMPTZ,
	failed_at        TIMESTAMPTZ,
	version          BIGINT       NOT NULL DEFAULT 1
);
ALTER TABLE payments ALTER COLUMN auth_token TYPE TEXT;
CREATE INDEX IF NOT EXISTS idx_payments_user_created ON payments (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_payments_status ON payments (status);
CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments (order_id);
CREATE INDEX IF NOT EXISTS idx_payments_pg_tid ON payments (pg_tid);
`

const selectColumns = `
	SELECT id, pg_order_id, user_id, product_id, order_id, total_amount, pg_type,
	       pg_tid, auth_token, auth_result_code, payment_method, status, memo, metadata,
	       created_at, updated_at, approved_at, failed_at, version
	FROM payments`

// NewPostgresDB opens a pooled connection and verifies it with a ping.
func NewPostgresDB(ctx context.Context, connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresRepository is a PaymentRepository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

var _ PaymentRepository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresRepository{db: db}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrating payments schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Save(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return apperr.New(apperr.InvalidArgument, "payment cannot be nil")
	}
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}
	if p.ID == 0 {
		return r.insert(ctx, p, metadata)
	}
	return r.update(ctx, p, metadata)
}

func (r *PostgresRepository) insert(ctx context.Context, p *payment.Payment, metadata sql.NullString) error {
	query := `
		INSERT INTO payments (
			pg_order_id, user_id, product_id, order_id, total_amount, pg_type,
			pg_tid, auth_token, auth_result_code, payment_method, status, memo, metadata,
			created_at, updated_at, approved_at, failed_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.PgOrderID,
		p.UserID,
		p.ProductID,
		p.OrderID,
		p.TotalAmount,
		string(p.PGType),
		p.PgTid,
		p.AuthToken,
		p.AuthResultCode,
		p.PaymentMethod,
		string(p.Status),
		p.Memo,
		metadata,
		p.CreatedAt,
		p.UpdatedAt,
		p.ApprovedAt,
		p.FailedAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicatePgOrderID
		}
		return fmt.Errorf("inserting payment %s: %w", p.PgOrderID, err)
	}
	p.ID = id
	p.Version = 1
	return nil
}

func (r *PostgresRepository) update(ctx context.Context, p *payment.Payment, metadata sql.NullString) error {
	query := `
		UPDATE payments
		SET order_id = $1, pg_tid = $2, auth_token = $3, auth_result_code = $4,
		    payment_method = $5, status = $6, memo = $7, metadata = $8,
		    updated_at = $9, approved_at = $10, failed_at = $11, version = version + 1
		WHERE id = $12 AND version = $13
	`
	res, err := r.db.ExecContext(ctx, query,
		p.OrderID,
		p.PgTid,
		p.AuthToken,
		p.AuthResultCode,
		p.PaymentMethod,
		string(p.Status),
		p.Memo,
		metadata,
		p.UpdatedAt,
		p.ApprovedAt,
		p.FailedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("updating payment %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating payment %d: %w", p.ID, err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking payment %d: %w", p.ID, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	p.Version++
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*payment.Payment, error) {
	return r.queryOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByPgOrderID(ctx context.Context, pgOrderID string) (*payment.Payment, error) {
	return r.queryOne(ctx, selectColumns+` WHERE pg_order_id = $1`, pgOrderID)
}

func (r *PostgresRepository) FindByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	if orderID == "" {
		return nil, ErrNotFound
	}
	return r.queryOne(ctx, selectColumns+` WHERE order_id = $1 ORDER BY id LIMIT 1`, orderID)
}

func (r *PostgresRepository) FindByPgTid(ctx context.Context, pgTid string) (*payment.Payment, error) {
	if pgTid == "" {
		return nil, ErrNotFound
	}
	return r.queryOne(ctx, selectColumns+` WHERE pg_tid = $1 ORDER BY id LIMIT 1`, pgTid)
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) ([]*payment.Payment, error) {
	return r.queryMany(ctx, selectColumns+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *PostgresRepository) FindByUserIDAndStatus(ctx context.Context, userID string, status payment.Status) ([]*payment.Payment, error) {
	return r.queryMany(ctx, selectColumns+` WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC`, userID, string(status))
}

func (r *PostgresRepository) FindByStatus(ctx context.Context, status payment.Status) ([]*payment.Payment, error) {
	return r.queryMany(ctx, selectColumns+` WHERE status = $1 ORDER BY id`, string(status))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var (
		p          payment.Payment
		pgType     string
		status     string
		metadata   sql.NullString
		approvedAt sql.NullTime
		failedAt   sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.PgOrderID,
		&p.UserID,
		&p.ProductID,
		&p.OrderID,
		&p.TotalAmount,
		&pgType,
		&p.PgTid,
		&p.AuthToken,
		&p.AuthResultCode,
		&p.PaymentMethod,
		&status,
		&p.Memo,
		&metadata,
		&p.CreatedAt,
		&p.UpdatedAt,
		&approvedAt,
		&failedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.PGType = payment.PGType(pgType)
	p.Status = payment.Status(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		p.FailedAt = &t
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of payment %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*payment.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying payment: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*payment.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	out := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payments: %w", err)
	}
	return out, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, apperr.Wrap(apperr.InvalidArgument, "metadata is not JSON encodable", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
