package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/repository"
)

const accountsTable = "accounts"

var accountColumns = []string{
	"id",
	"email",
	"password_hash",
	"is_verified",
	"otp",
	"otp_expires_at",
	"created_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db      pgDB
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewAccountRepository constructs a repository backed by any pool that can open transactions.
func NewAccountRepository(db pgDB) *AccountRepository {
	return &AccountRepository{
		db:      db,
		exec:    db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		exec:    tx,
		builder: r.builder,
		now:     r.now,
	}
}

// FindByEmail retrieves the account registered under email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	var (
		rec          domain.AccountRecord
		otp          sql.NullString
		otpExpiresAt sql.NullTime
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&rec.ID,
		&rec.Email,
		&rec.PasswordHash,
		&rec.IsVerified,
		&otp,
		&otpExpiresAt,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	rec.OTP = nullableStringPtr(otp)
	rec.OTPExpiresAt = nullableTimePtr(otpExpiresAt)

	account, err := rec.Account()
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", rec.ID, err)
	}
	return &account, nil
}

// Insert stores a new account row.
func (r *AccountRepository) Insert(ctx context.Context, account domain.Account) (*domain.Account, error) {
	if account.State == nil {
		return nil, fmt.Errorf("insert account: %w", domain.ErrInvalidAccountRecord)
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = r.now().UTC()
	}

	rec := account.Record()
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			rec.ID,
			rec.Email,
			rec.PasswordHash,
			rec.IsVerified,
			optionalString(rec.OTP),
			optionalTime(rec.OTPExpiresAt),
			rec.CreatedAt,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return &account, nil
}

// Update rewrites the fields named by update. A state change rewrites the verification flag and
// both OTP columns in one statement.
func (r *AccountRepository) Update(ctx context.Context, email string, update domain.AccountUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	query := r.builder.Update(accountsTable).Where(squirrel.Eq{"email": email})
	if update.PasswordHash != nil {
		query = query.Set("password_hash", *update.PasswordHash)
	}
	if update.State != nil {
		verified, otp, expiresAt := domain.FlattenState(update.State)
		query = query.
			Set("is_verified", verified).
			Set("otp", optionalString(otp)).
			Set("otp_expires_at", optionalTime(expiresAt))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// WithEmailLock runs fn inside a transaction holding a transaction-scoped advisory lock derived
// from email. The lock also covers emails that have no row yet.
func (r *AccountRepository) WithEmailLock(ctx context.Context, email string, fn func(ctx context.Context, accounts port.AccountRepository) error) error {
	if r.db == nil {
		// Already inside a transaction; the enclosing lock holder owns the connection.
		if err := r.lock(ctx, email); err != nil {
			return err
		}
		return fn(ctx, r)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin account tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	scoped := r.WithTx(tx)
	if err := scoped.lock(ctx, email); err != nil {
		return err
	}
	if err := fn(ctx, scoped); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account tx: %w", err)
	}
	return nil
}

func (r *AccountRepository) lock(ctx context.Context, email string) error {
	if _, err := r.exec.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", email); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func optionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return (*value).UTC()
}

func nullableStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullableTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

var _ port.AccountRepository = (*AccountRepository)(nil)
