package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	emailConstraint        = "users_email_uniq"
	referralCodeConstraint = "users_referral_code_uniq"
)

const userColumns = `id, email, password_hash, name,
	COALESCE(notification_preference, ''), COALESCE(phone_number, ''),
	referral_code, wallet_balance, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (repo *UsersRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (repo *UsersRepo) Insert(ctx context.Context, u user.User) error {
	err := repo.observe("users.insert", func() error {
		_, e := repo.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, notification_preference, phone_number,
			referral_code, wallet_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
	`, u.ID, user.NormalizeEmail(u.Email), u.PasswordHash, u.Name, string(u.NotificationPreference), u.PhoneNumber,
			u.ReferralCode, u.WalletBalance, u.CreatedAt, u.UpdatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if IsUniqueViolation(err) && errors.As(err, &pgErr) {
			switch pgErr.ConstraintName {
			case emailConstraint:
				return user.ErrDuplicateEmail
			case referralCodeConstraint:
				return user.ErrDuplicateReferralCode
			}
		}
		return err
	}

	return nil
}

func (repo *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return repo.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (repo *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
}

func (repo *UsersRepo) GetByReferralCode(ctx context.Context, code string) (user.User, error) {
	return repo.getOne(ctx, "users.get_by_referral_code", `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, user.NormalizeReferralCode(code))
}

// CreditBalance is a single UPDATE, so the row lock taken by postgres orders
// concurrent credits on the same user.
func (repo *UsersRepo) CreditBalance(ctx context.Context, id string, amount int64) (user.User, error) {
	return repo.getOne(ctx, "users.credit_balance", `
		UPDATE users
		SET wallet_balance = wallet_balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, amount)
}

// DeductBalance locks the row, checks the balance and debits it in one
// transaction. A short balance is rejected, never clamped.
func (repo *UsersRepo) DeductBalance(ctx context.Context, id string, amount int64) (u user.User, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var balance int64
	err = repo.observe("users.deduct_balance.lock", func() error {
		return tx.QueryRow(ctx, `SELECT wallet_balance FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = user.ErrNotFound
		}
		return
	}

	if balance < amount {
		err = user.ErrInsufficientBalance
		return
	}

	err = repo.observe("users.deduct_balance.update", func() error {
		return scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET wallet_balance = wallet_balance - $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, amount), &u)
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func (repo *UsersRepo) Count(ctx context.Context) (int, error) {
	var n int

	err := repo.observe("users.count", func() error {
		return repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	})

	return n, err
}

func (repo *UsersRepo) Ping(ctx context.Context) error {
	return repo.pool.Ping(ctx)
}

func (repo *UsersRepo) getOne(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var u user.User

	err := repo.observe(op, func() error {
		return scanUser(repo.pool.QueryRow(ctx, query, args...), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func scanUser(row pgx.Row, u *user.User) error {
	var pref string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&pref,
		&u.PhoneNumber,
		&u.ReferralCode,
		&u.WalletBalance,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	u.NotificationPreference = user.NotificationPreference(pref)
	return err
}
