package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/miniapp-auth/internal/domain"
)

// UserRepository defines persistence access for accounts and their security
// stamps. Stamp rotation is a single-row atomic update: once RotateSecurityStamp
// returns, every subsequent GetSecurityStamp observes the new value.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	FindByTelegramID(ctx context.Context, telegramID string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	GetSecurityStamp(ctx context.Context, userID string) (string, error)
	RotateSecurityStamp(ctx context.Context, userID, newStamp string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, telegram_id, username, first_name, last_name, email, password_hash,
        role, merchant_id, security_stamp, status, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, telegram_id, username, first_name, last_name, email, password_hash,
            role, merchant_id, security_stamp, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.MerchantID,
		user.SecurityStamp,
		user.Status,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) FindByTelegramID(ctx context.Context, telegramID string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id=$1`, telegramID)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) GetSecurityStamp(ctx context.Context, userID string) (string, error) {
	const query = `SELECT security_stamp FROM users WHERE id=$1`

	var stamp string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&stamp); err != nil {
		return "", err
	}
	return stamp, nil
}

func (r *userRepository) RotateSecurityStamp(ctx context.Context, userID, newStamp string) error {
	const query = `UPDATE users SET security_stamp=$1, updated_at=NOW() WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, newStamp, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) scanOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.MerchantID,
		&user.SecurityStamp,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
