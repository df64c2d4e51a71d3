package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/divyandj/IMAGE-Hackathon/internal/ids"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) (string, error) {
	const query = `
		INSERT INTO users (
			id, email, username, password_hash, credits, plan, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	id := ids.New()
	plan := user.Plan
	if plan == "" {
		plan = models.DefaultPlan
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		id,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Credits,
		plan,
		createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrEmailTaken
		}
		return "", err
	}
	return id, nil
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, email, username, password_hash, credits, plan, created_at
		FROM users WHERE email = $1
	`
	return r.queryOne(ctx, query, email)
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, email, username, password_hash, credits, plan, created_at
		FROM users WHERE id = $1
	`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresUserRepository) queryOne(ctx context.Context, query string, arg string) (models.User, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Credits,
		&user.Plan,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
