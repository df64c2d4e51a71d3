package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/divyandj/IMAGE-Hackathon/internal/ids"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
)

const imageColumns = `id, user_id, title, category, url, prompt, likes, created_at`

type PostgresImageRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresImageRepository(pool *pgxpool.Pool) *PostgresImageRepository {
	return &PostgresImageRepository{pool: pool}
}

func (r *PostgresImageRepository) Create(ctx context.Context, image models.Image) (string, error) {
	const query = `
		INSERT INTO images (
			id, user_id, title, category, url, prompt, likes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, 0, $7
		)
	`

	id := ids.New()
	createdAt := image.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		id,
		image.UserID,
		image.Title,
		image.Category,
		image.URL,
		image.Prompt,
		createdAt,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresImageRepository) FindByURL(ctx context.Context, url string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE url = $1 ORDER BY created_at LIMIT 1`
	return r.queryOne(ctx, query, url)
}

func (r *PostgresImageRepository) List(ctx context.Context) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images ORDER BY created_at, id`
	return r.queryMany(ctx, query)
}

func (r *PostgresImageRepository) ListByUser(ctx context.Context, userID string) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE user_id = $1 ORDER BY created_at, id`
	return r.queryMany(ctx, query, userID)
}

func (r *PostgresImageRepository) TopLiked(ctx context.Context, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images ORDER BY likes DESC, created_at LIMIT $1`
	return r.queryMany(ctx, query, limit)
}

func (r *PostgresImageRepository) ToggleLike(ctx context.Context, imageID string, userID string) (models.LikeResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Row lock serializes concurrent toggles on the same image.
	var likes int
	if err := tx.QueryRow(ctx, `SELECT likes FROM images WHERE id = $1 FOR UPDATE`, imageID).Scan(&likes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LikeResult{}, ErrImageNotFound
		}
		return models.LikeResult{}, err
	}

	cmd, err := tx.Exec(ctx, `
		INSERT INTO image_likes (image_id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (image_id, user_id) DO NOTHING
	`, imageID, userID)
	if err != nil {
		return models.LikeResult{}, err
	}

	liked := cmd.RowsAffected() == 1
	if liked {
		err = tx.QueryRow(ctx, `UPDATE images SET likes = likes + 1 WHERE id = $1 RETURNING likes`, imageID).Scan(&likes)
	} else {
		if _, err = tx.Exec(ctx, `DELETE FROM image_likes WHERE image_id = $1 AND user_id = $2`, imageID, userID); err != nil {
			return models.LikeResult{}, err
		}
		err = tx.QueryRow(ctx, `UPDATE images SET likes = GREATEST(likes - 1, 0) WHERE id = $1 RETURNING likes`, imageID).Scan(&likes)
	}
	if err != nil {
		return models.LikeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.LikeResult{}, fmt.Errorf("commit: %w", err)
	}
	return models.LikeResult{ImageID: imageID, Likes: likes, Liked: liked}, nil
}

func (r *PostgresImageRepository) queryOne(ctx context.Context, query string, args ...any) (models.Image, error) {
	image, err := scanImage(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

func (r *PostgresImageRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func scanImage(row pgx.Row) (models.Image, error) {
	var image models.Image
	err := row.Scan(
		&image.ID,
		&image.UserID,
		&image.Title,
		&image.Category,
		&image.URL,
		&image.Prompt,
		&image.Likes,
		&image.CreatedAt,
	)
	return image, err
}
