package repository

import (
	"context"
	"errors"

	"github.com/divyandj/IMAGE-Hackathon/internal/models"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("user already exists")
)

type ImageRepository interface {
	// Create inserts image with zero likes and returns the store-assigned id.
	Create(ctx context.Context, image models.Image) (string, error)
	// List returns every image in insertion order.
	List(ctx context.Context) ([]models.Image, error)
	ListByUser(ctx context.Context, userID string) ([]models.Image, error)
	GetByID(ctx context.Context, id string) (models.Image, error)
	FindByURL(ctx context.Context, url string) (models.Image, error)
	// ToggleLike adds userID to the image's likers, or removes it if already present,
	// adjusting the counter in the same atomic step.
	ToggleLike(ctx context.Context, imageID string, userID string) (models.LikeResult, error)
	TopLiked(ctx context.Context, limit int) ([]models.Image, error)
}

type UserRepository interface {
	// Create fails with ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user models.User) (string, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Images ImageRepository
	Users  UserRepository
	Ping   func(ctx context.Context) error
	Close  func(ctx context.Context) error
}
