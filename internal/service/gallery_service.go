package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
	"github.com/divyandj/IMAGE-Hackathon/internal/cache"
	"github.com/divyandj/IMAGE-Hackathon/internal/events"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

const (
	DefaultTopLimit = 10
	MaxTopLimit     = 50
)

type Leaderboard interface {
	SetLikes(ctx context.Context, imageID string, likes int) error
	Top(ctx context.Context, limit int) ([]cache.Entry, error)
}

type SaveInput struct {
	Title    string
	Category string
	URL      string
	Prompt   string
}

// GalleryService owns saved images and likes. leaderboard, feed and queue are optional
// side channels; their failures are logged and never fail the request.
type GalleryService struct {
	images      repository.ImageRepository
	leaderboard Leaderboard
	feed        events.Publisher
	queue       queue.Enqueuer
	log         zerolog.Logger
}

func NewGalleryService(
	images repository.ImageRepository,
	leaderboard Leaderboard,
	feed events.Publisher,
	tasks queue.Enqueuer,
	log zerolog.Logger,
) *GalleryService {
	return &GalleryService{
		images:      images,
		leaderboard: leaderboard,
		feed:        feed,
		queue:       tasks,
		log:         log,
	}
}

func (s *GalleryService) Save(ctx context.Context, userID string, input SaveInput) (string, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Category = strings.TrimSpace(input.Category)
	input.URL = storage.NormalizeURL(strings.TrimSpace(input.URL))
	if input.Title == "" || input.Category == "" || input.URL == "" || strings.TrimSpace(input.Prompt) == "" {
		return "", apperr.Validation("Missing required fields")
	}

	image := models.Image{
		UserID:   userID,
		Title:    input.Title,
		Category: input.Category,
		URL:      input.URL,
		Prompt:   input.Prompt,
	}
	id, err := s.images.Create(ctx, image)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("create image: %w", err))
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, queue.Task{Type: queue.TaskImageSaved, ImageID: id, URL: image.URL}); err != nil {
			s.log.Warn().Err(err).Str("image_id", id).Msg("enqueue image saved failed")
		}
	}
	if s.feed != nil {
		s.feed.Publish(events.Event{
			Type:     events.TypeImageSaved,
			ImageID:  id,
			UserID:   userID,
			Title:    image.Title,
			Category: image.Category,
			URL:      image.URL,
		})
	}
	return id, nil
}

func (s *GalleryService) All(ctx context.Context) ([]models.Image, error) {
	images, err := s.images.List(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list images: %w", err))
	}
	return images, nil
}

func (s *GalleryService) ByUser(ctx context.Context, userID string) ([]models.Image, error) {
	images, err := s.images.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list images of %s: %w", userID, err))
	}
	return images, nil
}

func (s *GalleryService) Get(ctx context.Context, imageID string) (models.Image, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, apperr.NotFound("Image not found")
		}
		return models.Image{}, apperr.Internal(fmt.Errorf("load image: %w", err))
	}
	return image, nil
}

func (s *GalleryService) ToggleLike(ctx context.Context, imageID, userID string) (models.LikeResult, error) {
	res, err := s.images.ToggleLike(ctx, imageID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.LikeResult{}, apperr.NotFound("Image not found")
		}
		return models.LikeResult{}, apperr.Internal(fmt.Errorf("toggle like: %w", err))
	}

	if s.leaderboard != nil {
		if err := s.leaderboard.SetLikes(ctx, imageID, res.Likes); err != nil {
			s.log.Warn().Err(err).Str("image_id", imageID).Msg("leaderboard update failed")
		}
	}
	if s.feed != nil {
		liked := res.Liked
		s.feed.Publish(events.Event{
			Type:    events.TypeImageLiked,
			ImageID: imageID,
			UserID:  userID,
			Likes:   res.Likes,
			Liked:   &liked,
		})
	}
	return res, nil
}

// Top returns the most liked images. The leaderboard answers when available; the store is
// the fallback and the source of the returned records either way.
func (s *GalleryService) Top(ctx context.Context, limit int) ([]models.Image, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}

	if s.leaderboard != nil {
		images, err := s.topFromLeaderboard(ctx, limit)
		if err == nil && len(images) > 0 {
			return images, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("leaderboard unavailable, using store")
		}
	}

	images, err := s.images.TopLiked(ctx, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("top liked: %w", err))
	}
	return images, nil
}

func (s *GalleryService) topFromLeaderboard(ctx context.Context, limit int) ([]models.Image, error) {
	entries, err := s.leaderboard.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	images := make([]models.Image, 0, len(entries))
	for _, entry := range entries {
		image, err := s.images.GetByID(ctx, entry.ImageID)
		if errors.Is(err, repository.ErrImageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, nil
}
