package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/divyandj/IMAGE-Hackathon/internal/ids"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
)

// MemoryImageRepository keeps images in process memory. Used by the "memory" store driver
// and by tests.
type MemoryImageRepository struct {
	mu      sync.RWMutex
	images  map[string]*memoryImage
	ordered []string
}

type memoryImage struct {
	image   models.Image
	likedBy map[string]struct{}
}

func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{images: make(map[string]*memoryImage)}
}

func (r *MemoryImageRepository) Create(_ context.Context, image models.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	image.ID = ids.New()
	image.Likes = 0
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	r.images[image.ID] = &memoryImage{image: image, likedBy: make(map[string]struct{})}
	r.ordered = append(r.ordered, image.ID)
	return image.ID, nil
}

func (r *MemoryImageRepository) List(_ context.Context) ([]models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	images := make([]models.Image, 0, len(r.ordered))
	for _, id := range r.ordered {
		images = append(images, r.images[id].image)
	}
	return images, nil
}

func (r *MemoryImageRepository) ListByUser(_ context.Context, userID string) ([]models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	images := []models.Image{}
	for _, id := range r.ordered {
		if img := r.images[id].image; img.UserID == userID {
			images = append(images, img)
		}
	}
	return images, nil
}

func (r *MemoryImageRepository) GetByID(_ context.Context, id string) (models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.images[id]
	if !ok {
		return models.Image{}, ErrImageNotFound
	}
	return entry.image, nil
}

func (r *MemoryImageRepository) FindByURL(_ context.Context, url string) (models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.ordered {
		if img := r.images[id].image; img.URL == url {
			return img, nil
		}
	}
	return models.Image{}, ErrImageNotFound
}

func (r *MemoryImageRepository) ToggleLike(_ context.Context, imageID string, userID string) (models.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.images[imageID]
	if !ok {
		return models.LikeResult{}, ErrImageNotFound
	}

	_, liked := entry.likedBy[userID]
	if liked {
		delete(entry.likedBy, userID)
	} else {
		entry.likedBy[userID] = struct{}{}
	}
	entry.image.Likes = len(entry.likedBy)
	return models.LikeResult{ImageID: imageID, Likes: entry.image.Likes, Liked: !liked}, nil
}

func (r *MemoryImageRepository) TopLiked(ctx context.Context, limit int) ([]models.Image, error) {
	images, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Likes > images[j].Likes
	})
	if limit >= 0 && len(images) > limit {
		images = images[:limit]
	}
	return images, nil
}

type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return "", ErrEmailTaken
	}
	user.ID = ids.New()
	if user.Plan == "" {
		user.Plan = models.DefaultPlan
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user.ID, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func NewMemoryStore() *Store {
	noop := func(context.Context) error { return nil }
	return &Store{
		Images: NewMemoryImageRepository(),
		Users:  NewMemoryUserRepository(),
		Ping:   noop,
		Close:  noop,
	}
}
