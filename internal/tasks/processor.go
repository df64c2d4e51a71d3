package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/metrics"
	"github.com/divyandj/IMAGE-Hackathon/internal/models"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

// rebuildLimit bounds how many images the leaderboard keeps after a rebuild.
const rebuildLimit = 1000

type Leaderboard interface {
	Seed(ctx context.Context, imageID string) error
	Rebuild(ctx context.Context, images []models.Image) error
}

type Processor struct {
	images      repository.ImageRepository
	files       storage.FileStore
	leaderboard Leaderboard
	orphanTTL   time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewProcessor builds a Processor. leaderboard may be nil, in which case leaderboard work is skipped.
func NewProcessor(images repository.ImageRepository, files storage.FileStore, leaderboard Leaderboard, orphanTTL time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		images:      images,
		files:       files,
		leaderboard: leaderboard,
		orphanTTL:   orphanTTL,
		now:         time.Now,
		logger:      logger.With().Str("component", "tasks").Logger(),
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable task")
		return nil
	}
	return p.Run(ctx, task)
}

func (p *Processor) Run(ctx context.Context, task queue.Task) error {
	var err error
	switch task.Type {
	case queue.TaskImageSaved:
		err = p.handleImageSaved(ctx, task)
	case queue.TaskLeaderboardRebuild:
		err = p.handleLeaderboardRebuild(ctx)
	case queue.TaskUploadsCleanup:
		_, err = p.CleanupUploads(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
	metrics.RecordTask(task.Type, err)
	return err
}

func (p *Processor) handleImageSaved(ctx context.Context, task queue.Task) error {
	img, err := p.images.GetByID(ctx, task.ImageID)
	if errors.Is(err, repository.ErrImageNotFound) {
		p.logger.Warn().Str("image_id", task.ImageID).Msg("saved image no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load image %s: %w", task.ImageID, err)
	}

	if key, ok := storage.KeyFromURL(img.URL); ok {
		if _, err := p.files.Stat(ctx, key); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("stat %s: %w", key, err)
			}
			p.logger.Warn().Str("image_id", img.ID).Str("url", img.URL).Msg("saved image points at a missing file")
		}
	}

	if p.leaderboard != nil {
		if err := p.leaderboard.Seed(ctx, img.ID); err != nil {
			return err
		}
	}
	p.logger.Debug().Str("image_id", img.ID).Msg("image saved task done")
	return nil
}

func (p *Processor) handleLeaderboardRebuild(ctx context.Context) error {
	if p.leaderboard == nil {
		return nil
	}
	top, err := p.images.TopLiked(ctx, rebuildLimit)
	if err != nil {
		return fmt.Errorf("load top liked: %w", err)
	}
	if err := p.leaderboard.Rebuild(ctx, top); err != nil {
		return err
	}
	p.logger.Info().Int("images", len(top)).Msg("leaderboard rebuilt")
	return nil
}

// CleanupUploads removes uploaded files older than the orphan TTL that no saved image
// references. It returns the number of files removed.
func (p *Processor) CleanupUploads(ctx context.Context) (int, error) {
	objects, err := p.files.List(ctx, storage.AreaUploads)
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	cutoff := p.now().Add(-p.orphanTTL)
	removed := 0
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}
		_, err := p.images.FindByURL(ctx, storage.URL(obj.Key))
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrImageNotFound) {
			return removed, fmt.Errorf("lookup %s: %w", obj.Key, err)
		}
		if err := p.files.Remove(ctx, obj.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, fmt.Errorf("remove %s: %w", obj.Key, err)
		}
		removed++
	}

	p.logger.Info().Int("removed", removed).Int("scanned", len(objects)).Msg("upload cleanup finished")
	return removed, nil
}
