package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/divyandj/IMAGE-Hackathon/internal/models"
)

const LeaderboardKey = "gallery:likes"

type Entry struct {
	ImageID string
	Likes   int
}

// Leaderboard mirrors per-image like counts in a sorted set. The store stays the source of
// truth; the set is rebuilt from it periodically.
type Leaderboard struct {
	client redis.Cmdable
	key    string
}

func NewLeaderboard(client redis.Cmdable) *Leaderboard {
	return &Leaderboard{client: client, key: LeaderboardKey}
}

func (l *Leaderboard) SetLikes(ctx context.Context, imageID string, likes int) error {
	err := l.client.ZAdd(ctx, l.key, redis.Z{Score: float64(likes), Member: imageID}).Err()
	if err != nil {
		return fmt.Errorf("leaderboard set %s: %w", imageID, err)
	}
	return nil
}

// Seed adds imageID with zero likes unless it is already ranked.
func (l *Leaderboard) Seed(ctx context.Context, imageID string) error {
	err := l.client.ZAddNX(ctx, l.key, redis.Z{Score: 0, Member: imageID}).Err()
	if err != nil {
		return fmt.Errorf("leaderboard seed %s: %w", imageID, err)
	}
	return nil
}

func (l *Leaderboard) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}

	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{ImageID: id, Likes: int(z.Score)})
	}
	return entries, nil
}

// Rebuild replaces the whole set with images in one transaction.
func (l *Leaderboard) Rebuild(ctx context.Context, images []models.Image) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.key)
		if len(images) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(images))
		for _, img := range images {
			members = append(members, redis.Z{Score: float64(img.Likes), Member: img.ID})
		}
		pipe.ZAdd(ctx, l.key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard rebuild: %w", err)
	}
	return nil
}
