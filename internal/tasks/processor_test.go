package tasks

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyandj/IMAGE-Hackathon/internal/models"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
	"github.com/divyandj/IMAGE-Hackathon/internal/service"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

type fakeLeaderboard struct {
	mu      sync.Mutex
	seeded  []string
	rebuilt []models.Image
}

func (f *fakeLeaderboard) Seed(_ context.Context, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded = append(f.seeded, imageID)
	return nil
}

func (f *fakeLeaderboard) Rebuild(_ context.Context, images []models.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilt = images
	return nil
}

type fixture struct {
	proc   *Processor
	images *repository.MemoryImageRepository
	files  *storage.LocalStore
	board  *fakeLeaderboard
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	images := repository.NewMemoryImageRepository()
	board := &fakeLeaderboard{}
	return fixture{
		proc:   NewProcessor(images, files, board, 24*time.Hour, zerolog.Nop()),
		images: images,
		files:  files,
		board:  board,
	}
}

func (f fixture) upload(t *testing.T, name string) string {
	t.Helper()
	key, err := f.files.Put(context.Background(), storage.AreaUploads, name, strings.NewReader("data"), 4, "image/png")
	require.NoError(t, err)
	return key
}

func TestImageSavedSeedsLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.upload(t, "a.png")
	id, err := f.images.Create(ctx, models.Image{URL: storage.URL(key)})
	require.NoError(t, err)

	require.NoError(t, f.proc.Run(ctx, queue.Task{Type: queue.TaskImageSaved, ImageID: id}))
	assert.Equal(t, []string{id}, f.board.seeded)
}

func TestImageSavedToleratesMissingImageAndFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.proc.Run(ctx, queue.Task{Type: queue.TaskImageSaved, ImageID: "gone"}))
	assert.Empty(t, f.board.seeded)

	id, err := f.images.Create(ctx, models.Image{URL: "/uploads/missing.png"})
	require.NoError(t, err)
	require.NoError(t, f.proc.Run(ctx, queue.Task{Type: queue.TaskImageSaved, ImageID: id}))
	assert.Equal(t, []string{id}, f.board.seeded)
}

func TestLeaderboardRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.images.Create(ctx, models.Image{URL: "/a.png"})
	require.NoError(t, err)
	b, err := f.images.Create(ctx, models.Image{URL: "/b.png"})
	require.NoError(t, err)
	_, err = f.images.ToggleLike(ctx, b, "u1")
	require.NoError(t, err)

	require.NoError(t, f.proc.Run(ctx, queue.Task{Type: queue.TaskLeaderboardRebuild}))
	require.Len(t, f.board.rebuilt, 2)
	assert.Equal(t, b, f.board.rebuilt[0].ID)
	assert.Equal(t, 1, f.board.rebuilt[0].Likes)
	assert.Equal(t, a, f.board.rebuilt[1].ID)
}

func TestCleanupUploadsRemovesOldOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orphan := f.upload(t, "orphan.png")
	kept := f.upload(t, "kept.png")
	_, err := f.images.Create(ctx, models.Image{URL: storage.URL(kept)})
	require.NoError(t, err)

	removed, err := f.proc.CleanupUploads(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "fresh uploads are kept")

	f.proc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	removed, err = f.proc.CleanupUploads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.files.Stat(ctx, orphan)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.files.Stat(ctx, kept)
	assert.NoError(t, err)
}

func TestCleanupUploadsKeepsFilesSavedByAbsoluteURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gallery := service.NewGalleryService(f.images, nil, nil, nil, zerolog.Nop())

	key := f.upload(t, "holiday.png")
	_, err := gallery.Save(ctx, "user-1", service.SaveInput{
		Title:    "Holiday",
		Category: "Travel",
		URL:      "http://localhost:6001" + storage.URL(key),
		Prompt:   "uploaded",
	})
	require.NoError(t, err)

	f.proc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	removed, err := f.proc.CleanupUploads(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = f.files.Stat(ctx, key)
	assert.NoError(t, err)
}

func TestHandleDecodesStreamMessage(t *testing.T) {
	f := newFixture(t)
	err := f.proc.Handle(context.Background(), redis.XMessage{
		ID:     "1-0",
		Values: map[string]any{"type": queue.TaskLeaderboardRebuild},
	})
	require.NoError(t, err)
	assert.NotNil(t, f.board.rebuilt)
}

func TestHandleDropsUnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.NoError(t, f.proc.Handle(ctx, redis.XMessage{ID: "1-0", Values: map[string]any{"type": "nope"}}))
	assert.NoError(t, f.proc.Handle(ctx, redis.XMessage{ID: "2-0", Values: map[string]any{"foo": "bar"}}))
}

func TestNilLeaderboardIsSkipped(t *testing.T) {
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	proc := NewProcessor(repository.NewMemoryImageRepository(), files, nil, time.Hour, zerolog.Nop())
	assert.NoError(t, proc.Run(context.Background(), queue.Task{Type: queue.TaskLeaderboardRebuild}))
}
