package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
	"github.com/divyandj/IMAGE-Hackathon/internal/cache"
	"github.com/divyandj/IMAGE-Hackathon/internal/events"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
)

func validSave() SaveInput {
	return SaveInput{Title: "Fox", Category: "Animals", URL: "/generated/fox.png", Prompt: "a red fox"}
}

func TestSaveStoresImageWithZeroLikes(t *testing.T) {
	images := repository.NewMemoryImageRepository()
	feed := &fakeFeed{}
	tasks := &fakeQueue{}
	svc := NewGalleryService(images, nil, feed, tasks, zerolog.Nop())

	id, err := svc.Save(context.Background(), "user-1", validSave())
	require.NoError(t, err)

	img, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", img.UserID)
	assert.Equal(t, "Fox", img.Title)
	assert.Zero(t, img.Likes)

	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, queue.TaskImageSaved, tasks.tasks[0].Type)
	assert.Equal(t, id, tasks.tasks[0].ImageID)

	require.Len(t, feed.events, 1)
	assert.Equal(t, events.TypeImageSaved, feed.events[0].Type)
	assert.Equal(t, id, feed.events[0].ImageID)
}

func TestSaveStoresAbsoluteFileLinksAsRelative(t *testing.T) {
	images := repository.NewMemoryImageRepository()
	tasks := &fakeQueue{}
	svc := NewGalleryService(images, nil, nil, tasks, zerolog.Nop())

	input := validSave()
	input.URL = "http://localhost:5000/uploads/2abc_fox.png"
	id, err := svc.Save(context.Background(), "user-1", input)
	require.NoError(t, err)

	img, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/2abc_fox.png", img.URL)
	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, "/uploads/2abc_fox.png", tasks.tasks[0].URL)

	input.URL = "https://cdn.example.com/pictures/fox.png"
	id, err = svc.Save(context.Background(), "user-1", input)
	require.NoError(t, err)
	img, err = svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, input.URL, img.URL)
}

func TestSaveRequiresAllFields(t *testing.T) {
	svc := NewGalleryService(repository.NewMemoryImageRepository(), nil, nil, nil, zerolog.Nop())

	for _, mutate := range []func(*SaveInput){
		func(in *SaveInput) { in.Title = "" },
		func(in *SaveInput) { in.Category = " " },
		func(in *SaveInput) { in.URL = "" },
		func(in *SaveInput) { in.Prompt = "" },
	} {
		in := validSave()
		mutate(&in)
		_, err := svc.Save(context.Background(), "u", in)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Equal(t, "Missing required fields", apperr.PublicMessage(err))
	}
}

func TestGalleryListings(t *testing.T) {
	svc := NewGalleryService(repository.NewMemoryImageRepository(), nil, nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Save(ctx, "alice", validSave())
	require.NoError(t, err)
	_, err = svc.Save(ctx, "bob", validSave())
	require.NoError(t, err)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].UserID)

	none, err := svc.ByUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestToggleLikeRoundTrip(t *testing.T) {
	board := &fakeLeaderboard{}
	feed := &fakeFeed{}
	svc := NewGalleryService(repository.NewMemoryImageRepository(), board, feed, nil, zerolog.Nop())
	ctx := context.Background()

	id, err := svc.Save(ctx, "owner", validSave())
	require.NoError(t, err)

	res, err := svc.ToggleLike(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Likes)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, board.likes[id])

	res, err = svc.ToggleLike(ctx, id, "alice")
	require.NoError(t, err)
	assert.Zero(t, res.Likes)
	assert.False(t, res.Liked)
	assert.Zero(t, board.likes[id])

	require.Len(t, feed.events, 3)
	last := feed.events[2]
	assert.Equal(t, events.TypeImageLiked, last.Type)
	require.NotNil(t, last.Liked)
	assert.False(t, *last.Liked)
}

func TestToggleLikeUnknownImage(t *testing.T) {
	svc := NewGalleryService(repository.NewMemoryImageRepository(), nil, nil, nil, zerolog.Nop())

	_, err := svc.ToggleLike(context.Background(), "nope", "alice")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Image not found", apperr.PublicMessage(err))
}

func TestTopUsesLeaderboard(t *testing.T) {
	images := repository.NewMemoryImageRepository()
	board := &fakeLeaderboard{}
	svc := NewGalleryService(images, board, nil, nil, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.Save(ctx, "u", validSave())
	require.NoError(t, err)
	second, err := svc.Save(ctx, "u", validSave())
	require.NoError(t, err)

	board.entries = []cache.Entry{
		{ImageID: second, Likes: 9},
		{ImageID: "deleted", Likes: 5},
		{ImageID: first, Likes: 1},
	}

	top, err := svc.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, second, top[0].ID)
	assert.Equal(t, first, top[1].ID)
}

func TestTopFallsBackToStore(t *testing.T) {
	images := repository.NewMemoryImageRepository()
	board := &fakeLeaderboard{err: errors.New("redis down")}
	svc := NewGalleryService(images, board, nil, nil, zerolog.Nop())
	ctx := context.Background()

	low, err := svc.Save(ctx, "u", validSave())
	require.NoError(t, err)
	high, err := svc.Save(ctx, "u", validSave())
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, high, "alice")
	require.NoError(t, err)

	top, err := svc.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, high, top[0].ID)

	top, err = svc.Top(ctx, MaxTopLimit+100)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, low, top[1].ID)
}
