package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
)

func TestTaskValuesRoundTrip(t *testing.T) {
	task := Task{Type: TaskImageSaved, ImageID: "img-1", URL: "/uploads/a.png"}
	values := task.values()

	assert.Equal(t, TaskImageSaved, values["type"])
	assert.NotEmpty(t, values["enqueued_at"])

	decoded, err := DecodeTask(values)
	require.NoError(t, err)
	assert.Equal(t, task.Type, decoded.Type)
	assert.Equal(t, task.ImageID, decoded.ImageID)
	assert.Equal(t, task.URL, decoded.URL)
}

func TestTaskValuesOmitEmpty(t *testing.T) {
	values := Task{Type: TaskUploadsCleanup}.values()
	assert.NotContains(t, values, "image_id")
	assert.NotContains(t, values, "url")
}

func TestDecodeTaskRequiresType(t *testing.T) {
	_, err := DecodeTask(map[string]any{"image_id": "x"})
	assert.Error(t, err)
}

type recordingHandler struct {
	mu    sync.Mutex
	tasks []Task
	fail  bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	task, err := DecodeTask(msg.Values)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
	if h.fail {
		return fmt.Errorf("handler failure")
	}
	return nil
}

func (h *recordingHandler) seen() []Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Task(nil), h.tasks...)
}

func TestProducerConsumer(t *testing.T) {
	addr := os.Getenv("IMAGETALES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IMAGETALES_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	stream := fmt.Sprintf("test:tasks:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	handler := &recordingHandler{}
	consumer := NewConsumer(client, config.WorkerConfig{
		Stream:        stream,
		Group:         "test-group",
		Consumer:      "test-consumer",
		ClaimInterval: time.Second,
	}, zerolog.Nop(), handler)
	consumer.block = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	producer := NewProducer(client, stream)
	require.NoError(t, producer.Enqueue(context.Background(), Task{Type: TaskImageSaved, ImageID: "img-1"}))
	require.NoError(t, producer.Enqueue(context.Background(), Task{Type: TaskLeaderboardRebuild}))

	require.Eventually(t, func() bool { return len(handler.seen()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "img-1", handler.seen()[0].ImageID)
	assert.Equal(t, TaskLeaderboardRebuild, handler.seen()[1].Type)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	pending, err := client.XPending(context.Background(), stream, "test-group").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumerDropsPoisonMessages(t *testing.T) {
	addr := os.Getenv("IMAGETALES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IMAGETALES_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	stream := fmt.Sprintf("test:poison:%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	handler := &recordingHandler{fail: true}
	consumer := NewConsumer(client, config.WorkerConfig{
		Stream:        stream,
		Group:         "test-group",
		Consumer:      "test-consumer",
		ClaimInterval: 50 * time.Millisecond,
		MaxDeliveries: 2,
	}, zerolog.Nop(), handler)
	consumer.block = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	require.NoError(t, NewProducer(client, stream).Enqueue(context.Background(), Task{Type: TaskImageSaved, ImageID: "bad"}))

	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), stream, "test-group").Result()
		return err == nil && pending.Count == 0 && len(handler.seen()) >= 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	assert.Len(t, handler.seen(), 2)
}
