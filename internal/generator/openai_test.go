package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

var tinyPNG = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 32)...)

type fakeProvider struct {
	mu           sync.Mutex
	imagePrompts []string
	imageBodies  []gjson.Result
	chatBodies   []gjson.Result
	chatReply    string
	imageStatus  int
	imageCalls   atomic.Int32
	delay        time.Duration
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	parsed := gjson.ParseBytes(body)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}

	switch r.URL.Path {
	case "/images/generations":
		n := f.imageCalls.Add(1)
		f.mu.Lock()
		f.imagePrompts = append(f.imagePrompts, parsed.Get("prompt").String())
		f.imageBodies = append(f.imageBodies, parsed)
		status := f.imageStatus
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"content policy violation"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{
				"b64_json":       base64.StdEncoding.EncodeToString(tinyPNG),
				"revised_prompt": fmt.Sprintf("revised #%d: %s", n, parsed.Get("prompt").String()),
			}},
		})
	case "/chat/completions":
		f.mu.Lock()
		f.chatBodies = append(f.chatBodies, parsed)
		reply := f.chatReply
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, provider *fakeProvider, timeout time.Duration) (*OpenAIClient, *storage.LocalStore) {
	t.Helper()
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	client := NewOpenAIClient(config.GeneratorConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		ImageModel:   "image-model",
		ChatModel:    "chat-model",
		VisionModel:  "vision-model",
		DefaultSize:  "1024x1024",
		DefaultStyle: "vivid",
		Timeout:      timeout,
		StoryWorkers: 3,
	}, files, zerolog.Nop())
	return client, files
}

func TestGenerateImageStoresFile(t *testing.T) {
	provider := &fakeProvider{}
	client, files := newTestClient(t, provider, 5*time.Second)

	res, err := client.GenerateImage(context.Background(), GenerateInput{Prompt: "a red fox"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Path, "generated/"))
	assert.True(t, strings.HasSuffix(res.Path, ".png"))
	assert.Equal(t, "revised #1: a red fox", res.Prompt)

	obj, err := files.Stat(context.Background(), res.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(tinyPNG)), obj.Size)

	require.Len(t, provider.imageBodies, 1)
	body := provider.imageBodies[0]
	assert.Equal(t, "image-model", body.Get("model").String())
	assert.Equal(t, "1024x1024", body.Get("size").String())
	assert.Equal(t, "vivid", body.Get("style").String())
	assert.Equal(t, "b64_json", body.Get("response_format").String())
}

func TestGenerateImageFoldsCustomStyleIntoPrompt(t *testing.T) {
	provider := &fakeProvider{}
	client, _ := newTestClient(t, provider, 5*time.Second)

	_, err := client.GenerateImage(context.Background(), GenerateInput{Prompt: "a castle", Size: "512x512", Style: "watercolor"})
	require.NoError(t, err)

	body := provider.imageBodies[0]
	assert.Equal(t, "a castle, watercolor style", body.Get("prompt").String())
	assert.Equal(t, "512x512", body.Get("size").String())
	assert.False(t, body.Get("style").Exists())
}

func TestGenerateImageProviderError(t *testing.T) {
	provider := &fakeProvider{imageStatus: http.StatusBadRequest}
	client, _ := newTestClient(t, provider, 5*time.Second)

	_, err := client.GenerateImage(context.Background(), GenerateInput{Prompt: "x"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "content policy violation")
}

func TestGenerateImageTimeout(t *testing.T) {
	provider := &fakeProvider{delay: time.Second}
	client, _ := newTestClient(t, provider, 50*time.Millisecond)

	start := time.Now()
	_, err := client.GenerateImage(context.Background(), GenerateInput{Prompt: "slow"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestModifyImageMergesPrompts(t *testing.T) {
	provider := &fakeProvider{chatReply: "  a blue fox in the snow  "}
	client, _ := newTestClient(t, provider, 5*time.Second)

	res, err := client.ModifyImage(context.Background(), "a red fox", "make it blue, add snow")
	require.NoError(t, err)
	assert.Equal(t, "revised #1: a blue fox in the snow", res.Prompt)

	require.Len(t, provider.chatBodies, 1)
	userMsg := provider.chatBodies[0].Get("messages.1.content").String()
	assert.Contains(t, userMsg, "a red fox")
	assert.Contains(t, userMsg, "make it blue, add snow")
	assert.Equal(t, []string{"a blue fox in the snow"}, provider.imagePrompts)
}

func TestGenerateStory(t *testing.T) {
	provider := &fakeProvider{chatReply: `{"introduction":"Once upon a time","scenes":[
		{"text":"A seed falls.","prompt":"seed falling"},
		{"text":"It sprouts.","prompt":"sprout"},
		{"text":"A tree grows.","prompt":"big tree"}]}`}
	client, files := newTestClient(t, provider, 5*time.Second)

	story, err := client.GenerateStory(context.Background(), "a tree", 3)
	require.NoError(t, err)

	assert.Equal(t, "Once upon a time", story.Introduction)
	require.Len(t, story.Scenes, 3)
	assert.Equal(t, "A seed falls.", story.Scenes[0].Text)
	assert.Equal(t, "It sprouts.", story.Scenes[1].Text)
	assert.Equal(t, "A tree grows.", story.Scenes[2].Text)
	for _, scene := range story.Scenes {
		assert.Contains(t, scene.Prompt, "revised #")
		_, err := files.Stat(context.Background(), scene.Path)
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(3), provider.imageCalls.Load())
	assert.Equal(t, "json_object", provider.chatBodies[0].Get("response_format.type").String())
}

func TestGenerateStoryTooFewScenes(t *testing.T) {
	provider := &fakeProvider{chatReply: `{"introduction":"x","scenes":[{"text":"only one","prompt":"p"}]}`}
	client, _ := newTestClient(t, provider, 5*time.Second)

	_, err := client.GenerateStory(context.Background(), "x", 2)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Zero(t, provider.imageCalls.Load())
}

func TestGenerateStoryFailsWhenAnySceneFails(t *testing.T) {
	provider := &fakeProvider{
		chatReply:   `{"introduction":"x","scenes":[{"text":"a","prompt":"a"},{"text":"b","prompt":"b"}]}`,
		imageStatus: http.StatusInternalServerError,
	}
	client, _ := newTestClient(t, provider, 5*time.Second)

	_, err := client.GenerateStory(context.Background(), "x", 2)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestAnalyzeImage(t *testing.T) {
	provider := &fakeProvider{chatReply: `{"description":"a fox","mood":"calm"}`}
	client, files := newTestClient(t, provider, 5*time.Second)

	key, err := files.Put(context.Background(), storage.AreaUploads, "fox.png", bytes.NewReader(tinyPNG), int64(len(tinyPNG)), "image/png")
	require.NoError(t, err)

	analysis, err := client.AnalyzeImage(context.Background(), key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"a fox","mood":"calm"}`, string(analysis))

	body := provider.chatBodies[0]
	assert.Equal(t, "vision-model", body.Get("model").String())
	url := body.Get("messages.1.content.1.image_url.url").String()
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestAnalyzeImageWrapsPlainText(t *testing.T) {
	provider := &fakeProvider{chatReply: "just a picture of a fox"}
	client, files := newTestClient(t, provider, 5*time.Second)

	key, err := files.Put(context.Background(), storage.AreaUploads, "fox.png", bytes.NewReader(tinyPNG), int64(len(tinyPNG)), "image/png")
	require.NoError(t, err)

	analysis, err := client.AnalyzeImage(context.Background(), key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"just a picture of a fox"}`, string(analysis))
}

func TestAnalyzeImageMissingFile(t *testing.T) {
	client, _ := newTestClient(t, &fakeProvider{}, 5*time.Second)

	_, err := client.AnalyzeImage(context.Background(), "uploads/missing.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
