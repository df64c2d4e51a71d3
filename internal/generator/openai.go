package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/ids"
	"github.com/divyandj/IMAGE-Hackathon/internal/media/sniffer"
	"github.com/divyandj/IMAGE-Hackathon/internal/metrics"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

const maxResponseSize = 32 << 20

const (
	modifyInstructions = "You rewrite image generation prompts. Merge the original prompt with the " +
		"requested modification into one detailed prompt. Reply with the prompt text only."

	storyInstructions = "You write short illustrated stories. Reply with a JSON object of the form " +
		`{"introduction": string, "scenes": [{"text": string, "prompt": string}]}` +
		" where each prompt is a self-contained image generation prompt for its scene."

	analyzeInstructions = "Analyze the image. Reply with a JSON object with the keys " +
		`"description", "objects", "colors", "mood" and "suggested_prompt".`
)

// nativeStyles are passed to the images API as is; any other style is folded into the prompt.
var nativeStyles = map[string]bool{"vivid": true, "natural": true}

// OpenAIClient implements Client against an OpenAI-compatible HTTP API and stores the
// resulting images in the generated area of a FileStore.
type OpenAIClient struct {
	cfg        config.GeneratorConfig
	httpClient *http.Client
	files      storage.FileStore
	log        zerolog.Logger
}

func NewOpenAIClient(cfg config.GeneratorConfig, files storage.FileStore, log zerolog.Logger) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.StoryWorkers <= 0 {
		cfg.StoryWorkers = 1
	}
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		files:      files,
		log:        log.With().Str("component", "generator").Logger(),
	}
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, in GenerateInput) (res Result, err error) {
	defer c.observe("generate", time.Now(), &err)

	if strings.TrimSpace(in.Prompt) == "" {
		return Result{}, fmt.Errorf("%w: empty prompt", ErrGenerationFailed)
	}
	return c.generate(ctx, in)
}

func (c *OpenAIClient) ModifyImage(ctx context.Context, originalPrompt, modificationPrompt string) (res Result, err error) {
	defer c.observe("modify", time.Now(), &err)

	merged, err := c.chat(ctx, c.cfg.ChatModel, false, []any{
		message("system", modifyInstructions),
		message("user", fmt.Sprintf("Original prompt: %s\nModification: %s", originalPrompt, modificationPrompt)),
	})
	if err != nil {
		return Result{}, err
	}
	merged = strings.TrimSpace(merged)
	if merged == "" {
		merged = originalPrompt + ", " + modificationPrompt
	}
	return c.generate(ctx, GenerateInput{Prompt: merged})
}

func (c *OpenAIClient) GenerateStory(ctx context.Context, storyPrompt string, count int) (story Story, err error) {
	defer c.observe("story", time.Now(), &err)

	if count < 1 {
		return Story{}, fmt.Errorf("%w: scene count %d", ErrGenerationFailed, count)
	}

	content, err := c.chat(ctx, c.cfg.ChatModel, true, []any{
		message("system", storyInstructions),
		message("user", fmt.Sprintf("Write a story in exactly %d scenes about: %s", count, storyPrompt)),
	})
	if err != nil {
		return Story{}, err
	}

	parsed := gjson.Parse(content)
	scenes := parsed.Get("scenes").Array()
	if len(scenes) < count {
		return Story{}, fmt.Errorf("%w: provider returned %d of %d scenes", ErrGenerationFailed, len(scenes), count)
	}

	story = Story{
		Introduction: parsed.Get("introduction").String(),
		Scenes:       make([]Scene, count),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.StoryWorkers)
	for i := 0; i < count; i++ {
		text := scenes[i].Get("text").String()
		prompt := scenes[i].Get("prompt").String()
		if prompt == "" {
			prompt = text
		}
		g.Go(func() error {
			img, err := c.generate(gctx, GenerateInput{Prompt: prompt})
			if err != nil {
				return fmt.Errorf("scene %d: %w", i+1, err)
			}
			story.Scenes[i] = Scene{Text: text, Path: img.Path, Prompt: img.Prompt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Story{}, err
	}

	for i, scene := range story.Scenes {
		if scene.Path == "" {
			return Story{}, fmt.Errorf("%w: scene %d has no image", ErrGenerationFailed, i+1)
		}
	}
	return story, nil
}

func (c *OpenAIClient) AnalyzeImage(ctx context.Context, path string) (analysis json.RawMessage, err error) {
	defer c.observe("analyze", time.Now(), &err)

	rc, obj, err := c.files.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	contentType := obj.ContentType
	if detected, err := sniffer.DetectHead(data); err == nil {
		contentType = detected.MIME
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	content, err := c.chat(ctx, c.cfg.VisionModel, true, []any{
		message("system", analyzeInstructions),
		map[string]any{
			"role": "user",
			"content": []any{
				map[string]any{"type": "text", "text": "Analyze this image."},
				map[string]any{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return asJSONObject(content)
}

func (c *OpenAIClient) generate(ctx context.Context, in GenerateInput) (Result, error) {
	size := in.Size
	if size == "" {
		size = c.cfg.DefaultSize
	}
	style := in.Style
	if style == "" {
		style = c.cfg.DefaultStyle
	}

	prompt := in.Prompt
	body := map[string]any{
		"model":           c.cfg.ImageModel,
		"n":               1,
		"size":            size,
		"response_format": "b64_json",
	}
	if nativeStyles[style] {
		body["style"] = style
	} else if style != "" {
		prompt = fmt.Sprintf("%s, %s style", prompt, style)
	}
	body["prompt"] = prompt

	resp, err := c.post(ctx, "/images/generations", body)
	if err != nil {
		return Result{}, err
	}

	item := gjson.GetBytes(resp, "data.0")
	if !item.Exists() {
		return Result{}, fmt.Errorf("%w: response has no image", ErrGenerationFailed)
	}

	var data []byte
	if b64 := item.Get("b64_json").String(); b64 != "" {
		data, err = base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return Result{}, fmt.Errorf("%w: decode image: %w", ErrGenerationFailed, err)
		}
	} else if url := item.Get("url").String(); url != "" {
		data, err = c.download(ctx, url)
		if err != nil {
			return Result{}, err
		}
	} else {
		return Result{}, fmt.Errorf("%w: response has no image data", ErrGenerationFailed)
	}

	detected, err := sniffer.DetectHead(data)
	if err != nil || detected.Type == sniffer.TypeSVG {
		return Result{}, fmt.Errorf("%w: provider returned an unsupported image", ErrGenerationFailed)
	}

	name := ids.New() + "." + detected.Type.Ext()
	key, err := c.files.Put(ctx, storage.AreaGenerated, name, bytes.NewReader(data), int64(len(data)), detected.MIME)
	if err != nil {
		return Result{}, fmt.Errorf("store generated image: %w", err)
	}

	finalPrompt := item.Get("revised_prompt").String()
	if finalPrompt == "" {
		finalPrompt = prompt
	}
	return Result{Path: key, Prompt: finalPrompt}, nil
}

func (c *OpenAIClient) chat(ctx context.Context, model string, jsonMode bool, messages []any) (string, error) {
	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if jsonMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(resp, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: completion has no content", ErrGenerationFailed)
	}
	return content.String(), nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	return c.do(req)
}

func (c *OpenAIClient) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create download request: %w", ErrGenerationFailed, err)
	}
	return c.do(req)
}

func (c *OpenAIClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %w", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrGenerationFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: provider returned %d: %s", ErrGenerationFailed, resp.StatusCode, msg)
	}
	return respBody, nil
}

func (c *OpenAIClient) observe(operation string, start time.Time, errp *error) {
	duration := time.Since(start)
	metrics.RecordGeneration(operation, duration, *errp)
	if *errp != nil {
		c.log.Warn().Err(*errp).Str("operation", operation).Dur("duration", duration).Msg("generation failed")
	}
}

func message(role, content string) map[string]string {
	return map[string]string{"role": role, "content": content}
}

// asJSONObject returns content verbatim when it is a JSON object and wraps it otherwise.
func asJSONObject(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if gjson.Valid(trimmed) && gjson.Parse(trimmed).IsObject() {
		return json.RawMessage(trimmed), nil
	}
	wrapped, err := json.Marshal(map[string]string{"description": trimmed})
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}
