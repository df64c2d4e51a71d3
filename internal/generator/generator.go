// Package generator talks to the external image generation provider.
package generator

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrGenerationFailed = errors.New("image generation failed")

type GenerateInput struct {
	Prompt string
	Size   string
	Style  string
}

// Result points at a generated image. Path is the file store key of the image.
type Result struct {
	Path   string
	Prompt string
}

type Scene struct {
	Text   string
	Path   string
	Prompt string
}

type Story struct {
	Introduction string
	Scenes       []Scene
}

type Client interface {
	GenerateImage(ctx context.Context, in GenerateInput) (Result, error)
	ModifyImage(ctx context.Context, originalPrompt, modificationPrompt string) (Result, error)
	// GenerateStory returns exactly count scenes, each with an image, or an error.
	GenerateStory(ctx context.Context, storyPrompt string, count int) (Story, error)
	// AnalyzeImage describes the stored image at path. The result is a JSON object.
	AnalyzeImage(ctx context.Context, path string) (json.RawMessage, error)
}
