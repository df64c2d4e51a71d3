package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
	"github.com/divyandj/IMAGE-Hackathon/internal/generator"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

const (
	MinStoryScenes     = 1
	MaxStoryScenes     = 10
	DefaultStoryScenes = 3

	// SceneTimestampLayout renders as e.g. "March 04, 2025 - 09:15PM".
	SceneTimestampLayout = "January 02, 2006 - 03:04PM"
)

type GenerateInput struct {
	Prompt string
	Size   string
	Style  string
}

type GeneratedImage struct {
	URL    string
	Prompt string
}

type StoryScene struct {
	Text      string
	Image     string
	Prompt    string
	Timestamp string
}

type StoryResult struct {
	Introduction string
	Scenes       []StoryScene
}

// StudioService validates generation requests before handing them to the generator.
type StudioService struct {
	client  generator.Client
	uploads *UploadService
	now     func() time.Time
	log     zerolog.Logger
}

func NewStudioService(client generator.Client, uploads *UploadService, log zerolog.Logger) *StudioService {
	return &StudioService{
		client:  client,
		uploads: uploads,
		now:     time.Now,
		log:     log,
	}
}

func (s *StudioService) Generate(ctx context.Context, input GenerateInput) (GeneratedImage, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return GeneratedImage{}, apperr.Validation("Prompt is required")
	}

	res, err := s.client.GenerateImage(ctx, generator.GenerateInput{
		Prompt: input.Prompt,
		Size:   input.Size,
		Style:  input.Style,
	})
	if err != nil {
		return GeneratedImage{}, apperr.Generation("Image generation failed", err)
	}
	return GeneratedImage{URL: storage.URL(res.Path), Prompt: res.Prompt}, nil
}

func (s *StudioService) Modify(ctx context.Context, originalPrompt, modificationPrompt string) (GeneratedImage, error) {
	if strings.TrimSpace(originalPrompt) == "" || strings.TrimSpace(modificationPrompt) == "" {
		return GeneratedImage{}, apperr.Validation("Original and modification prompt required")
	}

	res, err := s.client.ModifyImage(ctx, originalPrompt, modificationPrompt)
	if err != nil {
		return GeneratedImage{}, apperr.Generation("Image modification failed", err)
	}
	return GeneratedImage{URL: storage.URL(res.Path), Prompt: res.Prompt}, nil
}

// Story checks the scene count before any generator call is made.
func (s *StudioService) Story(ctx context.Context, storyPrompt string, numImages int) (StoryResult, error) {
	if strings.TrimSpace(storyPrompt) == "" || numImages < MinStoryScenes || numImages > MaxStoryScenes {
		return StoryResult{}, apperr.Validation("Story prompt and valid number of images (1-10) are required")
	}

	story, err := s.client.GenerateStory(ctx, storyPrompt, numImages)
	if err != nil {
		return StoryResult{}, apperr.Generation("Story generation failed", err)
	}

	timestamp := s.now().Format(SceneTimestampLayout)
	scenes := make([]StoryScene, 0, len(story.Scenes))
	for _, scene := range story.Scenes {
		if scene.Path == "" {
			return StoryResult{}, apperr.Generation("Story generation failed", generator.ErrGenerationFailed)
		}
		scenes = append(scenes, StoryScene{
			Text:      scene.Text,
			Image:     storage.URL(scene.Path),
			Prompt:    scene.Prompt,
			Timestamp: timestamp,
		})
	}
	return StoryResult{Introduction: story.Introduction, Scenes: scenes}, nil
}

// Analyze stores the image in the uploads area and returns the provider's analysis verbatim.
func (s *StudioService) Analyze(ctx context.Context, input UploadInput) (json.RawMessage, error) {
	uploaded, err := s.uploads.Upload(ctx, input)
	if err != nil {
		return nil, err
	}

	analysis, err := s.client.AnalyzeImage(ctx, uploaded.Key)
	if err != nil {
		return nil, apperr.Generation("Image analysis failed", err)
	}
	return analysis, nil
}
