package service

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/divyandj/IMAGE-Hackathon/internal/cache"
	"github.com/divyandj/IMAGE-Hackathon/internal/events"
	"github.com/divyandj/IMAGE-Hackathon/internal/generator"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{7}, 64)...)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	err      error
	story    generator.Story
	analysis json.RawMessage
	analyzed []string
}

func (f *fakeGenerator) record() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeGenerator) GenerateImage(_ context.Context, in generator.GenerateInput) (generator.Result, error) {
	if err := f.record(); err != nil {
		return generator.Result{}, err
	}
	return generator.Result{Path: "generated/img.png", Prompt: "revised " + in.Prompt}, nil
}

func (f *fakeGenerator) ModifyImage(_ context.Context, original, modification string) (generator.Result, error) {
	if err := f.record(); err != nil {
		return generator.Result{}, err
	}
	return generator.Result{Path: "generated/mod.png", Prompt: original + " + " + modification}, nil
}

func (f *fakeGenerator) GenerateStory(_ context.Context, _ string, _ int) (generator.Story, error) {
	if err := f.record(); err != nil {
		return generator.Story{}, err
	}
	return f.story, nil
}

func (f *fakeGenerator) AnalyzeImage(_ context.Context, path string) (json.RawMessage, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.analyzed = append(f.analyzed, path)
	f.mu.Unlock()
	return f.analysis, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLeaderboard struct {
	mu      sync.Mutex
	likes   map[string]int
	entries []cache.Entry
	err     error
}

func (f *fakeLeaderboard) SetLikes(_ context.Context, imageID string, likes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likes == nil {
		f.likes = map[string]int{}
	}
	f.likes[imageID] = likes
	return nil
}

func (f *fakeLeaderboard) Top(_ context.Context, limit int) ([]cache.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

type fakeFeed struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeFeed) Publish(evt events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (f *fakeQueue) Enqueue(_ context.Context, task queue.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}
