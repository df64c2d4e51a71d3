package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TaskImageSaved         = "image.saved"
	TaskLeaderboardRebuild = "leaderboard.rebuild"
	TaskUploadsCleanup     = "uploads.cleanup"
)

// Task is one unit of background work carried on the stream as flat string fields.
type Task struct {
	Type       string `json:"type"`
	ImageID    string `json:"image_id,omitempty"`
	URL        string `json:"url,omitempty"`
	EnqueuedAt string `json:"enqueued_at,omitempty"`
}

func (t Task) values() map[string]any {
	values := map[string]any{"type": t.Type}
	if t.ImageID != "" {
		values["image_id"] = t.ImageID
	}
	if t.URL != "" {
		values["url"] = t.URL
	}
	enqueuedAt := t.EnqueuedAt
	if enqueuedAt == "" {
		enqueuedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	values["enqueued_at"] = enqueuedAt
	return values
}

// DecodeTask reads a Task back from stream message values.
func DecodeTask(values map[string]any) (Task, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, err
	}
	if task.Type == "" {
		return Task{}, fmt.Errorf("task without type")
	}
	return task, nil
}
