package models

import "time"

type Image struct {
	ID        string
	UserID    string
	Title     string
	Category  string
	URL       string
	Prompt    string
	Likes     int
	CreatedAt time.Time
}

// LikeResult is the state of an image after a like toggle by one user.
type LikeResult struct {
	ImageID string
	Likes   int
	Liked   bool
}
