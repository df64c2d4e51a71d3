// Package storage keeps uploaded and generated image files behind one interface so the
// API can run against a local directory or an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

type Area string

const (
	AreaUploads   Area = "uploads"
	AreaGenerated Area = "generated"
)

var (
	ErrNotFound   = errors.New("file not found")
	ErrInvalidKey = errors.New("invalid file key")
)

type Object struct {
	Key         string
	Size        int64
	ModTime     time.Time
	ContentType string
}

type FileStore interface {
	// Put stores r under area/name and returns the resulting key.
	Put(ctx context.Context, area Area, name string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Stat(ctx context.Context, key string) (Object, error)
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, area Area) ([]Object, error)
}

// Key joins an area and a relative name, rejecting anything that escapes the area.
func Key(area Area, name string) (string, error) {
	if area != AreaUploads && area != AreaGenerated {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + name)
	if cleaned == "/" || strings.Contains(name, "\x00") {
		return "", ErrInvalidKey
	}
	return string(area) + cleaned, nil
}

// ParseKey splits a key produced by Key back into area and name.
func ParseKey(key string) (Area, string, error) {
	area, name, ok := strings.Cut(key, "/")
	if !ok {
		return "", "", ErrInvalidKey
	}
	normalized, err := Key(Area(area), name)
	if err != nil || normalized != key {
		return "", "", ErrInvalidKey
	}
	return Area(area), name, nil
}

// URL is the public path a stored key is served from.
func URL(key string) string {
	return "/" + key
}

// KeyFromURL reverses URL. Absolute or foreign URLs are not store keys.
func KeyFromURL(link string) (string, bool) {
	if !strings.HasPrefix(link, "/") {
		return "", false
	}
	key := strings.TrimPrefix(link, "/")
	if _, _, err := ParseKey(key); err != nil {
		return "", false
	}
	return key, true
}

// NormalizeURL turns an absolute http(s) URL that points at a stored file back into its
// relative form, so saved images reference uploads the same way however the client built
// the link. Anything else is returned unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return raw
	}
	if _, ok := KeyFromURL(u.Path); !ok {
		return raw
	}
	return u.Path
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName reduces a client supplied file name to a plain ASCII base name.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
