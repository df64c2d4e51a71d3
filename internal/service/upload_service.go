package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
	"github.com/divyandj/IMAGE-Hackathon/internal/ids"
	"github.com/divyandj/IMAGE-Hackathon/internal/media/sniffer"
	"github.com/divyandj/IMAGE-Hackathon/internal/media/svg"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

type UploadInput struct {
	Filename string
	File     io.Reader
	Size     int64
}

type UploadResult struct {
	Key  string
	URL  string
	MIME string
}

type UploadService struct {
	files   storage.FileStore
	maxSize int64
	log     zerolog.Logger
}

func NewUploadService(files storage.FileStore, maxSize int64, log zerolog.Logger) *UploadService {
	return &UploadService{
		files:   files,
		maxSize: maxSize,
		log:     log,
	}
}

// Upload stores an image in the uploads area under a collision-free name derived from
// the client file name. The format is taken from the content, not the name.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.File == nil || strings.TrimSpace(input.Filename) == "" {
		return UploadResult{}, apperr.Validation("No selected file")
	}
	if input.Size > s.maxSize {
		return UploadResult{}, apperr.TooLarge("file exceeds the upload size limit")
	}

	detected, head, err := sniffer.Detect(input.File)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return UploadResult{}, apperr.Validation("unsupported image type")
		}
		return UploadResult{}, apperr.Internal(fmt.Errorf("read head: %w", err))
	}

	// One byte over the limit is enough to know the file is too large.
	data, err := io.ReadAll(io.LimitReader(io.MultiReader(bytes.NewReader(head), input.File), s.maxSize+1))
	if err != nil {
		return UploadResult{}, apperr.Internal(fmt.Errorf("read file: %w", err))
	}
	if int64(len(data)) > s.maxSize {
		return UploadResult{}, apperr.TooLarge("file exceeds the upload size limit")
	}

	if detected.Type == sniffer.TypeSVG {
		clean, err := svg.Sanitize(data)
		if err != nil {
			return UploadResult{}, apperr.Validation("invalid svg document")
		}
		data = clean
	}

	name := uploadName(input.Filename, detected.Type)
	key, err := s.files.Put(ctx, storage.AreaUploads, name, bytes.NewReader(data), int64(len(data)), detected.MIME)
	if err != nil {
		return UploadResult{}, apperr.Internal(fmt.Errorf("store upload: %w", err))
	}

	s.log.Debug().Str("key", key).Str("type", string(detected.Type)).Int("bytes", len(data)).Msg("upload stored")
	return UploadResult{Key: key, URL: storage.URL(key), MIME: detected.MIME}, nil
}

func uploadName(filename string, mediaType sniffer.MediaType) string {
	base := storage.SafeName(filename)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s_%s.%s", ids.New(), base, mediaType.Ext())
}
