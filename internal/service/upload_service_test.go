package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyandj/IMAGE-Hackathon/internal/apperr"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

func newUploadService(t *testing.T, maxSize int64) (*UploadService, *storage.LocalStore) {
	t.Helper()
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewUploadService(files, maxSize, zerolog.Nop()), files
}

func TestUploadStoresPNG(t *testing.T) {
	svc, files := newUploadService(t, 1<<20)

	res, err := svc.Upload(context.Background(), UploadInput{
		Filename: "../My Holiday.jpg",
		File:     bytes.NewReader(pngBytes),
		Size:     int64(len(pngBytes)),
	})
	require.NoError(t, err)

	assert.Equal(t, "image/png", res.MIME)
	assert.True(t, strings.HasPrefix(res.Key, "uploads/"))
	assert.True(t, strings.HasSuffix(res.Key, "_My_Holiday.png"))
	assert.Equal(t, "/"+res.Key, res.URL)

	rc, _, err := files.Open(context.Background(), res.Key)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
}

func TestUploadNamesDoNotCollide(t *testing.T) {
	svc, _ := newUploadService(t, 1<<20)

	first, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", File: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", File: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
}

func TestUploadRejectsUnknownContent(t *testing.T) {
	svc, _ := newUploadService(t, 1<<20)

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "notes.png", File: strings.NewReader("plain text, not an image")})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUploadRequiresFile(t *testing.T) {
	svc, _ := newUploadService(t, 1<<20)

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "", File: bytes.NewReader(pngBytes)})
	require.Error(t, err)
	assert.Equal(t, "No selected file", apperr.PublicMessage(err))
}

func TestUploadTooLarge(t *testing.T) {
	svc, files := newUploadService(t, 16)

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "big.png", File: bytes.NewReader(pngBytes)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTooLarge, apperr.KindOf(err))

	_, err = svc.Upload(context.Background(), UploadInput{Filename: "big.png", File: bytes.NewReader(pngBytes), Size: 1 << 20})
	assert.Equal(t, apperr.KindTooLarge, apperr.KindOf(err))

	stored, err := files.List(context.Background(), storage.AreaUploads)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestUploadSanitizesSVG(t *testing.T) {
	svc, files := newUploadService(t, 1<<20)
	doc := `<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"><script>alert(2)</script><rect width="10" height="10"/></svg>`

	res, err := svc.Upload(context.Background(), UploadInput{Filename: "logo.svg", File: strings.NewReader(doc)})
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", res.MIME)

	rc, _, err := files.Open(context.Background(), res.Key)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.NotContains(t, string(stored), "<script")
	assert.NotContains(t, string(stored), "onload")
	assert.Contains(t, string(stored), "<rect")
}
