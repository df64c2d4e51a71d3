// Package sniffer identifies image formats from their leading bytes. Client supplied
// Content-Type headers and file extensions are never trusted.
package sniffer

import (
	"bytes"
	"errors"
	"io"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
	TypeSVG  MediaType = "svg"
)

// HeadSize is how many bytes Detect needs to classify a stream.
const HeadSize = 512

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

// Ext is the file extension, without the dot, used when storing this type.
func (t MediaType) Ext() string {
	if t == TypeJPEG {
		return "jpg"
	}
	return string(t)
}

type signature struct {
	result Result
	match  func(head []byte) bool
}

// signatures are checked in order; SVG goes last since it is the loosest test.
var signatures = []signature{
	{Result{TypeJPEG, "image/jpeg"}, prefix("\xff\xd8\xff")},
	{Result{TypePNG, "image/png"}, prefix("\x89PNG\r\n\x1a\n")},
	{Result{TypeGIF, "image/gif"}, anyOf(prefix("GIF87a"), prefix("GIF89a"))},
	{Result{TypeWEBP, "image/webp"}, riff("WEBP")},
	{Result{TypeAVIF, "image/avif"}, isoBrand("avif")},
	{Result{TypeSVG, "image/svg+xml"}, svgDocument},
}

// Detect consumes up to HeadSize bytes from r and returns them alongside the result so the
// caller can stitch the stream back together.
func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, HeadSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.result, nil
		}
	}
	return Result{}, ErrUnknownType
}

func prefix(magic string) func([]byte) bool {
	return func(head []byte) bool {
		return bytes.HasPrefix(head, []byte(magic))
	}
}

func anyOf(matchers ...func([]byte) bool) func([]byte) bool {
	return func(head []byte) bool {
		for _, m := range matchers {
			if m(head) {
				return true
			}
		}
		return false
	}
}

// riff matches a RIFF container with the given form type at offset 8.
func riff(form string) func([]byte) bool {
	return func(head []byte) bool {
		return len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == form
	}
}

// isoBrand matches an ISO BMFF file whose ftyp box lists brand.
func isoBrand(brand string) func([]byte) bool {
	return func(head []byte) bool {
		return len(head) >= 12 && string(head[4:8]) == "ftyp" && bytes.Contains(head[8:], []byte(brand))
	}
}

var utf8BOM = []byte("\xef\xbb\xbf")

func svgDocument(head []byte) bool {
	doc := bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM))
	if bytes.HasPrefix(doc, []byte("<svg")) {
		return true
	}
	return bytes.HasPrefix(doc, []byte("<?xml")) && bytes.Contains(doc, []byte("<svg"))
}
