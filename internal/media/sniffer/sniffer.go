package sniffer

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypePDF  MediaType = "pdf"
	TypeMP4  MediaType = "mp4"
	TypeMOV  MediaType = "mov"
	TypeWEBM MediaType = "webm"
	TypeOGG  MediaType = "ogg"
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
)

// Kinds group media types the way publications attach them.
const (
	KindPDF   = "pdf"
	KindVideo = "video"
	KindImage = "image"
	KindLink  = "link"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
	Kind string
}

// Detect reads up to 512 bytes from r and identifies them. The returned head
// must be replayed before the rest of r.
func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, 512)
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

	switch {
	case isPDF(head):
		return Result{Type: TypePDF, MIME: "application/pdf", Kind: KindPDF}, nil
	case isJPEG(head):
		return Result{Type: TypeJPEG, MIME: "image/jpeg", Kind: KindImage}, nil
	case isPNG(head):
		return Result{Type: TypePNG, MIME: "image/png", Kind: KindImage}, nil
	case isGIF(head):
		return Result{Type: TypeGIF, MIME: "image/gif", Kind: KindImage}, nil
	case isWEBP(head):
		return Result{Type: TypeWEBP, MIME: "image/webp", Kind: KindImage}, nil
	case isWEBM(head):
		return Result{Type: TypeWEBM, MIME: "video/webm", Kind: KindVideo}, nil
	case isOGG(head):
		return Result{Type: TypeOGG, MIME: "video/ogg", Kind: KindVideo}, nil
	}

	if brand, ok := ftypBrand(head); ok {
		switch {
		case brand == "avif" || brand == "avis":
			return Result{Type: TypeAVIF, MIME: "image/avif", Kind: KindImage}, nil
		case brand == "qt  ":
			return Result{Type: TypeMOV, MIME: "video/quicktime", Kind: KindVideo}, nil
		default:
			return Result{Type: TypeMP4, MIME: "video/mp4", Kind: KindVideo}, nil
		}
	}

	return Result{}, ErrUnknownType
}

// KindFromMIME classifies a declared content type when the bytes are not recognised.
func KindFromMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo
	case mediaType == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	default:
		return KindLink
	}
}

func isPDF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("%PDF-"))
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return bytes.HasPrefix(head, pngMagic)
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

// EBML header shared by Matroska and WebM.
func isWEBM(head []byte) bool {
	return bytes.HasPrefix(head, []byte{0x1a, 0x45, 0xdf, 0xa3})
}

func isOGG(head []byte) bool {
	return bytes.HasPrefix(head, []byte("OggS"))
}

// ftypBrand returns the major brand of an ISO base media file.
func ftypBrand(head []byte) (string, bool) {
	if len(head) < 12 || string(head[4:8]) != "ftyp" {
		return "", false
	}
	return string(head[8:12]), true
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
