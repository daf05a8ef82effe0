package media

import (
	"context"
	"errors"
	"io"
	"strings"

	"messenger-service/internal/models"
)

// ErrUnsupportedType rejects MIME families other than image/* and video/*.
var ErrUnsupportedType = errors.New("unsupported media file type")

// Uploader stores a media object and returns a durable URL.
type Uploader interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
}

// ResolveContentType maps a MIME type to a message content type.
func ResolveContentType(mimeType string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "image"):
		return models.ContentTypeImage, nil
	case strings.HasPrefix(mimeType, "video"):
		return models.ContentTypeVideo, nil
	default:
		return "", ErrUnsupportedType
	}
}
