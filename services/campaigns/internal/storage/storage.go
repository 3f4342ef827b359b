// Package storage keeps uploaded campaign photos and payment screenshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// MaxUploadBytes is the largest image accepted from a form.
const MaxUploadBytes = 5 << 20

var (
	ErrTooLarge = errors.New("image must be 5MB or smaller")
	ErrNotImage = errors.New("file must be a JPEG, PNG, GIF or WebP image")
)

// Store persists a blob and returns the URL it is served from.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// CheckImage sniffs data and returns its content type and file extension.
func CheckImage(data []byte) (contentType, ext string, err error) {
	if len(data) > MaxUploadBytes {
		return "", "", ErrTooLarge
	}
	contentType = http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		return "", "", ErrNotImage
	}
	return contentType, ext, nil
}

// SaveImage validates data and stores it under prefix with a generated name.
func SaveImage(ctx context.Context, s Store, prefix string, data []byte) (string, error) {
	contentType, ext, err := CheckImage(data)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s-%d%s", prefix, uuid.NewString(), time.Now().Unix(), ext)
	url, err := s.Put(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", prefix, err)
	}
	return url, nil
}
