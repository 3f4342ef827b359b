package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCheckImage(t *testing.T) {
	ct, ext, err := CheckImage(pngBytes(t))
	if err != nil || ct != "image/png" || ext != ".png" {
		t.Errorf("CheckImage(png) = %q, %q, %v", ct, ext, err)
	}
	if _, _, err := CheckImage([]byte("%PDF-1.4 not an image")); !errors.Is(err, ErrNotImage) {
		t.Errorf("pdf err = %v, want ErrNotImage", err)
	}
	big := append(pngBytes(t), make([]byte, MaxUploadBytes)...)
	if _, _, err := CheckImage(big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("big err = %v, want ErrTooLarge", err)
	}
}

func TestLocal_SaveImage(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads/")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	data := pngBytes(t)
	url, err := SaveImage(context.Background(), l, "photos", data)
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/photos/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q", url)
	}

	got, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("stored bytes differ")
	}
}

func TestLocal_PutStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	l, _ := NewLocal(filepath.Join(dir, "up"), "/uploads")

	url, err := l.Put(context.Background(), "../../escape.txt", "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/uploads/escape.txt" {
		t.Errorf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "up", "escape.txt")); err != nil {
		t.Errorf("file not written inside upload dir: %v", err)
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Put(t *testing.T) {
	fake := &fakeS3{}
	s := NewS3WithClient(fake, "carefund-media", "ap-south-1")

	url, err := s.Put(context.Background(), "screenshots/a.png", "image/png", []byte("data"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "https://carefund-media.s3.ap-south-1.amazonaws.com/screenshots/a.png" {
		t.Errorf("url = %q", url)
	}
	if aws.ToString(fake.input.Bucket) != "carefund-media" || aws.ToString(fake.input.ContentType) != "image/png" {
		t.Errorf("input = %+v", fake.input)
	}
	if string(fake.body) != "data" {
		t.Errorf("body = %q", fake.body)
	}
}
