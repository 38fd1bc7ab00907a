// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path"
	"strings"
	"sync"

	"quickblog/internal/media"

	"github.com/google/uuid"
)

const stubBaseURL = "https://media.test"

// MediaHostStub is an in-memory media.Host with injectable failures.
type MediaHostStub struct {
	mu      sync.Mutex
	assets  map[string][]byte
	Uploads []string
	Deletes []string
	Lookups []string

	UploadErr  error
	DetailsErr error
	DeleteErr  error
}

// NewMediaHostStub creates an empty MediaHostStub.
func NewMediaHostStub() *MediaHostStub {
	return &MediaHostStub{assets: make(map[string][]byte)}
}

func (s *MediaHostStub) Name() string { return "stub" }

// Upload stores the content under folder/<uuid>.
func (s *MediaHostStub) Upload(_ context.Context, in media.UploadInput) (*media.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return nil, s.UploadErr
	}
	key := path.Join(in.Folder, uuid.NewString()+path.Ext(in.Filename))
	s.assets[key] = in.Content
	s.Uploads = append(s.Uploads, key)
	return &media.Asset{Key: key, URL: stubBaseURL + "/" + key, Size: int64(len(in.Content))}, nil
}

func (s *MediaHostStub) URL(key string, t media.Transform) string {
	u := stubBaseURL + "/" + key
	if !t.IsZero() {
		u += "?tr=" + t.String()
	}
	return u
}

// Details resolves URLs issued by URL back to stored keys.
func (s *MediaHostStub) Details(_ context.Context, rawURL string) (*media.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups = append(s.Lookups, rawURL)
	if s.DetailsErr != nil {
		return nil, s.DetailsErr
	}
	key := strings.TrimPrefix(rawURL, stubBaseURL+"/")
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	content, ok := s.assets[key]
	if !ok {
		return nil, media.ErrAssetNotFound
	}
	return &media.Asset{Key: key, URL: stubBaseURL + "/" + key, Size: int64(len(content))}, nil
}

func (s *MediaHostStub) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes = append(s.Deletes, key)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.assets[key]; !ok {
		return media.ErrAssetNotFound
	}
	delete(s.assets, key)
	return nil
}

// Has reports whether key is currently stored.
func (s *MediaHostStub) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.assets[key]
	return ok
}

// Count returns the number of stored assets.
func (s *MediaHostStub) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
