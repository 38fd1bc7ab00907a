// Package media stores post images on an external host and derives their display URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"quickblog/internal/config"
)

// ErrAssetNotFound is returned when a key or URL does not resolve to a stored asset.
var ErrAssetNotFound = errors.New("media asset not found")

// Asset describes a stored file.
type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// UploadInput is a single file to store under Folder.
type UploadInput struct {
	Filename string
	Folder   string
	Content  []byte
}

// Transform selects a rendition of a stored image.
type Transform struct {
	Quality string
	Format  string
	Width   int
}

// DisplayProfile is the rendition every post image is displayed with.
var DisplayProfile = Transform{Quality: "auto", Format: "webp", Width: 1280}

// IsZero reports whether no transformation is requested.
func (t Transform) IsZero() bool {
	return t.Quality == "" && t.Format == "" && t.Width <= 0
}

// String encodes the transform in the image-CDN "tr" syntax, e.g. q-auto,f-webp,w-1280.
func (t Transform) String() string {
	parts := make([]string, 0, 3)
	if t.Quality != "" {
		parts = append(parts, "q-"+t.Quality)
	}
	if t.Format != "" {
		parts = append(parts, "f-"+t.Format)
	}
	if t.Width > 0 {
		parts = append(parts, "w-"+strconv.Itoa(t.Width))
	}
	return strings.Join(parts, ",")
}

// ParseTransform decodes a "tr" value. Unknown or malformed parts are ignored.
func ParseTransform(s string) Transform {
	var t Transform
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok || v == "" {
			continue
		}
		switch k {
		case "q":
			t.Quality = v
		case "f":
			t.Format = strings.ToLower(v)
		case "w":
			if w, err := strconv.Atoi(v); err == nil && w > 0 && w <= maxRenderWidth {
				t.Width = w
			}
		}
	}
	return t
}

// Host is the external media store post images live on.
type Host interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Upload(ctx context.Context, in UploadInput) (*Asset, error)
	// URL derives the display URL of key rendered with t.
	URL(key string, t Transform) string
	// Details resolves a previously issued URL back to its stored asset.
	Details(ctx context.Context, rawURL string) (*Asset, error)
	Delete(ctx context.Context, key string) error
}

// New builds the Host selected by MEDIA_DRIVER, wrapped with metrics and tracing.
func New(cfg *config.Config) (Host, error) {
	switch cfg.MediaDriver {
	case "", "local":
		h, err := NewLocalHost(cfg.MediaUploadDir, cfg.MediaPublicURL)
		if err != nil {
			return nil, err
		}
		return Instrument(h), nil
	case "s3":
		return Instrument(NewS3Host(S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.MediaPublicURL,
		})), nil
	default:
		return nil, fmt.Errorf("unsupported MEDIA_DRIVER %q", cfg.MediaDriver)
	}
}

func displayURL(base, key string, t Transform) string {
	u := strings.TrimRight(base, "/") + "/" + key
	if t.IsZero() {
		return u
	}
	return u + "?tr=" + t.String()
}

// keyFromURL strips base and any query from rawURL.
func keyFromURL(base, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssetNotFound, err)
	}

	p := u.Path
	if b, err := url.Parse(strings.TrimRight(base, "/")); err == nil && b.Path != "" {
		if !strings.HasPrefix(p, b.Path+"/") {
			return "", ErrAssetNotFound
		}
		p = strings.TrimPrefix(p, b.Path)
	}

	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return key, nil
}

// cleanKey normalizes a slash-separated key and rejects traversal.
func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" || k == "." || strings.Contains(k, "..") {
		return "", ErrAssetNotFound
	}
	return k, nil
}
