package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalHost keeps assets on the local filesystem and serves them under a
// public base URL. Renditions are produced on read by Render.
type LocalHost struct {
	dir     string
	baseURL string
}

// NewLocalHost creates dir if needed and returns a host serving it at baseURL.
func NewLocalHost(dir, baseURL string) (*LocalHost, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalHost{dir: dir, baseURL: baseURL}, nil
}

func (h *LocalHost) Name() string { return "local" }

func (h *LocalHost) Upload(ctx context.Context, in UploadInput) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentType := http.DetectContentType(in.Content)
	key := path.Join(in.Folder, uuid.NewString()+extensionFor(contentType))
	if err := writeBytesToFile(h.pathFor(key), in.Content); err != nil {
		return nil, fmt.Errorf("write asset: %w", err)
	}

	return &Asset{
		Key:         key,
		URL:         displayURL(h.baseURL, key, Transform{}),
		Size:        int64(len(in.Content)),
		ContentType: contentType,
	}, nil
}

func (h *LocalHost) URL(key string, t Transform) string {
	return displayURL(h.baseURL, key, t)
}

func (h *LocalHost) Details(ctx context.Context, rawURL string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := keyFromURL(h.baseURL, rawURL)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(h.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Asset{
		Key:  key,
		URL:  displayURL(h.baseURL, key, Transform{}),
		Size: info.Size(),
	}, nil
}

func (h *LocalHost) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(h.pathFor(clean)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrAssetNotFound
		}
		return err
	}
	return nil
}

// Open returns the stored bytes of key.
func (h *LocalHost) Open(key string) ([]byte, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.pathFor(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrAssetNotFound
	}
	return data, err
}

func (h *LocalHost) pathFor(key string) string {
	return filepath.Join(h.dir, filepath.FromSlash(key))
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
