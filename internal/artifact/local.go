package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage guarda las imagenes en disco; el router las sirve bajo /media.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/") + "/media"}, nil
}

func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) Upload(ctx context.Context, data []byte, folder, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := cleanObjectPath(folder, key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	// Escritura atomica para que nunca se sirva un archivo a medias.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", fmt.Errorf("commit object: %w", err)
	}
	return s.baseURL + "/" + rel, nil
}

func cleanObjectPath(folder, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("artifact: empty key")
	}
	rel := path.Clean(path.Join("/", folder, key+".png"))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("artifact: invalid object path %q/%q", folder, key)
	}
	return rel, nil
}
