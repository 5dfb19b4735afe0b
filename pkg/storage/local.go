package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type LocalDisk struct {
	root    string
	baseURL string
}

// NewLocalDisk stores files under root, resolved against the working
// directory when relative, and serves them from baseURL.
func NewLocalDisk(root, baseURL string) (*LocalDisk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage/local: resolve root: %w", err)
	}
	return &LocalDisk{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *LocalDisk) Name() string { return "local" }

func (d *LocalDisk) Root() string { return d.root }

func (d *LocalDisk) abs(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// Put writes to a temporary file and renames it so readers never see a
// partial upload.
func (d *LocalDisk) Put(_ context.Context, key string, r io.Reader, _ string) error {
	full, err := d.abs(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage/local: create %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage/local: close %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("storage/local: chmod %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("storage/local: rename %s: %w", key, err)
	}
	return nil
}

func (d *LocalDisk) Get(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := d.abs(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage/local: open %s: %w", key, err)
	}
	return f, nil
}

func (d *LocalDisk) Exists(_ context.Context, key string) (bool, error) {
	full, err := d.abs(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage/local: stat %s: %w", key, err)
	}
}

func (d *LocalDisk) Delete(_ context.Context, key string) error {
	full, err := d.abs(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage/local: delete %s: %w", key, err)
	}
	return nil
}

func (d *LocalDisk) URL(key string) string {
	return d.baseURL + "/" + strings.TrimLeft(key, "/")
}

// FileServer serves the disk read-only without directory listings.
func (d *LocalDisk) FileServer() http.Handler {
	fsys := http.Dir(d.root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		http.FileServer(fsys).ServeHTTP(w, r)
	})
}
