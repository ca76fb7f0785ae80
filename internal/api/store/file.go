package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/grez-lucas/bankapi/internal/api"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// File stores each session as <dir>/<id>.json, readable by the owner only.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Load(_ context.Context, id string) ([]byte, error) {
	path, err := f.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	return data, nil
}

// Save writes through a temporary file so a crash never leaves a torn record.
func (f *File) Save(_ context.Context, id string, data []byte) error {
	path, err := f.path(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+id+".*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store session %s: %w", id, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, id string) error {
	path, err := f.path(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (f *File) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}
