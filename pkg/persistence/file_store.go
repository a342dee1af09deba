package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type codec struct {
	ext       string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

// fileStore keeps one file per id under dir
type fileStore struct {
	dir   string
	codec codec
}

func newFileStore(dir string, c codec) (fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileStore{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return fileStore{dir: dir, codec: c}, nil
}

func (s fileStore) path(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+s.codec.ext), nil
}

func (s fileStore) Save(ctx context.Context, id string, memento any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := s.path(id)
	if err != nil {
		return err
	}

	data, err := s.codec.marshal(memento)
	if err != nil {
		return fmt.Errorf("encode %q: %w", id, err)
	}

	// write then rename so readers never see a partial record
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", fn, err)
	}
	return nil
}

func (s fileStore) Load(ctx context.Context, id string, into any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := s.path(id)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("memento %q: %w", id, ErrNotFound)
		}
		return fmt.Errorf("read %s: %w", fn, err)
	}
	if err := s.codec.unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %q: %w", id, err)
	}
	return nil
}

func (s fileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", fn, err)
	}
	return nil
}

// JSONStore is a file-based store using JSON serialization
type JSONStore struct {
	fileStore
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore creates a JSONStore, ensuring the directory exists
func NewJSONStore(dir string) (*JSONStore, error) {
	fs, err := newFileStore(dir, codec{
		ext: ".json",
		marshal: func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		},
		unmarshal: json.Unmarshal,
	})
	if err != nil {
		return nil, err
	}
	return &JSONStore{fs}, nil
}

// YAMLStore is a file-based store using YAML serialization
type YAMLStore struct {
	fileStore
}

var _ Store = (*YAMLStore)(nil)

// NewYAMLStore creates a YAMLStore, ensuring the directory exists
func NewYAMLStore(dir string) (*YAMLStore, error) {
	fs, err := newFileStore(dir, codec{
		ext:       ".yaml",
		marshal:   yaml.Marshal,
		unmarshal: yaml.Unmarshal,
	})
	if err != nil {
		return nil, err
	}
	return &YAMLStore{fs}, nil
}
