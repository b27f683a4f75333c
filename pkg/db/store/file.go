package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const (
	fileSuffix = ".json"
	tempPrefix = ".tmp-"
)

// FileStore keeps one file per key inside a directory. Other processes that
// share the directory observe changes through Watch.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is required")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Connect(ctx context.Context) error {
	return os.MkdirAll(s.dir, 0755)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) Migrate(ctx context.Context) error {
	return os.MkdirAll(s.dir, 0755)
}

func (s *FileStore) Health(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

func keyFromFile(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, tempPrefix) || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *FileStore) GetItem(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetItem writes through a temporary file so readers never see partial values.
func (s *FileStore) SetItem(ctx context.Context, key, value string) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileStore) RemoveItem(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, ok := keyFromFile(entry.Name())
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case fsEvent, ok := <-watcher.Events:
				if !ok {
					return
				}
				event, ok := s.translate(fsEvent)
				if !ok {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}

func (s *FileStore) translate(fsEvent fsnotify.Event) (Event, bool) {
	key, ok := keyFromFile(fsEvent.Name)
	if !ok {
		return Event{}, false
	}

	switch {
	case fsEvent.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Event{Key: key, Removed: true}, true
	case fsEvent.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, err := os.ReadFile(fsEvent.Name)
		if errors.Is(err, os.ErrNotExist) {
			return Event{Key: key, Removed: true}, true
		}
		if err != nil {
			return Event{}, false
		}
		return Event{Key: key, Value: string(data)}, true
	default:
		return Event{}, false // chmod
	}
}
