package drivers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalDiskDriver stores objects as files under a root directory. It is a
// local driver: its reads never leave the machine, so it is always
// prioritized ahead of remote drivers (spec §4.4.2, §4.7).
type LocalDiskDriver struct {
	name string
	root string
}

// NewLocalDiskDriver constructs a LocalDiskDriver rooted at root, creating
// the directory if it does not already exist.
func NewLocalDiskDriver(name, root string) (*LocalDiskDriver, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("local disk driver %s: create root: %w", name, err)
	}
	return &LocalDiskDriver{name: name, root: root}, nil
}

// Name implements Driver.
func (l *LocalDiskDriver) Name() string { return l.name }

// Local implements Driver.
func (l *LocalDiskDriver) Local() bool { return true }

// pathFor maps a fully-qualified id ("{device_id}:{datastore_id}/{file_name}",
// spec §3) onto a filesystem path, replacing path separators in the id so
// it cannot escape the driver's root.
func (l *LocalDiskDriver) pathFor(id string) string {
	safe := strings.ReplaceAll(id, "/", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	return filepath.Join(l.root, safe)
}

func (l *LocalDiskDriver) urlFor(id string) string {
	u := url.URL{Scheme: "file", Path: l.pathFor(id)}
	return u.String()
}

// URLFor implements Driver.
func (l *LocalDiskDriver) URLFor(id string) string { return l.urlFor(id) }

// Owns implements Driver.
func (l *LocalDiskDriver) Owns(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return false
	}
	rel, err := filepath.Rel(l.root, u.Path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// Get implements Driver.
func (l *LocalDiskDriver) Get(_ context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("local disk driver %s: parse url: %w", l.name, err)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, fmt.Errorf("local disk driver %s: read: %w", l.name, err)
	}
	return data, nil
}

// Put implements Driver.
func (l *LocalDiskDriver) Put(_ context.Context, id string, data []byte) ([]string, error) {
	path := l.pathFor(id)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("local disk driver %s: write: %w", l.name, err)
	}
	return []string{l.urlFor(id)}, nil
}

// Delete implements Driver.
func (l *LocalDiskDriver) Delete(_ context.Context, id string) error {
	if err := os.Remove(l.pathFor(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local disk driver %s: delete: %w", l.name, err)
	}
	return nil
}
