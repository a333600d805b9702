// Package drivers defines the pluggable storage-driver interface and the
// driver registry (spec §4.7). Concrete driver implementations are
// intentionally minimal — spec §1 places "the individual storage driver
// implementations" out of scope, treating them as external collaborators
// that expose get/put/delete over opaque URLs.
package drivers

import (
	"context"
	"fmt"
	"sync"
)

// Driver is a pluggable storage backend. Implementations are assumed to
// expose get(url), put(id, bytes) -> urls, and delete(id) per spec §1.
type Driver interface {
	// Name is the driver's registered name, as it appears in a
	// Datastore's drivers list.
	Name() string
	// Local reports whether this driver serves reads from co-located
	// storage. Used by read-driver prioritization (spec §4.4.2, §4.7).
	Local() bool
	// Get fetches the bytes addressed by url.
	Get(ctx context.Context, url string) ([]byte, error)
	// Put stores data under the fully-qualified id and returns the set
	// of locator URLs produced for it.
	Put(ctx context.Context, id string, data []byte) ([]string, error)
	// Delete removes the object addressed by the fully-qualified id.
	Delete(ctx context.Context, id string) error
	// URLFor returns the locator this driver would produce for id,
	// without requiring a round trip. Storage drivers are
	// content-addressed and deterministic, so the gateway uses this to
	// re-locate its own well-known records (the datastore record, a
	// device root page) without keeping a URL index of its own (spec
	// §5: "no shared mutable datastore state kept in the gateway").
	URLFor(id string) string
	// Owns reports whether url was produced by this driver, used to map
	// a File Header's recorded URLs back onto registered drivers for
	// read prioritization (spec §4.4.2).
	Owns(url string) bool
}

// ErrConcurrencyViolation is returned when a driver is registered while a
// registration of the same name is already in flight (spec §4.7: a second
// concurrent registration of the same driver returns a "concurrency
// violation" and HTTP 202 — the dispatcher maps this to InProgress).
var ErrConcurrencyViolation = fmt.Errorf("concurrency violation: driver registration already in progress")

// Registry holds the set of loaded storage drivers, keyed by name.
// Registration is single-threaded per name: a second concurrent
// registration of the same name is rejected rather than blocking.
type Registry struct {
	mu           sync.Mutex
	drivers      map[string]Driver
	registering  map[string]bool
	manifestURLs map[string]string
}

// NewRegistry constructs an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers:      make(map[string]Driver),
		registering:  make(map[string]bool),
		manifestURLs: make(map[string]string),
	}
}

// Register adds a driver to the registry under the given manifest URL
// (used to locate its index; may be empty). If a registration for the
// same name is already in progress, it returns ErrConcurrencyViolation
// instead of blocking.
func (r *Registry) Register(name string, d Driver, manifestURL string) error {
	r.mu.Lock()
	if r.registering[name] {
		r.mu.Unlock()
		return ErrConcurrencyViolation
	}
	r.registering[name] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.registering, name)
		r.mu.Unlock()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = d
	r.manifestURLs[name] = manifestURL
	return nil
}

// Get returns the driver registered under name, if any.
func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[name]
	return d, ok
}

// ManifestURL returns the manifest URL a driver was registered with.
func (r *Registry) ManifestURL(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manifestURLs[name]
}

// Names returns every registered driver name.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	return names
}

// DriverForURL returns the registered driver that produced url, if any.
func (r *Registry) DriverForURL(url string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.Owns(url) {
			return d, true
		}
	}
	return nil, false
}

// PrioritizeReadURLs reorders a File Header's URL list so that locally
// backed drivers are tried first (spec §4.4.2).
func (r *Registry) PrioritizeReadURLs(urls []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var local, remote []string
	for _, u := range urls {
		isLocal := false
		for _, d := range r.drivers {
			if d.Owns(u) {
				isLocal = d.Local()
				break
			}
		}
		if isLocal {
			local = append(local, u)
		} else {
			remote = append(remote, u)
		}
	}
	return append(local, remote...)
}

// PrioritizeReadDrivers reorders names so that locally-backed drivers
// precede remote ones, preserving relative order within each group
// (spec §4.4.2 "read-driver prioritization", §4.7 static local-before-
// remote policy). Names not present in the registry are treated as
// remote and kept in their original relative order at the tail.
func (r *Registry) PrioritizeReadDrivers(names []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var local, remote []string
	for _, name := range names {
		d, ok := r.drivers[name]
		if ok && d.Local() {
			local = append(local, name)
		} else {
			remote = append(remote, name)
		}
	}
	return append(local, remote...)
}
