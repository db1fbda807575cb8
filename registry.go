package gridstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry tracks the open datasets of one process component. Names are
// unique within a registry. Registries are independent of each other, so
// tests can run isolated instances side by side.
type Registry struct {
	mu   sync.Mutex
	open map[string]*Dataset // nil value: open in progress
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{open: make(map[string]*Dataset)}
}

// Open opens a dataset and registers it under name. Closing the dataset
// deregisters it.
func (r *Registry) Open(ctx context.Context, name string, fetcher Fetcher, optFns ...Option) (*Dataset, error) {
	r.mu.Lock()
	if _, ok := r.open[name]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: dataset %q", ErrNameInUse, name)
	}
	r.open[name] = nil
	r.mu.Unlock()

	d, err := open(ctx, name, fetcher, r, optFns)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		delete(r.open, name)
		return nil, err
	}
	r.open[name] = d
	return d, nil
}

// Get returns the open dataset registered under name.
func (r *Registry) Get(name string) (*Dataset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.open[name]
	return d, d != nil
}

// Names returns the names of the open datasets in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.open))
	for name, d := range r.open {
		if d != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of open datasets.
func (r *Registry) Len() int {
	return len(r.Names())
}

// CloseAll closes every registered dataset.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	handles := make([]*Dataset, 0, len(r.open))
	for _, d := range r.open {
		if d != nil {
			handles = append(handles, d)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, d := range handles {
		if err := d.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) remove(d *Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open[d.name] == d {
		delete(r.open, d.name)
	}
}
