// Package region provides the read-only byte region every DEX container
// view borrows from: a contiguous range of bytes paired with a location
// label used in diagnostics. Regions are either plain in-memory slices
// or private file mappings whose page protections can be toggled.
package region

import (
	"errors"
	"fmt"
)

// Region is a labeled, logically read-only range of bytes. All container
// views alias its data; a Region must not be closed while views of it
// are still in use.
type Region struct {
	data     []byte
	location string
	mapped   bool
	closed   bool
}

// New wraps an in-memory byte slice. The caller keeps ownership of the
// backing array and must not mutate it while the region is in use.
func New(data []byte, location string) *Region {
	return &Region{data: data, location: location}
}

// Bytes returns the underlying bytes. The slice aliases the region.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the region length in bytes.
func (r *Region) Len() int { return len(r.data) }

// Location returns the diagnostic label, typically the file path the
// region was mapped from.
func (r *Region) Location() string { return r.location }

// Protect toggles write access on a file-backed mapping. For in-memory
// regions it is a no-op; the read-only discipline there is contractual.
func (r *Region) Protect(writable bool) error {
	if !r.mapped {
		return nil
	}
	return r.protect(writable)
}

// Close releases a file mapping. Closing an in-memory region marks it
// closed and drops its reference to the bytes. Close is not idempotent protection against live views; the
// caller must ensure no view outlives the region.
func (r *Region) Close() error {
	if r.closed {
		return errors.New("region: already closed")
	}
	r.closed = true
	if !r.mapped {
		r.data = nil
		return nil
	}
	err := r.unmap()
	r.data = nil
	if err != nil {
		return fmt.Errorf("region %s: %w", r.location, err)
	}
	return nil
}
