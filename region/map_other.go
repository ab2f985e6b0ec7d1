//go:build !unix

package region

import "os"

// Map reads the named file into memory on platforms without mmap
// support. The region behaves like an in-memory one.
func Map(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Region{data: data, location: path}, nil
}

func (r *Region) protect(writable bool) error { return nil }

func (r *Region) unmap() error { return nil }
