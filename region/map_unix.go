//go:build unix

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map maps the named file read-only as a private mapping. The file's
// path becomes the region's location label.
func Map(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, fmt.Errorf("region %s: empty file", path)
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("region %s: file too large to map", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("region %s: mmap: %w", path, err)
	}
	return &Region{data: data, location: path, mapped: true}, nil
}

func (r *Region) protect(writable bool) error {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	if err := unix.Mprotect(r.data, prot); err != nil {
		return fmt.Errorf("region %s: mprotect: %w", r.location, err)
	}
	return nil
}

func (r *Region) unmap() error {
	return unix.Munmap(r.data)
}
