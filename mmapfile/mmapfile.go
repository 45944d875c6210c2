// ABOUTME: Refcounted memory-mapped file handle
// ABOUTME: Gives every decoder view a zero-copy byte slice backed by the OS page cache

// Package mmapfile memory-maps a file and hands out a shared, refcounted
// handle to its bytes. Every view the parser produces (a record, a
// sub-record, a field value) borrows from the same []byte; nothing is
// copied on decode.
package mmapfile

import (
	"fmt"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
)

// File is a memory-mapped, reference-counted view of a file's contents.
// The zero value is not usable; construct one with Open.
//
// File is safe for concurrent use: multiple goroutines may call Bytes,
// Ref, and Close concurrently, which is what lets the parallel segment
// splitter (see SegmentOffsets) hand the same mapping to many worker
// goroutines.
type File struct {
	mu   sync.Mutex
	data mmap.MMap
	refs int
	f    *os.File
}

// Open memory-maps the file at path for reading and returns a handle with
// one reference held by the caller.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("mmapfile: %s is empty", path)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap %s: %w", path, err)
	}

	return &File{data: data, refs: 1, f: f}, nil
}

// Bytes returns the mapped contents. The returned slice is valid until the
// last reference is closed; it must never be appended to or retained past
// that point.
func (m *File) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Ref increments the reference count and returns m, so that an independent
// owner (e.g. a segment worker goroutine) can Close its own reference
// without affecting others still using the mapping.
func (m *File) Ref() *File {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs++
	return m
}

// Close releases one reference. The underlying mapping is unmapped and the
// file descriptor closed only when the reference count reaches zero.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs--
	if m.refs > 0 {
		return nil
	}
	if m.refs < 0 {
		return fmt.Errorf("mmapfile: Close called more times than Open/Ref")
	}

	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
