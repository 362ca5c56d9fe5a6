//go:build darwin || linux

package jit

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapCodeSegment copies the assembled code into a new mapping, rebases its absolute
// addresses onto the mapping, and then makes it executable. The mapping is never
// writable and executable at the same time.
func mmapCodeSegment(a *assembledCode) ([]byte, error) {
	if len(a.code) == 0 {
		panic("BUG: mmapCodeSegment with zero length")
	}
	segment, err := unix.Mmap(-1, 0, len(a.code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	copy(segment, a.code)

	base := uint64(uintptr(unsafe.Pointer(&segment[0])))
	for _, at := range a.relocations {
		offset := binary.LittleEndian.Uint64(segment[at : at+8])
		binary.LittleEndian.PutUint64(segment[at:at+8], base+offset)
	}

	if err = unix.Mprotect(segment, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(segment)
		return nil, fmt.Errorf("mprotect: %w", err)
	}
	return segment, nil
}

// mmapTape returns a zeroed read-write mapping of size bytes.
func mmapTape(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
