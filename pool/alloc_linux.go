//go:build linux
// +build linux

// File: pool/alloc_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux backing store: anonymous memfd mapped shared, the same storage a
// compositor would import. Sealed against shrinking so a view handed to
// the consumer cannot be invalidated underneath it.

package pool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapAnonymous allocates size bytes of shared memory and returns the
// mapping plus its unmap function.
func mapAnonymous(size int) ([]byte, func() error, error) {
	fd, err := unix.MemfdCreate("hioload-gfx-buffer", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("ftruncate: %w", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("seal: %w", err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}
	// The mapping keeps the memory alive; the descriptor can go.
	unix.Close(fd)

	return data, func() error {
		return unix.Munmap(data)
	}, nil
}
