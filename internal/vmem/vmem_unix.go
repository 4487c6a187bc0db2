//go:build unix

/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package vmem

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PageSize returns the OS page size.
func PageSize() int {
	return unix.Getpagesize()
}

// Reserve maps size bytes of private, zeroed, read-write memory.
// The region is not tracked by the Go garbage collector.
func Reserve(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(ErrReserve, "mmap %d bytes: %v", size, err)
	}
	return b, nil
}

// Release unmaps a region returned by Reserve.
func Release(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	err := unix.Munmap(b)
	if errors.Is(err, unix.EINVAL) {
		// Already unmapped.
		return nil
	}
	return errors.Wrap(err, "vmem: munmap")
}
