//go:build windows

/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package vmem

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// PageSize returns the OS page size.
func PageSize() int {
	return os.Getpagesize()
}

// Reserve reserves and commits size bytes of read-write memory.
func Reserve(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrapf(ErrReserve, "VirtualAlloc %d bytes: %v", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// Release frees a region returned by Reserve.
func Release(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	err := windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE)
	return errors.Wrap(err, "vmem: VirtualFree")
}
