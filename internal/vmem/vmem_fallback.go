//go:build !unix && !windows

/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package vmem

import "os"

// PageSize returns the OS page size.
func PageSize() int {
	return os.Getpagesize()
}

// Reserve falls back to the Go heap when no mapping API is available.
func Reserve(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return make([]byte, RoundUp(size))[:size], nil
}

// Release drops the region; the garbage collector reclaims it.
func Release(b []byte) error {
	return nil
}
