/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

// Package vmem reserves and releases anonymous virtual-memory regions for the
// allocator's pages.
package vmem

import "github.com/pkg/errors"

// ErrReserve is returned (wrapped) when the OS refuses a reservation.
var ErrReserve = errors.New("vmem: reservation failed")

// RoundUp rounds size up to a multiple of the OS page size.
func RoundUp(size int) int {
	ps := PageSize()
	return (size + ps - 1) &^ (ps - 1)
}

func checkSize(size int) error {
	if size <= 0 {
		return errors.Wrapf(ErrReserve, "invalid size %d", size)
	}
	return nil
}
