/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

import (
	"unsafe"

	"github.com/pkg/errors"
)

const magicSeed uint64 = 0x9e3779b97f4a7c15

func magicFor(c *chunkBase) uint64 {
	return uint64(uintptr(unsafe.Pointer(c))) ^ magicSeed
}

// stampOf returns the check word of an in-use chunk: the last word of the
// chunk, or of the mapping for an oversized chunk.
func (a *Allocator) stampOf(c *chunkBase) *uint64 {
	if c.direct() {
		mem := a.direct[uintptr(unsafe.Pointer(c))]
		return (*uint64)(unsafe.Pointer(&mem[len(mem)-stampSize]))
	}
	return c.stamp()
}

// setMagic stamps an in-use chunk. The payload itself is left untouched.
func (a *Allocator) setMagic(c *chunkBase) {
	*a.stampOf(c) = magicFor(c)
}

// checkMagic validates and clears the stamp so a stale pointer fails again.
func (a *Allocator) checkMagic(c *chunkBase) error {
	s := a.stampOf(c)
	if got, want := *s, magicFor(c); got != want {
		return errors.Wrapf(ErrCorrupted, "chunk %p: stamp %#x, want %#x", c, got, want)
	}
	*s = 0
	return nil
}
