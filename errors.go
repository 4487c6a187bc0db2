/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

import "github.com/pkg/errors"

var (
	// ErrInvalidSize is returned for non-positive or unrepresentable requests.
	ErrInvalidSize = errors.New("memalloc: invalid allocation size")

	// ErrOutOfMemory wraps a failed OS reservation.
	ErrOutOfMemory = errors.New("memalloc: out of memory")

	// ErrBadPointer is returned by Deallocate for a pointer this allocator
	// did not hand out.
	ErrBadPointer = errors.New("memalloc: pointer not owned by allocator")

	// ErrDoubleFree is returned by Deallocate for a chunk that is not in use.
	ErrDoubleFree = errors.New("memalloc: chunk is not in use")

	// ErrCorrupted reports a broken header chain or a clobbered check stamp.
	ErrCorrupted = errors.New("memalloc: heap corrupted")

	// ErrDisposed is returned after Dispose.
	ErrDisposed = errors.New("memalloc: allocator disposed")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("memalloc: invalid config")
)
