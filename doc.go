/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

// Package memalloc implements a general-purpose segregated-fit memory
// allocator in the style of dlmalloc, over memory reserved from the OS.
//
// IMPORTANT: This package is NOT goroutine-safe.
// Concurrent access from multiple goroutines is not supported and may lead to race conditions.
// Use one Allocator per goroutine or synchronize access externally.
//
// # Size classes
//
// Every chunk starts with a 16 byte boundary tag holding its size, the size
// of the physically preceding chunk, the owning page and an in-use bit.
// Requests are padded to a chunk size and dispatched three ways:
//
//	small      chunk <= MaxSmallChunkSize    exact-size bins, best larger bin via binMap
//	large      chunk <= MaxLargeChunkSize    best fit in a bitwise trie over sizes
//	oversized  anything bigger               a dedicated OS mapping
//
// Small and large chunks are carved from pages of two separate arenas. A
// freed chunk is merged with its free physical neighbours and re-binned by
// its merged size, so merged small chunks may end up in the trie.
//
// # Memory
//
// Pages and oversized mappings live outside the Go heap. Payloads must not
// hold Go pointers, and must not be used after Deallocate or Dispose.
//
// # Check mode
//
// With Config.Check (or the memalloc_check build tag, or MEMALLOC_CHECK in
// the environment) every chunk carries a trailing stamp that Deallocate
// validates, reporting overruns and stale frees as ErrCorrupted. Oversized
// mappings carry the stamp in their last word.
package memalloc
