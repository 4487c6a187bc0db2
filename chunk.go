/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

import "unsafe"

// blockRef addresses a chunk header as page id << 32 | byte offset in page.
// Links between free chunks are stored as refs, never as raw pointers.
type blockRef uint64

const (
	nilRef blockRef = 0
	// binRef is the parent of a trie root.
	binRef blockRef = ^blockRef(0)
)

func makeRef(page, offset uint32) blockRef {
	return blockRef(page)<<32 | blockRef(offset)
}

func (r blockRef) page() uint32 {
	return uint32(r >> 32)
}

func (r blockRef) offset() uint32 {
	return uint32(r)
}

// Flag bits packed below the size quantum of chunkBase.head.
const (
	inUseBit  uint32 = 0x1
	directBit uint32 = 0x2
	flagMask  uint32 = alignMask
)

// chunkBase is the boundary tag embedded at the start of every chunk.
type chunkBase struct {
	head     uint32 // size | flags
	prevSize uint32 // size of the physically preceding chunk, 0 for the first
	page     uint32 // owning page id
	index    uint32 // tree bin while resident in the trie
}

// chunk is a small free chunk, linked into a circular small-bin list.
type chunk struct {
	chunkBase
	prev, next blockRef
}

// treeChunk is a large free chunk resident in the bitwise trie. Same-size
// chunks hang off one trie node on a circular prev/next list; only that
// node has a parent.
type treeChunk struct {
	chunkBase
	prev, next blockRef
	parent     blockRef
	child      [2]blockRef
}

// Layout checks; these fail to compile if a header outgrows its class.
const (
	_ = uintptr(HeaderSize) - unsafe.Sizeof(chunkBase{})
	_ = uintptr(unsafe.Sizeof(chunkBase{})) - HeaderSize
	_ = uintptr(MinChunkSize) - unsafe.Sizeof(chunk{})
	_ = uintptr(MinLargeSize) - unsafe.Sizeof(treeChunk{})
)

func (c *chunkBase) size() int {
	return int(c.head &^ flagMask)
}

func (c *chunkBase) setSize(n int) {
	c.head = uint32(n) | c.head&flagMask
}

func (c *chunkBase) inUse() bool {
	return c.head&inUseBit != 0
}

func (c *chunkBase) setInUse(used bool) {
	if used {
		c.head |= inUseBit
	} else {
		c.head &^= inUseBit
	}
}

func (c *chunkBase) direct() bool {
	return c.head&directBit != 0
}

// getMemory returns the payload that follows the header.
func (c *chunkBase) getMemory() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(c), HeaderSize)
}

// getChunk returns the header in front of a payload.
func getChunk(ptr unsafe.Pointer) *chunkBase {
	return (*chunkBase)(unsafe.Add(ptr, -HeaderSize))
}

// nextChunk returns the physically following header. Every chunk is
// followed by another chunk or by its page's fence.
func (c *chunkBase) nextChunk() *chunkBase {
	return (*chunkBase)(unsafe.Add(unsafe.Pointer(c), c.size()))
}

// prevChunk returns the physically preceding header, or nil for the first
// chunk of a page.
func (c *chunkBase) prevChunk() *chunkBase {
	if c.prevSize == 0 {
		return nil
	}
	return (*chunkBase)(unsafe.Add(unsafe.Pointer(c), -int(c.prevSize)))
}

// splitBack shrinks c by n bytes and turns its trailing n bytes into a new
// free chunk, which is returned.
func (c *chunkBase) splitBack(n int) *chunkBase {
	rest := c.size() - n
	c.setSize(rest)

	t := (*chunkBase)(unsafe.Add(unsafe.Pointer(c), rest))
	t.head = uint32(n)
	t.prevSize = uint32(rest)
	t.page = c.page
	t.index = 0
	t.nextChunk().prevSize = uint32(n)
	return t
}

// stamp returns the trailing check word of a chunk.
func (c *chunkBase) stamp() *uint64 {
	return (*uint64)(unsafe.Add(unsafe.Pointer(c), c.size()-stampSize))
}
