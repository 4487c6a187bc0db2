/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

// smallBins keeps one circular free list per small chunk size.
// Bit i of binMap is set iff heads[i] is not nilRef.
type smallBins struct {
	pt     *pageTable
	heads  [NumSmallBins]blockRef
	binMap uint32
}

// link pushes a free small chunk at the head of its bin.
func (b *smallBins) link(r blockRef) {
	c := b.pt.smallAt(r)
	idx := smallIndex(c.size())

	h := b.heads[idx]
	if h == nilRef {
		c.prev, c.next = r, r
		setBit(idx, &b.binMap)
	} else {
		hc := b.pt.smallAt(h)
		tail := hc.prev
		c.next, c.prev = h, tail
		b.pt.smallAt(tail).next = r
		hc.prev = r
	}
	b.heads[idx] = r
}

// unlink removes a free small chunk from its bin.
func (b *smallBins) unlink(r blockRef) {
	c := b.pt.smallAt(r)
	idx := smallIndex(c.size())

	if c.next == r {
		b.heads[idx] = nilRef
		clearBit(idx, &b.binMap)
	} else {
		b.pt.smallAt(c.prev).next = c.next
		b.pt.smallAt(c.next).prev = c.prev
		if b.heads[idx] == r {
			b.heads[idx] = c.next
		}
	}
	c.prev, c.next = nilRef, nilRef
}

// best returns the head of the smallest non-empty bin at or above idx.
func (b *smallBins) best(idx int) blockRef {
	bits := b.binMap & bitsFrom(idx)
	if bits == 0 {
		return nilRef
	}
	return b.heads[lsb(bits)]
}

// walk calls fn for every chunk of bin idx until fn returns false.
func (b *smallBins) walk(idx int, fn func(blockRef) bool) {
	h := b.heads[idx]
	if h == nilRef {
		return
	}
	r := h
	for {
		next := b.pt.smallAt(r).next
		if !fn(r) {
			return
		}
		if r = next; r == h {
			return
		}
	}
}

func (b *smallBins) count(idx int) int {
	n := 0
	b.walk(idx, func(blockRef) bool {
		n++
		return true
	})
	return n
}

func (b *smallBins) contains(r blockRef) bool {
	idx := smallIndex(b.pt.chunkAt(r).size())
	if idx >= NumSmallBins {
		return false
	}
	found := false
	b.walk(idx, func(x blockRef) bool {
		found = x == r
		return !found
	})
	return found
}
