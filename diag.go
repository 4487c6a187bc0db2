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

// Stats is a snapshot of allocator bookkeeping.
type Stats struct {
	SmallPages     int   `json:"small_pages"`
	LargePages     int   `json:"large_pages"`
	AllocatedPages int   `json:"allocated_pages"`
	PageBanks      int   `json:"page_banks"`
	DirectMappings int   `json:"direct_mappings"`
	ReservedBytes  int64 `json:"reserved_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	FreeChunks     int   `json:"free_chunks"`
	FreeBytes      int64 `json:"free_bytes"`
}

// Pages returns the number of live page reservations.
func (s Stats) Pages() int {
	return s.SmallPages + s.LargePages + s.AllocatedPages
}

// Stats returns a snapshot of the allocator's bookkeeping.
func (a *Allocator) Stats() Stats {
	s := Stats{
		SmallPages:     a.page.count(),
		LargePages:     a.largePage.count(),
		AllocatedPages: a.allocatedPage.count(),
		DirectMappings: len(a.direct),
		UsedBytes:      a.usedSize,
		FreeChunks:     a.freeChunks,
		FreeBytes:      a.freeBytes,
	}
	for b := a.pageBank; b != nil; b = b.next {
		s.PageBanks++
	}
	for _, p := range a.spans {
		s.ReservedBytes += int64(len(p.mem))
	}
	for _, mem := range a.direct {
		s.ReservedBytes += int64(len(mem))
	}
	return s
}

// CountTable returns the number of free chunks in the bin a request of
// size bytes maps to. Oversized requests have no bin and report 0.
func (a *Allocator) CountTable(size int) int {
	if size <= 0 || size > maxRequest {
		return 0
	}
	nb := padRequest(size, a.check)
	switch {
	case nb <= MaxSmallChunkSize:
		return a.smallBins.count(smallIndex(nb))
	case nb <= MaxLargeChunkSize:
		return a.largeTree.count(treeIndex(nb))
	}
	return 0
}

// GatherFragments merges free small chunks with free physical successors
// that were left apart, for instance when a merge would have exceeded
// MaxLargeChunkSize before a later split. It returns the number of merges.
func (a *Allocator) GatherFragments() int {
	var refs []blockRef
	for idx := range NumSmallBins {
		a.smallBins.walk(idx, func(r blockRef) bool {
			refs = append(refs, r)
			return true
		})
	}
	live := make(map[blockRef]bool, len(refs))
	for _, r := range refs {
		live[r] = true
	}

	merged := 0
	for _, r := range refs {
		if !live[r] {
			continue
		}
		c := a.chunkAt(r)
		for {
			n := c.nextChunk()
			if n.inUse() || c.size()+n.size() > MaxLargeChunkSize {
				break
			}
			delete(live, a.refOf(n))
			a.unlinkFree(c)
			a.unlinkFree(n)
			c.setSize(c.size() + n.size())
			c.nextChunk().prevSize = uint32(c.size())
			a.insertFree(c)
			merged++
		}
	}
	if merged > 0 {
		a.log.Debug("fragments gathered", "merges", merged)
	}
	return merged
}

// Verify walks every page and checks the boundary-tag chain, the residency
// of every free chunk in its bin or in the trie, the bin maps and the
// accounting counters.
func (a *Allocator) Verify() error {
	if a.disposed {
		return ErrDisposed
	}

	var used int64
	free := 0
	seen := make(map[uint32]bool)
	for _, head := range []*Page{&a.page, &a.largePage, &a.allocatedPage} {
		for p := head.next; p != head; p = p.next {
			if seen[p.id] {
				return errors.Wrapf(ErrCorrupted, "page %d linked twice", p.id)
			}
			seen[p.id] = true
			u, f, err := a.verifyPage(p)
			if err != nil {
				return err
			}
			used += u
			free += f
		}
	}
	if len(seen) != len(a.spans) {
		return errors.Wrapf(ErrCorrupted, "%d pages listed, %d registered", len(seen), len(a.spans))
	}
	for _, mem := range a.direct {
		used += int64(len(mem))
	}

	if used != a.usedSize {
		return errors.Wrapf(ErrCorrupted, "used %d bytes, accounted %d", used, a.usedSize)
	}
	if free != a.freeChunks {
		return errors.Wrapf(ErrCorrupted, "%d free chunks, accounted %d", free, a.freeChunks)
	}

	binned := 0
	for idx := range NumSmallBins {
		if (a.smallBins.binMap&(1<<uint(idx)) != 0) != (a.smallBins.heads[idx] != nilRef) {
			return errors.Wrapf(ErrCorrupted, "small bin %d disagrees with bin map", idx)
		}
		binned += a.smallBins.count(idx)
	}
	for idx := range NumTreeBins {
		root := a.largeTree.roots[idx]
		if (a.largeTree.treeMap&(1<<uint(idx)) != 0) != (root != nilRef) {
			return errors.Wrapf(ErrCorrupted, "tree bin %d disagrees with tree map", idx)
		}
		if root != nilRef && a.treeAt(root).parent != binRef {
			return errors.Wrapf(ErrCorrupted, "tree bin %d root has a parent", idx)
		}
		binned += a.largeTree.count(idx)
	}
	if binned != free {
		return errors.Wrapf(ErrCorrupted, "%d chunks binned, %d free in pages", binned, free)
	}
	return nil
}

func (a *Allocator) verifyPage(p *Page) (used int64, free int, err error) {
	if p.size != len(p.mem)-HeaderSize-p.top {
		return 0, 0, errors.Wrapf(ErrCorrupted, "page %d residual %d, top %d", p.id, p.size, p.top)
	}
	prev := 0
	for off := 0; off < p.top; {
		c := (*chunkBase)(unsafe.Add(p.base, off))
		size := c.size()
		switch {
		case int(c.prevSize) != prev:
			err = errors.Wrapf(ErrCorrupted, "page %d offset %#x: prev size %d, want %d", p.id, off, c.prevSize, prev)
		case c.page != p.id:
			err = errors.Wrapf(ErrCorrupted, "page %d offset %#x: page id %d", p.id, off, c.page)
		case size < MinChunkSize || size&alignMask != 0 || off+size > p.top:
			err = errors.Wrapf(ErrCorrupted, "page %d offset %#x: bad size %d", p.id, off, size)
		case c.direct():
			err = errors.Wrapf(ErrCorrupted, "page %d offset %#x: direct bit set", p.id, off)
		}
		if err != nil {
			return 0, 0, err
		}

		if c.inUse() {
			used += int64(size)
		} else {
			r := makeRef(p.id, uint32(off))
			var ok bool
			if size <= MaxSmallChunkSize {
				ok = a.smallBins.contains(r)
			} else {
				ok = a.largeTree.contains(r)
			}
			if !ok {
				return 0, 0, errors.Wrapf(ErrCorrupted, "page %d offset %#x: free chunk of %d bytes not binned", p.id, off, size)
			}
			free++
		}
		prev = size
		off += size
	}

	f := p.fence()
	if !f.inUse() || f.size() != 0 || int(f.prevSize) != prev {
		return 0, 0, errors.Wrapf(ErrCorrupted, "page %d: bad fence at %#x", p.id, p.top)
	}
	return used, free, nil
}
