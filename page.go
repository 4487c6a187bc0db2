/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

import (
	"sort"
	"unsafe"

	"github.com/pkg/errors"

	"memalloc/internal/vmem"
)

// Page wraps one OS reservation that chunks are carved from, front to back.
// The unsplit tail starts at top, where a fence header (in use, size 0)
// terminates the chunk chain.
type Page struct {
	mem   []byte
	base  unsafe.Pointer
	id    uint32
	top   int // offset of the fence
	size  int // residual capacity behind the fence
	large bool

	prev, next *Page
}

// pageBank is a block of Page descriptors, chained as banks fill up.
type pageBank struct {
	slots []Page
	used  int
	next  *pageBank
}

func (p *Page) init() {
	p.prev, p.next = p, p
}

// linkAfter inserts p right behind the list sentinel head.
func (p *Page) linkAfter(head *Page) {
	p.prev = head
	p.next = head.next
	head.next.prev = p
	head.next = p
}

func (p *Page) unlink() {
	p.prev.next = p.next
	p.next.prev = p.prev
	p.prev, p.next = nil, nil
}

func (p *Page) fence() *chunkBase {
	return (*chunkBase)(unsafe.Add(p.base, p.top))
}

// carve splits n bytes off the front of the residual region.
func (p *Page) carve(n int) *chunkBase {
	c := p.fence() // prevSize already holds the last chunk's size
	c.head = uint32(n)
	c.page = p.id
	c.index = 0

	p.top += n
	p.size -= n

	f := p.fence()
	f.head = inUseBit
	f.prevSize = uint32(n)
	f.page = p.id
	f.index = 0
	return c
}

func (p *Page) contains(ptr unsafe.Pointer) bool {
	off := uintptr(ptr) - uintptr(p.base)
	return uintptr(ptr) >= uintptr(p.base) && off < uintptr(len(p.mem))
}

// holdsPayload reports whether ptr is an aligned payload address in front
// of the fence.
func (p *Page) holdsPayload(ptr unsafe.Pointer) bool {
	off := uintptr(ptr) - uintptr(p.base)
	return off&alignMask == 0 && off >= HeaderSize && off-HeaderSize < uintptr(p.top)
}

func (p *Page) count() int {
	n := 0
	for q := p.next; q != p; q = q.next {
		n++
	}
	return n
}

// pageTable resolves refs to headers. Page id 0 is reserved for nilRef.
type pageTable struct {
	pages []*Page
	spans []*Page // sorted by base address
}

func (t *pageTable) chunkAt(r blockRef) *chunkBase {
	p := t.pages[r.page()]
	return (*chunkBase)(unsafe.Add(p.base, int(r.offset())))
}

func (t *pageTable) smallAt(r blockRef) *chunk {
	return (*chunk)(unsafe.Pointer(t.chunkAt(r)))
}

func (t *pageTable) treeAt(r blockRef) *treeChunk {
	return (*treeChunk)(unsafe.Pointer(t.chunkAt(r)))
}

func (t *pageTable) refOf(c *chunkBase) blockRef {
	p := t.pages[c.page]
	return makeRef(c.page, uint32(uintptr(unsafe.Pointer(c))-uintptr(p.base)))
}

func (t *pageTable) register(p *Page) {
	p.id = uint32(len(t.pages))
	t.pages = append(t.pages, p)

	i := sort.Search(len(t.spans), func(i int) bool {
		return uintptr(t.spans[i].base) > uintptr(p.base)
	})
	t.spans = append(t.spans, nil)
	copy(t.spans[i+1:], t.spans[i:])
	t.spans[i] = p
}

// owner returns the page holding ptr, or nil.
func (t *pageTable) owner(ptr unsafe.Pointer) *Page {
	i := sort.Search(len(t.spans), func(i int) bool {
		return uintptr(t.spans[i].base) > uintptr(ptr)
	})
	if i == 0 {
		return nil
	}
	if p := t.spans[i-1]; p.contains(ptr) {
		return p
	}
	return nil
}

// newPage reserves a page for the small or large arena and registers a
// descriptor for it from the current bank.
func (a *Allocator) newPage(large bool) (*Page, error) {
	size := a.cfg.PageSize
	if large {
		size = a.cfg.LargePageSize
	}
	mem, err := vmem.Reserve(size)
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "reserve page: %v", err)
	}

	bank := a.pageBank
	if bank == nil || bank.used == len(bank.slots) {
		bank = &pageBank{slots: make([]Page, a.pageBankSize), next: a.pageBank}
		a.pageBank = bank
		a.log.Debug("page bank allocated", "slots", a.pageBankSize)
	}
	p := &bank.slots[bank.used]
	bank.used++

	*p = Page{
		mem:   mem,
		base:  unsafe.Pointer(&mem[0]),
		size:  len(mem) - HeaderSize,
		large: large,
	}
	a.register(p)

	f := p.fence()
	f.head = inUseBit
	f.prevSize = 0
	f.page = p.id
	f.index = 0

	a.log.Debug("page reserved", "id", p.id, "large", large, "bytes", len(mem))
	return p, nil
}

// allocateChunk carves a small chunk from the small-page arena.
func (a *Allocator) allocateChunk(nb int) (*chunkBase, error) {
	return a.allocateFrom(&a.page, nb, false, MinChunkSize)
}

// allocateTreeChunk carves a large chunk from the large-page arena.
func (a *Allocator) allocateTreeChunk(nb int) (*chunkBase, error) {
	return a.allocateFrom(&a.largePage, nb, true, MinLargeSize)
}

func (a *Allocator) allocateFrom(head *Page, nb int, large bool, minResidual int) (*chunkBase, error) {
	p := head.next
	for ; p != head; p = p.next {
		if p.size >= nb {
			break
		}
	}
	if p == head {
		var err error
		if p, err = a.newPage(large); err != nil {
			return nil, err
		}
		p.linkAfter(head)
	}

	c := p.carve(nb)
	if p.size < minResidual {
		p.unlink()
		p.linkAfter(&a.allocatedPage)
	}
	return c, nil
}

// releasePages returns every page of a list to the OS.
func (a *Allocator) releasePages(head *Page) {
	for p := head.next; p != head; {
		next := p.next
		if err := vmem.Release(p.mem); err != nil {
			a.log.Warn("page release failed", "id", p.id, "err", err)
		}
		p.mem, p.base = nil, nil
		p = next
	}
	head.init()
}
