/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

import (
	"log/slog"
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"memalloc/internal/vmem"
)

// Arena defines the interface for a memory allocation arena.
// Implementations of this interface are expected to manage memory allocation and deallocation.
type Arena interface {
	// Allocate allocates a block of memory with the specified size.
	// It returns an unsafe.Pointer to the allocated memory and an error if the allocation fails.
	//
	// Parameters:
	//   - size: The size of the memory block to allocate, in bytes.
	//
	// Returns:
	//   - unsafe.Pointer: A pointer to the allocated memory block, aligned to MallocAlign.
	//   - error: An error if the allocation fails, or nil if successful.
	Allocate(size int) (unsafe.Pointer, error)

	// Deallocate returns the memory block pointed to by ptr.
	// A nil ptr is a no-op.
	//
	// Parameters:
	//   - ptr: A pointer returned by Allocate on the same arena.
	//
	// Returns:
	//   - error: ErrBadPointer, ErrDoubleFree or ErrCorrupted when ptr is rejected.
	Deallocate(ptr unsafe.Pointer) error

	// Dispose releases all resources associated with the Arena.
	// After calling Dispose, the Arena should not be used anymore.
	Dispose()

	// UsedSize returns the total amount of chunk size (NOT allocation size) currently allocated by the Arena.
	//
	// Returns:
	//   - int64: The total size of allocated memory in bytes.
	UsedSize() int64
}

// Allocator is a segregated-fit allocator over OS page reservations.
// Requests up to MaxSmallRequest are served from exact-size small bins,
// requests up to MaxLargeRequest from a best-fit bitwise trie, and larger
// requests get a dedicated mapping.
//
// WARNING: This type is NOT goroutine-safe.
type Allocator struct {
	pageTable

	smallBins smallBins
	largeTree bitwiseTrie

	// Sentinels of the small arena, the large arena and the exhausted pages.
	page          Page
	largePage     Page
	allocatedPage Page

	pageBank     *pageBank
	pageBankSize int

	// Oversized mappings keyed by header address.
	direct map[uintptr][]byte

	cfg   Config
	check bool
	log   *slog.Logger

	usedSize   int64
	freeChunks int
	freeBytes  int64
	disposed   bool
}

var _ Arena = (*Allocator)(nil)

// maxRequest guards chunk size arithmetic against overflow.
const maxRequest = math.MaxInt / 2

// New creates an allocator. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Allocator, error) {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	a := &Allocator{
		direct: make(map[uintptr][]byte),
		cfg:    c,
		check:  c.Check,
		log:    c.Logger,
	}
	a.pages = []*Page{nil}
	a.smallBins.pt = &a.pageTable
	a.largeTree.pt = &a.pageTable
	a.page.init()
	a.largePage.init()
	a.allocatedPage.init()

	a.pageBankSize = vmem.PageSize() / int(unsafe.Sizeof(Page{}))
	if a.pageBankSize < 1 {
		a.pageBankSize = 1
	}
	a.pageBank = &pageBank{slots: make([]Page, a.pageBankSize)}

	a.log.Debug("allocator created",
		"pageSize", c.PageSize, "largePageSize", c.LargePageSize,
		"pageBankSize", a.pageBankSize, "check", c.Check)
	return a, nil
}

// Allocate returns size bytes aligned to MallocAlign. The memory is not
// tracked by the garbage collector and must not hold Go pointers.
func (a *Allocator) Allocate(size int) (unsafe.Pointer, error) {
	if a.disposed {
		return nil, ErrDisposed
	}
	if size <= 0 || size > maxRequest {
		return nil, errors.Wrapf(ErrInvalidSize, "allocate %d bytes", size)
	}

	nb := padRequest(size, a.check)
	var c *chunkBase
	var err error
	switch {
	case nb <= MaxSmallChunkSize:
		c, err = a.allocateSmall(nb)
	case nb <= MaxLargeChunkSize:
		c, err = a.allocateLarge(nb)
	default:
		return a.allocateDirect(size)
	}
	if err != nil {
		return nil, err
	}

	c.setInUse(true)
	a.usedSize += int64(c.size())
	if a.check {
		a.setMagic(c)
	}
	return c.getMemory(), nil
}

// AllocateBytes is Allocate returning the payload as a slice of size bytes.
func (a *Allocator) AllocateBytes(size int) ([]byte, error) {
	ptr, err := a.Allocate(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (a *Allocator) allocateSmall(nb int) (*chunkBase, error) {
	if r := a.smallBins.best(smallIndex(nb)); r != nilRef {
		a.smallBins.unlink(r)
		return a.reuse(r, nb), nil
	}
	// Freed small chunks merge past MaxSmallChunkSize into the trie; split
	// the smallest of them before touching the page frontier.
	if r := a.largeTree.findLarger(MinLargeSize); r != nilRef {
		a.largeTree.remove(r)
		return a.reuse(r, nb), nil
	}
	return a.allocateChunk(nb)
}

func (a *Allocator) allocateLarge(nb int) (*chunkBase, error) {
	if r := a.largeTree.findLarger(nb); r != nilRef {
		a.largeTree.remove(r)
		return a.reuse(r, nb), nil
	}
	return a.allocateTreeChunk(nb)
}

// reuse takes an unbinned free chunk out of the free accounting and trims
// it to nb bytes.
func (a *Allocator) reuse(r blockRef, nb int) *chunkBase {
	c := a.chunkAt(r)
	a.tookFree(c)
	a.trim(c, nb)
	return c
}

// allocateDirect maps an oversized request on its own. The header carries
// no size; the mapping length is kept in a.direct. In check mode the last
// word of the mapping is stamped.
func (a *Allocator) allocateDirect(size int) (unsafe.Pointer, error) {
	n := size + HeaderSize
	if a.check {
		n += stampSize
	}
	mem, err := vmem.Reserve(vmem.RoundUp(n))
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "direct %d bytes: %v", size, err)
	}
	c := (*chunkBase)(unsafe.Pointer(&mem[0]))
	c.head = directBit | inUseBit
	a.direct[uintptr(unsafe.Pointer(c))] = mem
	a.usedSize += int64(len(mem))
	if a.check {
		a.setMagic(c)
	}
	a.log.Debug("direct mapping", "request", size, "bytes", len(mem))
	return c.getMemory(), nil
}

// trim splits the excess off a chunk leaving it exactly nb bytes, unless
// the excess is too small to stand as a chunk.
func (a *Allocator) trim(c *chunkBase, nb int) {
	if rem := c.size() - nb; rem >= MinChunkSize {
		a.insertFree(c.splitBack(rem))
	}
}

// Deallocate returns ptr to the allocator. A nil ptr is a no-op.
func (a *Allocator) Deallocate(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}
	if a.disposed {
		return ErrDisposed
	}

	key := uintptr(ptr) - HeaderSize
	if mem, ok := a.direct[key]; ok {
		if a.check {
			if err := a.checkMagic(getChunk(ptr)); err != nil {
				a.log.Warn("check stamp mismatch", "ptr", ptr, "err", err)
				return err
			}
		}
		delete(a.direct, key)
		a.usedSize -= int64(len(mem))
		return vmem.Release(mem)
	}

	p := a.owner(ptr)
	if p == nil || !p.holdsPayload(ptr) {
		a.log.Warn("deallocate rejected", "ptr", ptr)
		return errors.Wrapf(ErrBadPointer, "%p", ptr)
	}
	c := getChunk(ptr)
	if c.page != p.id || c.direct() {
		a.log.Warn("deallocate rejected", "ptr", ptr, "page", p.id)
		return errors.Wrapf(ErrBadPointer, "%p", ptr)
	}
	if !c.inUse() {
		a.log.Warn("double free", "ptr", ptr)
		return errors.Wrapf(ErrDoubleFree, "%p", ptr)
	}
	if a.check {
		if err := a.checkMagic(c); err != nil {
			a.log.Warn("check stamp mismatch", "ptr", ptr, "err", err)
			return err
		}
	}

	c.setInUse(false)
	a.usedSize -= int64(c.size())
	a.insertFree(a.combineAround(c))
	return nil
}

// DeallocateBytes returns a slice obtained from AllocateBytes.
func (a *Allocator) DeallocateBytes(b []byte) error {
	return a.Deallocate(unsafe.Pointer(unsafe.SliceData(b)))
}

// combineAround merges a freshly freed chunk with its free physical
// neighbours as long as the result stays within MaxLargeChunkSize.
// The returned chunk is not yet binned.
func (a *Allocator) combineAround(c *chunkBase) *chunkBase {
	if p := c.prevChunk(); p != nil && !p.inUse() && p.size()+c.size() <= MaxLargeChunkSize {
		a.unlinkFree(p)
		p.setSize(p.size() + c.size())
		c = p
	}
	if n := c.nextChunk(); !n.inUse() && c.size()+n.size() <= MaxLargeChunkSize {
		a.unlinkFree(n)
		c.setSize(c.size() + n.size())
	}
	c.nextChunk().prevSize = uint32(c.size())
	return c
}

// insertFree bins a free chunk by its size.
func (a *Allocator) insertFree(c *chunkBase) {
	r := a.refOf(c)
	if c.size() <= MaxSmallChunkSize {
		a.smallBins.link(r)
	} else {
		a.largeTree.insert(r)
	}
	a.freeChunks++
	a.freeBytes += int64(c.size())
}

// unlinkFree takes a free chunk out of its bin.
func (a *Allocator) unlinkFree(c *chunkBase) {
	r := a.refOf(c)
	if c.size() <= MaxSmallChunkSize {
		a.smallBins.unlink(r)
	} else {
		a.largeTree.remove(r)
	}
	a.tookFree(c)
}

func (a *Allocator) tookFree(c *chunkBase) {
	a.freeChunks--
	a.freeBytes -= int64(c.size())
}

// Dispose releases every page, every oversized mapping and every page bank.
func (a *Allocator) Dispose() {
	if a.disposed {
		return
	}
	a.releasePages(&a.page)
	a.releasePages(&a.largePage)
	a.releasePages(&a.allocatedPage)
	for key, mem := range a.direct {
		if err := vmem.Release(mem); err != nil {
			a.log.Warn("direct release failed", "err", err)
		}
		delete(a.direct, key)
	}
	a.pages, a.spans = nil, nil
	a.pageBank = nil
	a.smallBins = smallBins{pt: &a.pageTable}
	a.largeTree = bitwiseTrie{pt: &a.pageTable}
	a.usedSize, a.freeChunks, a.freeBytes = 0, 0, 0
	a.disposed = true
	a.log.Debug("allocator disposed")
}

// UsedSize returns the total amount of chunk size (NOT allocation size) currently allocated.
func (a *Allocator) UsedSize() int64 {
	return a.usedSize
}
