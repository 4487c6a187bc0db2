/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package main

import (
	"math/rand"
	"unsafe"

	"github.com/pkg/errors"

	"memalloc"
)

// workload describes a seeded random mix of allocations and frees.
type workload struct {
	Ops       int   `json:"ops"`
	Seed      int64 `json:"seed"`
	MaxSize   int   `json:"max_size"`
	Live      int   `json:"live"`      // cap on simultaneously live blocks
	Oversized int   `json:"oversized"` // percent of requests above MaxLargeRequest
	// VerifyEvery runs Verify every n operations; 0 only verifies at the end.
	VerifyEvery int `json:"verify_every"`
}

type report struct {
	Workload      workload       `json:"workload"`
	Allocations   int            `json:"allocations"`
	Deallocations int            `json:"deallocations"`
	PeakLive      int            `json:"peak_live"`
	PeakUsed      int64          `json:"peak_used_bytes"`
	Gathered      int            `json:"gathered"`
	Before        memalloc.Stats `json:"before_release"`
	After         memalloc.Stats `json:"after_release"`
	MemStart      memSample      `json:"mem_start"`
	MemEnd        memSample      `json:"mem_end"`
}

type block struct {
	ptr  unsafe.Pointer
	size int
	tag  byte
}

var errOverlap = errors.New("payload overwritten")

func (w workload) validate() error {
	switch {
	case w.Ops <= 0:
		return errors.Errorf("ops must be positive, got %d", w.Ops)
	case w.MaxSize <= 0:
		return errors.Errorf("max-size must be positive, got %d", w.MaxSize)
	case w.Live <= 0:
		return errors.Errorf("live must be positive, got %d", w.Live)
	case w.Oversized < 0 || w.Oversized > 100:
		return errors.Errorf("oversized must be a percentage, got %d", w.Oversized)
	}
	return nil
}

func (w workload) size(rng *rand.Rand) int {
	if w.Oversized > 0 && rng.Intn(100) < w.Oversized {
		return memalloc.MaxLargeRequest + 1 + rng.Intn(memalloc.MaxLargeChunkSize)
	}
	// Skew towards small requests the way real heaps are used.
	n := w.MaxSize
	for range 2 {
		if rng.Intn(2) == 0 {
			n = 1 + rng.Intn(n)
		}
	}
	return 1 + rng.Intn(n)
}

// run executes w against a, fills every allocation with a tag byte and
// checks the tag on free. All blocks are released before it returns.
func (w workload) run(a *memalloc.Allocator) (report, error) {
	r := report{Workload: w}
	if err := w.validate(); err != nil {
		return r, err
	}
	rng := rand.New(rand.NewSource(w.Seed))
	live := make([]block, 0, w.Live)

	free := func(i int) error {
		b := live[i]
		for _, x := range unsafe.Slice((*byte)(b.ptr), b.size) {
			if x != b.tag {
				return errors.Wrapf(errOverlap, "block %p of %d bytes", b.ptr, b.size)
			}
		}
		if err := a.Deallocate(b.ptr); err != nil {
			return err
		}
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
		r.Deallocations++
		return nil
	}

	for op := 1; op <= w.Ops; op++ {
		if len(live) < w.Live && (len(live) == 0 || rng.Intn(2) == 0) {
			size := w.size(rng)
			b, err := a.AllocateBytes(size)
			if err != nil {
				return r, errors.Wrapf(err, "op %d", op)
			}
			tag := byte(rng.Intn(255) + 1)
			for i := range b {
				b[i] = tag
			}
			live = append(live, block{unsafe.Pointer(unsafe.SliceData(b)), size, tag})
			r.Allocations++
			r.PeakLive = max(r.PeakLive, len(live))
			r.PeakUsed = max(r.PeakUsed, a.UsedSize())
		} else if err := free(rng.Intn(len(live))); err != nil {
			return r, errors.Wrapf(err, "op %d", op)
		}

		if w.VerifyEvery > 0 && op%w.VerifyEvery == 0 {
			if err := a.Verify(); err != nil {
				return r, errors.Wrapf(err, "op %d", op)
			}
		}
	}

	r.Before = a.Stats()
	for len(live) > 0 {
		if err := free(len(live) - 1); err != nil {
			return r, err
		}
	}
	r.Gathered = a.GatherFragments()
	if err := a.Verify(); err != nil {
		return r, err
	}
	r.After = a.Stats()
	return r, nil
}
