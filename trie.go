/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

// bitwiseTrie indexes large free chunks by size. The MSB of a size picks
// the bin, the bits below it (high to low) pick the child at each level.
// Every node in a subtree shares the prefix of the subtree's position, so
// any of them may be promoted into that position.
//
// Bit i of treeMap is set iff roots[i] is not nilRef.
type bitwiseTrie struct {
	pt      *pageTable
	roots   [NumTreeBins]blockRef
	treeMap uint32
}

// insert adds a free large chunk, either as a new trie node or as a
// sibling of the node that already holds its size.
func (t *bitwiseTrie) insert(r blockRef) {
	x := t.pt.treeAt(r)
	size := x.size()
	idx := treeIndex(size)
	x.index = uint32(idx)
	x.child[0], x.child[1] = nilRef, nilRef

	if t.treeMap&(1<<uint(idx)) == 0 {
		setBit(idx, &t.treeMap)
		t.roots[idx] = r
		x.parent = binRef
		x.prev, x.next = r, r
		return
	}

	cur := t.roots[idx]
	k := sizeKey(size, idx)
	for {
		tc := t.pt.treeAt(cur)
		if tc.size() != size {
			c := &tc.child[k>>63]
			k <<= 1
			if *c != nilRef {
				cur = *c
				continue
			}
			*c = r
			x.parent = cur
			x.prev, x.next = r, r
			return
		}

		f := tc.next
		tc.next = r
		t.pt.treeAt(f).prev = r
		x.next, x.prev = f, cur
		x.parent = nilRef
		return
	}
}

// remove detaches a chunk. A sibling takes over a node's position when
// there is one; otherwise a leaf of the node's subtree is promoted.
func (t *bitwiseTrie) remove(r blockRef) {
	x := t.pt.treeAt(r)
	xp := x.parent

	var rr blockRef
	if x.prev != r {
		f := x.next
		rr = x.prev
		t.pt.treeAt(f).prev = rr
		t.pt.treeAt(rr).next = f
	} else {
		rp := &x.child[1]
		if rr = *rp; rr == nilRef {
			rp = &x.child[0]
			rr = *rp
		}
		if rr != nilRef {
			for {
				rc := t.pt.treeAt(rr)
				cp := &rc.child[1]
				if *cp == nilRef {
					cp = &rc.child[0]
					if *cp == nilRef {
						break
					}
				}
				rp, rr = cp, *cp
			}
			*rp = nilRef
		}
	}

	if xp != nilRef {
		idx := int(x.index)
		if t.roots[idx] == r {
			if t.roots[idx] = rr; rr == nilRef {
				clearBit(idx, &t.treeMap)
			}
		} else {
			p := t.pt.treeAt(xp)
			if p.child[0] == r {
				p.child[0] = rr
			} else {
				p.child[1] = rr
			}
		}
		if rr != nilRef {
			rc := t.pt.treeAt(rr)
			rc.parent = xp
			if c0 := x.child[0]; c0 != nilRef {
				rc.child[0] = c0
				t.pt.treeAt(c0).parent = rr
			}
			if c1 := x.child[1]; c1 != nilRef {
				rc.child[1] = c1
				t.pt.treeAt(c1).parent = rr
			}
		}
	}

	x.prev, x.next = r, r
	x.parent = nilRef
	x.child[0], x.child[1] = nilRef, nilRef
}

// find returns the trie node holding exactly size, or nilRef.
func (t *bitwiseTrie) find(size int) blockRef {
	idx := treeIndex(size)
	if idx < 0 || idx >= NumTreeBins {
		return nilRef
	}
	k := sizeKey(size, idx)
	for cur := t.roots[idx]; cur != nilRef; k <<= 1 {
		tc := t.pt.treeAt(cur)
		if tc.size() == size {
			return cur
		}
		cur = tc.child[k>>63]
	}
	return nilRef
}

// findLarger returns the smallest chunk of at least nb bytes, or nilRef.
// Ties resolve to the first node met during the descent.
func (t *bitwiseTrie) findLarger(nb int) blockRef {
	v := nilRef
	rsize := 0
	better := func(cur blockRef) bool {
		rem := t.pt.treeAt(cur).size() - nb
		if rem >= 0 && (v == nilRef || rem < rsize) {
			v, rsize = cur, rem
			return true
		}
		return false
	}

	idx := treeIndex(nb)
	cur := t.roots[idx]
	if cur != nilRef {
		// Walk the path of nb, remembering the deepest right subtree that
		// was not taken: everything in it is larger than nb.
		k := sizeKey(nb, idx)
		rst := nilRef
		for {
			if better(cur) && rsize == 0 {
				return v
			}
			tc := t.pt.treeAt(cur)
			rt := tc.child[1]
			cur = tc.child[k>>63]
			if rt != nilRef && rt != cur {
				rst = rt
			}
			if cur == nilRef {
				cur = rst
				break
			}
			k <<= 1
		}
	}

	if cur == nilRef && v == nilRef {
		if left := t.treeMap & bitsFrom(idx+1); left != 0 {
			cur = t.roots[lsb(left)]
		}
	}

	// Minimum of the remaining subtree lies along its leftmost path.
	for cur != nilRef {
		better(cur)
		tc := t.pt.treeAt(cur)
		if cur = tc.child[0]; cur == nilRef {
			cur = tc.child[1]
		}
	}
	return v
}

// contains reports whether r is resident in the trie.
func (t *bitwiseTrie) contains(r blockRef) bool {
	n := t.find(t.pt.chunkAt(r).size())
	if n == nilRef {
		return false
	}
	for s := n; ; {
		if s == r {
			return true
		}
		if s = t.pt.treeAt(s).next; s == n {
			return false
		}
	}
}

// walk calls fn for every chunk of bin idx.
func (t *bitwiseTrie) walk(idx int, fn func(blockRef)) {
	var visit func(blockRef)
	visit = func(n blockRef) {
		if n == nilRef {
			return
		}
		tc := t.pt.treeAt(n)
		for s := n; ; {
			next := t.pt.treeAt(s).next
			fn(s)
			if s = next; s == n {
				break
			}
		}
		visit(tc.child[0])
		visit(tc.child[1])
	}
	visit(t.roots[idx])
}

func (t *bitwiseTrie) count(idx int) int {
	n := 0
	t.walk(idx, func(blockRef) { n++ })
	return n
}
