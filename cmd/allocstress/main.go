/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

// Command allocstress drives random allocate/deallocate workloads against a
// memalloc allocator and reports its bookkeeping.
package main

func main() {
	execute()
}
