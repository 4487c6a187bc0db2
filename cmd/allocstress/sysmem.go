/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package main

import (
	"os"

	sigar "github.com/cloudfoundry/gosigar"
)

// memSample is a point-in-time view of system and process memory. Fields
// stay zero where the platform gives no answer.
type memSample struct {
	SystemTotal uint64 `json:"system_total"`
	SystemFree  uint64 `json:"system_free"`
	Resident    uint64 `json:"resident"`
}

func sampleMemory() memSample {
	var s memSample
	mem := sigar.Mem{}
	if err := mem.Get(); err == nil {
		s.SystemTotal, s.SystemFree = mem.Total, mem.ActualFree
	}
	proc := sigar.ProcMem{}
	if err := proc.Get(os.Getpid()); err == nil {
		s.Resident = proc.Resident
	}
	return s
}

// worstCase bounds the bytes a workload can hold live at once.
func (w workload) worstCase() uint64 {
	per := uint64(w.MaxSize)
	if w.Oversized > 0 {
		per = 2 << 20
	}
	return uint64(w.Live) * per
}
