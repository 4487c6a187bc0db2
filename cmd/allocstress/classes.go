/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"memalloc"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "classes",
		Short: "Print the size classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(cmd.OutOrStdout())
		},
	})
}

type sizeClass struct {
	Kind     string `json:"kind"`
	Bin      int    `json:"bin"`
	MinChunk int    `json:"min_chunk"`
	MaxChunk int    `json:"max_chunk"`
}

func sizeClasses() []sizeClass {
	var classes []sizeClass
	for size := memalloc.MinChunkSize; size <= memalloc.MaxSmallChunkSize; size += memalloc.MallocAlign {
		classes = append(classes, sizeClass{"small", size >> memalloc.SmallBinShift, size, size})
	}
	for i := range memalloc.NumTreeBins {
		lo := memalloc.MinLargeSize << i
		hi := min(2*lo-memalloc.MallocAlign, memalloc.MaxLargeChunkSize)
		classes = append(classes, sizeClass{"tree", i, lo, hi})
	}
	return append(classes, sizeClass{"direct", -1, memalloc.MaxLargeChunkSize + memalloc.MallocAlign, 0})
}

func runClasses(w io.Writer) error {
	classes := sizeClasses()
	if jsonOut {
		return printJSON(w, classes)
	}
	fmt.Fprintf(w, "%-7s %4s  %10s  %10s\n", "KIND", "BIN", "MIN", "MAX")
	for _, c := range classes {
		hi := "-"
		if c.MaxChunk > 0 {
			hi = humanize.IBytes(uint64(c.MaxChunk))
		}
		fmt.Fprintf(w, "%-7s %4d  %10s  %10s\n", c.Kind, c.Bin, humanize.IBytes(uint64(c.MinChunk)), hi)
	}
	return nil
}
