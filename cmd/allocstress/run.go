/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"memalloc"
)

var (
	runWorkload      workload
	runCheck         bool
	runPageSize      int
	runLargePageSize int
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runWorkload.Ops, "ops", 100_000, "Number of allocate/deallocate operations")
	cmd.Flags().Int64Var(&runWorkload.Seed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&runWorkload.MaxSize, "max-size", 64*1024, "Largest regular request in bytes")
	cmd.Flags().IntVar(&runWorkload.Live, "live", 4096, "Maximum number of live blocks")
	cmd.Flags().IntVar(&runWorkload.Oversized, "oversized", 0, "Percent of requests above the large-chunk limit")
	cmd.Flags().IntVar(&runWorkload.VerifyEvery, "verify-every", 0, "Verify the heap every n operations")
	cmd.Flags().BoolVar(&runCheck, "check", false, "Stamp chunks and validate stamps on free")
	cmd.Flags().IntVar(&runPageSize, "page-size", memalloc.DefaultPageSize, "Small arena page size in bytes")
	cmd.Flags().IntVar(&runLargePageSize, "large-page-size", memalloc.DefaultLargePageSize, "Large arena page size in bytes")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a random workload",
		Long: `The run command performs a seeded random sequence of allocations and
frees, validates each payload on free, verifies the heap and prints the
allocator statistics before and after releasing every block.

Example:
  allocstress run --ops 1000000 --live 10000
  allocstress run --check --oversized 1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

func runRun(out, errOut io.Writer) error {
	logger := newLogger(errOut)
	a, err := memalloc.New(&memalloc.Config{
		PageSize:      runPageSize,
		LargePageSize: runLargePageSize,
		Check:         runCheck,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer a.Dispose()

	memStart := sampleMemory()
	if need := runWorkload.worstCase(); memStart.SystemFree > 0 && need > memStart.SystemFree {
		logger.Warn("workload may exceed free memory",
			"worstCase", humanize.IBytes(need), "free", humanize.IBytes(memStart.SystemFree))
	}

	start := time.Now()
	r, err := runWorkload.run(a)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	r.MemStart, r.MemEnd = memStart, sampleMemory()

	if jsonOut {
		return printJSON(out, r)
	}
	printReport(out, r, elapsed)
	return nil
}

func printReport(w io.Writer, r report, elapsed time.Duration) {
	fmt.Fprintf(w, "ops:            %s in %v\n", humanize.Comma(int64(r.Workload.Ops)), elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "allocations:    %s\n", humanize.Comma(int64(r.Allocations)))
	fmt.Fprintf(w, "deallocations:  %s\n", humanize.Comma(int64(r.Deallocations)))
	fmt.Fprintf(w, "peak live:      %s blocks, %s\n", humanize.Comma(int64(r.PeakLive)), humanize.IBytes(uint64(r.PeakUsed)))
	fmt.Fprintf(w, "gathered:       %d\n", r.Gathered)
	printStats(w, "before release", r.Before)
	printStats(w, "after release", r.After)
	if r.MemEnd.SystemTotal > 0 {
		fmt.Fprintf(w, "system:         %s free of %s\n", humanize.IBytes(r.MemEnd.SystemFree), humanize.IBytes(r.MemEnd.SystemTotal))
	}
	if r.MemEnd.Resident > 0 {
		fmt.Fprintf(w, "resident:       %s at start, %s at end\n", humanize.IBytes(r.MemStart.Resident), humanize.IBytes(r.MemEnd.Resident))
	}
}

func printStats(w io.Writer, title string, s memalloc.Stats) {
	fmt.Fprintf(w, "%s:\n", title)
	fmt.Fprintf(w, "  pages:        %d small, %d large, %d full (%d banks)\n", s.SmallPages, s.LargePages, s.AllocatedPages, s.PageBanks)
	fmt.Fprintf(w, "  direct:       %d\n", s.DirectMappings)
	fmt.Fprintf(w, "  reserved:     %s\n", humanize.IBytes(uint64(s.ReservedBytes)))
	fmt.Fprintf(w, "  used:         %s\n", humanize.IBytes(uint64(s.UsedBytes)))
	fmt.Fprintf(w, "  free:         %s in %s chunks\n", humanize.IBytes(uint64(s.FreeBytes)), humanize.Comma(int64(s.FreeChunks)))
}
