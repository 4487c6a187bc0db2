package main

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memalloc"
)

func newAllocator(t *testing.T, check bool) *memalloc.Allocator {
	t.Helper()
	a, err := memalloc.New(&memalloc.Config{Check: check})
	require.NoError(t, err)
	t.Cleanup(a.Dispose)
	return a
}

func TestWorkloadRun(t *testing.T) {
	tests := []struct {
		name  string
		w     workload
		check bool
	}{
		{"small", workload{Ops: 5000, Seed: 3, MaxSize: memalloc.MaxSmallRequest, Live: 300, VerifyEvery: 500}, false},
		{"mixed", workload{Ops: 5000, Seed: 4, MaxSize: 64 * 1024, Live: 200, VerifyEvery: 1000}, false},
		{"checked", workload{Ops: 3000, Seed: 5, MaxSize: 8192, Live: 100, VerifyEvery: 300}, true},
		{"oversized", workload{Ops: 500, Seed: 6, MaxSize: 1024, Live: 20, Oversized: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAllocator(t, tt.check)
			r, err := tt.w.run(a)
			require.NoError(t, err)

			assert.Equal(t, r.Allocations, r.Deallocations)
			assert.LessOrEqual(t, r.PeakLive, tt.w.Live)
			assert.Positive(t, r.PeakUsed)
			assert.Zero(t, r.After.UsedBytes)
			assert.Zero(t, r.After.DirectMappings)
			assert.Zero(t, a.UsedSize())
		})
	}
}

func TestWorkloadDeterministic(t *testing.T) {
	w := workload{Ops: 2000, Seed: 9, MaxSize: 4096, Live: 64}
	r1, err := w.run(newAllocator(t, false))
	require.NoError(t, err)
	r2, err := w.run(newAllocator(t, false))
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestWorkloadValidate(t *testing.T) {
	valid := workload{Ops: 1, MaxSize: 1, Live: 1}
	require.NoError(t, valid.validate())

	for name, w := range map[string]workload{
		"ops":       {Ops: 0, MaxSize: 1, Live: 1},
		"max size":  {Ops: 1, MaxSize: 0, Live: 1},
		"live":      {Ops: 1, MaxSize: 1, Live: -1},
		"oversized": {Ops: 1, MaxSize: 1, Live: 1, Oversized: 101},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, w.validate())
			_, err := w.run(newAllocator(t, false))
			assert.Error(t, err)
		})
	}
}

func TestSizeClassesAreContiguous(t *testing.T) {
	classes := sizeClasses()
	require.NotEmpty(t, classes)
	assert.Equal(t, memalloc.MinChunkSize, classes[0].MinChunk)
	assert.Equal(t, "direct", classes[len(classes)-1].Kind)

	trees := 0
	for i := 1; i < len(classes); i++ {
		prev, c := classes[i-1], classes[i]
		assert.Equal(t, prev.MaxChunk+memalloc.MallocAlign, c.MinChunk, "gap before %s bin %d", c.Kind, c.Bin)
		if c.Kind == "tree" {
			trees++
		}
	}
	assert.Equal(t, memalloc.NumTreeBins, trees)
}

func TestClassesCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"classes"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "KIND")
	assert.Contains(t, out.String(), "1.0 MiB")
}

func TestRunCommandJSON(t *testing.T) {
	t.Cleanup(func() { jsonOut = false })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"run", "--ops", "2000", "--live", "50", "--max-size", "2048", "--check", "--json"})
	require.NoError(t, rootCmd.Execute())

	var r report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.Equal(t, 2000, r.Workload.Ops)
	assert.Equal(t, r.Allocations, r.Deallocations)
	assert.Zero(t, r.After.UsedBytes)
	assert.Empty(t, errOut.String(), "no warnings on a clean run")
}

func TestWorstCase(t *testing.T) {
	assert.Equal(t, uint64(10*4096), workload{Live: 10, MaxSize: 4096}.worstCase())
	assert.Equal(t, uint64(10*(2<<20)), workload{Live: 10, MaxSize: 4096, Oversized: 1}.worstCase())
}

func TestSampleMemory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("memory sampling is only asserted on linux")
	}
	s := sampleMemory()
	assert.Positive(t, s.SystemTotal)
	assert.LessOrEqual(t, s.SystemFree, s.SystemTotal)
	assert.Positive(t, s.Resident)
}
