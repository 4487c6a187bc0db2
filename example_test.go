package memalloc

import (
	"fmt"
	"testing"
)

var testCases = []int{
	64,      /*small*/
	1_024,   /*1KB*/
	10_240,  /*10KB*/
	102_400, /*100KB*/
	512_000, /*500KB*/
}

func BenchmarkSlice_NoArena(b *testing.B) {
	for _, testBytes := range testCases {
		b.Run(fmt.Sprintf("testBytes=%d", testBytes), func(b *testing.B) {
			for range b.N {
				_ = make([]byte, testBytes, testBytes)
			}
		})
	}
}

func BenchmarkSlice_Allocator(b *testing.B) {
	for _, testBytes := range testCases {
		b.Run(fmt.Sprintf("testBytes=%d", testBytes), func(b *testing.B) {
			a, err := New(&Config{})
			if err != nil {
				b.Fatal(err)
			}
			defer a.Dispose()
			for range b.N {
				ptr, _ := a.Allocate(testBytes)
				_ = a.Deallocate(ptr)
			}
		})
	}
}

// Keeps a rolling window of live chunks so frees coalesce with neighbours.
func BenchmarkSlice_AllocatorWindow(b *testing.B) {
	for _, testBytes := range testCases {
		b.Run(fmt.Sprintf("testBytes=%d", testBytes), func(b *testing.B) {
			a, err := New(&Config{})
			if err != nil {
				b.Fatal(err)
			}
			defer a.Dispose()
			var window [64][]byte
			for i := range b.N {
				slot := &window[i%len(window)]
				if *slot != nil {
					_ = a.DeallocateBytes(*slot)
				}
				*slot, _ = a.AllocateBytes(testBytes)
			}
		})
	}
}

func Example() {
	a, err := New(&Config{Check: false})
	if err != nil {
		panic(err)
	}

	ptr, err := a.Allocate(460)
	if err != nil {
		panic(err)
	}

	fmt.Printf("used_size: %d byte", a.UsedSize())

	if err := a.Deallocate(ptr); err != nil {
		panic(err)
	}

	a.Dispose()
	// Output: used_size: 480 byte
}
