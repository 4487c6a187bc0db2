/* This program is free software. It comes without any warranty, to
 * the extent permitted by applicable law. You can redistribute it
 * and/or modify it under the terms of the Do What The Fuck You Want
 * To Public License, Version 2, as published by Sam Hocevar. See
 * http://sam.zoy.org/wtfpl/COPYING for more details. */

package memalloc

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"memalloc/internal/vmem"
)

// maxPageSize keeps page offsets and chunk sizes inside a uint32.
const maxPageSize = 1 << 30

// Config configures an Allocator.
type Config struct {
	// PageSize is the reservation size of the small-chunk arena.
	PageSize int
	// LargePageSize is the reservation size of the large-chunk arena. It
	// must hold a MaxLargeChunkSize chunk plus the page fence.
	LargePageSize int
	// Check stamps every chunk with a trailing magic word that Deallocate
	// validates. Defaults to true under the memalloc_check build tag or
	// when MEMALLOC_CHECK is set.
	Check bool
	// Logger receives debug and warning events. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:      DefaultPageSize,
		LargePageSize: DefaultLargePageSize,
		Check:         checkDefault || os.Getenv("MEMALLOC_CHECK") != "",
	}
}

// Validate fills zero fields with defaults, rounds page sizes up to the OS
// page size and rejects sizes the arenas cannot work with.
func (c *Config) Validate() error {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.LargePageSize == 0 {
		c.LargePageSize = DefaultLargePageSize
	}
	if c.PageSize < 0 || c.PageSize > maxPageSize {
		return errors.Wrapf(ErrInvalidConfig, "page size %d", c.PageSize)
	}
	if c.LargePageSize < 0 || c.LargePageSize > maxPageSize {
		return errors.Wrapf(ErrInvalidConfig, "large page size %d", c.LargePageSize)
	}

	c.PageSize = vmem.RoundUp(c.PageSize)
	c.LargePageSize = vmem.RoundUp(c.LargePageSize)

	if c.PageSize < MaxSmallChunkSize+HeaderSize {
		return errors.Wrapf(ErrInvalidConfig, "page size %d below %d", c.PageSize, MaxSmallChunkSize+HeaderSize)
	}
	if c.LargePageSize < MaxLargeChunkSize+HeaderSize {
		return errors.Wrapf(ErrInvalidConfig, "large page size %d below %d", c.LargePageSize, MaxLargeChunkSize+HeaderSize)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}
