// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"fmt"
	"os"

	"github.com/bpowers/arrayfile/internal/backend"
)

// ResizeOption configures SetArrayLength.
type ResizeOption func(*resizeOptions)

type resizeOptions struct {
	renameTo string
}

// WithRenameTo makes SetArrayLength rename the file to newPath after
// resizing, reopening the Writer against the new path. If the rename
// fails it is logged and degraded to a no-rename continuation -- the
// call still succeeds against the original path, which is the
// designated recovery when the rename itself can't complete.
func WithRenameTo(newPath string) ResizeOption {
	return func(o *resizeOptions) { o.renameTo = newPath }
}

// SetArrayLength changes the array length to newLength. It is a no-op
// if newLength equals the current length. Otherwise it flushes
// outstanding writes, truncates the file to
// 1024+newLength*element_size (growing zero-fills, shrinking discards
// the tail), writes the new array_length header field and flushes,
// then refreshes the Writer: renames-and-reopens if WithRenameTo was
// given, remaps in place if the backend supports it, or closes and
// reopens otherwise.
//
// A failure between the truncate and the header write leaves the file
// physically resized with a stale header; an external redo log must
// observe the size mismatch and reconcile.
func (af *ArrayFile) SetArrayLength(newLength int32, opts ...ResizeOption) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if err := af.checkOpen(); err != nil {
		return err
	}
	if newLength < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, newLength)
	}
	if newLength == af.hdr.arrayLength {
		return nil
	}

	var ro resizeOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: SetArrayLength(%s): flush: %w", af.path, err)
	}

	fileLength := int64(headerSize) + int64(newLength)*int64(af.hdr.elementSize)
	if err := truncateFile(af.path, fileLength); err != nil {
		return fmt.Errorf("arrayfile: SetArrayLength(%s): %w", af.path, err)
	}

	oldLength := af.hdr.arrayLength
	if err := writeArrayLength(af.w, &af.hdr, newLength); err != nil {
		return fmt.Errorf("arrayfile: SetArrayLength(%s): %w", af.path, err)
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: SetArrayLength(%s): flush: %w", af.path, err)
	}

	if ro.renameTo != "" {
		if err := af.renameAndReopen(ro.renameTo); err != nil {
			return fmt.Errorf("arrayfile: SetArrayLength(%s): %w", af.path, err)
		}
		af.logger.Info("resized (renamed)", "oldLength", oldLength, "newLength", newLength, "path", af.path)
		return nil
	}

	if remappable, ok := af.w.(backend.Remappable); ok {
		if err := remappable.Remap(); err != nil {
			return fmt.Errorf("arrayfile: SetArrayLength(%s): remap: %w", af.path, err)
		}
		af.logger.Info("resized (remapped)", "oldLength", oldLength, "newLength", newLength, "path", af.path)
		return nil
	}

	if err := af.reopenWriter(); err != nil {
		return fmt.Errorf("arrayfile: SetArrayLength(%s): %w", af.path, err)
	}
	af.logger.Info("resized (reopened)", "oldLength", oldLength, "newLength", newLength, "path", af.path)
	return nil
}

// renameAndReopen renames the backing file to newPath and reopens the
// Writer against it. On rename failure it logs a warning and
// continues against the original path -- this is the only recovery
// path the core performs on its own.
func (af *ArrayFile) renameAndReopen(newPath string) error {
	if err := af.w.Close(); err != nil {
		return fmt.Errorf("close before rename: %w", err)
	}
	if err := os.Rename(af.path, newPath); err != nil {
		af.logger.Warn("failed to rename, continuing with original path",
			"from", af.path, "to", newPath, "err", err)
		w, reopenErr := backend.OpenWriter(af.path, af.ioType)
		if reopenErr != nil {
			return fmt.Errorf("reopen after failed rename: %w", reopenErr)
		}
		af.w = w
		return nil
	}
	af.path = newPath
	w, err := backend.OpenWriter(af.path, af.ioType)
	if err != nil {
		return fmt.Errorf("reopen after rename: %w", err)
	}
	af.w = w
	return nil
}

func (af *ArrayFile) reopenWriter() error {
	if err := af.w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	w, err := backend.OpenWriter(af.path, af.ioType)
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	af.w = w
	return nil
}

func truncateFile(path string, length int64) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := f.Truncate(length); err != nil {
		return fmt.Errorf("Truncate(%s, %d): %w", path, length, err)
	}
	return nil
}
