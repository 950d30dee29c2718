// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import "fmt"

// WriteI16 writes v at index's byte offset (dataStartPosition +
// index*element_size) via the underlying Writer. It bypasses the
// water-mark protocol entirely -- no flush, no HWM/LWM touch -- and is
// unsynchronised per spec.md §5: callers must not interleave it with a
// concurrent Update/Reset*/SetArrayLength on the same handle. Index
// bounds are not checked; callers own bounds discipline (spec.md §4.2).
func (af *ArrayFile) WriteI16(index int32, v int16) error {
	if err := af.checkOpen(); err != nil {
		return err
	}
	offset := int64(dataStartPosition) + int64(index)*int64(af.hdr.elementSize)
	if err := af.w.WriteI16At(offset, v); err != nil {
		return fmt.Errorf("arrayfile: WriteI16(%s, %d): %w", af.path, index, err)
	}
	return nil
}

// WriteI32 is WriteI16 for 4-byte elements.
func (af *ArrayFile) WriteI32(index int32, v int32) error {
	if err := af.checkOpen(); err != nil {
		return err
	}
	offset := int64(dataStartPosition) + int64(index)*int64(af.hdr.elementSize)
	if err := af.w.WriteI32At(offset, v); err != nil {
		return fmt.Errorf("arrayfile: WriteI32(%s, %d): %w", af.path, index, err)
	}
	return nil
}

// WriteI64 is WriteI16 for 8-byte elements.
func (af *ArrayFile) WriteI64(index int32, v int64) error {
	if err := af.checkOpen(); err != nil {
		return err
	}
	offset := int64(dataStartPosition) + int64(index)*int64(af.hdr.elementSize)
	if err := af.w.WriteI64At(offset, v); err != nil {
		return fmt.Errorf("arrayfile: WriteI64(%s, %d): %w", af.path, index, err)
	}
	return nil
}
