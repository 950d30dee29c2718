// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"fmt"
	"os"
	"time"

	"github.com/bpowers/arrayfile/internal/backend"
)

// Reset overwrites the body from position 1024 with the given
// fixed-width sequence. It flushes before repositioning (to evict any
// buffered positional writes), writes every element, then flushes
// again. It does not touch the water marks -- see ResetWithSCN for the
// variant that does.
func (af *ArrayFile) Reset(array any) error {
	af.mu.Lock()
	defer af.mu.Unlock()
	if err := af.checkOpen(); err != nil {
		return err
	}
	return af.reset(array)
}

func (af *ArrayFile) reset(array any) error {
	start := time.Now()

	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: Reset(%s): flush: %w", af.path, err)
	}
	if err := af.w.Position(dataStartPosition); err != nil {
		return fmt.Errorf("arrayfile: Reset(%s): Position: %w", af.path, err)
	}

	switch a := array.(type) {
	case []int16:
		for _, v := range a {
			if err := af.w.WriteI16(v); err != nil {
				return fmt.Errorf("arrayfile: Reset(%s): %w", af.path, err)
			}
		}
	case []int32:
		for _, v := range a {
			if err := af.w.WriteI32(v); err != nil {
				return fmt.Errorf("arrayfile: Reset(%s): %w", af.path, err)
			}
		}
	case []int64:
		for _, v := range a {
			if err := af.w.WriteI64(v); err != nil {
				return fmt.Errorf("arrayfile: Reset(%s): %w", af.path, err)
			}
		}
	default:
		return fmt.Errorf("arrayfile: Reset(%s): unsupported array type %T", af.path, array)
	}

	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: Reset(%s): flush: %w", af.path, err)
	}
	af.logger.Info("reset", append([]any{"path", af.path}, elapsedFields(start)...)...)
	return nil
}

// ResetWithSCN resets the body as Reset does, then additionally writes
// hwm_scn = lwm_scn = maxScn and flushes. This is a non-atomic
// convenience for offline reinitialisation (it does not go through the
// HWM-first publish protocol Update uses), which is why it is
// serialised the same as every other reset variant.
func (af *ArrayFile) ResetWithSCN(array any, maxScn uint64) error {
	af.mu.Lock()
	defer af.mu.Unlock()
	if err := af.checkOpen(); err != nil {
		return err
	}
	if err := af.reset(array); err != nil {
		return err
	}
	af.logger.Info("update hwmScn and lwmScn", "path", af.path, "scn", maxScn)
	if err := writeHwmScn(af.w, &af.hdr, maxScn); err != nil {
		return fmt.Errorf("arrayfile: ResetWithSCN(%s): %w", af.path, err)
	}
	if err := writeLwmScn(af.w, &af.hdr, maxScn); err != nil {
		return fmt.Errorf("arrayfile: ResetWithSCN(%s): %w", af.path, err)
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: ResetWithSCN(%s): flush: %w", af.path, err)
	}
	return nil
}

// ResetAll fills every element with value, truncated to the file's
// element width... except ResetAll only accepts element_size == 8,
// returning ErrElementSizeMismatch otherwise -- the source's
// resetAll(long) has no narrower-width sibling, so neither does this.
func (af *ArrayFile) ResetAll(value int64) error {
	af.mu.Lock()
	defer af.mu.Unlock()
	if err := af.checkOpen(); err != nil {
		return err
	}
	return af.resetAll(value)
}

func (af *ArrayFile) resetAll(value int64) error {
	if af.hdr.elementSize != 8 {
		return fmt.Errorf("%w: elementSize=%d", ErrElementSizeMismatch, af.hdr.elementSize)
	}

	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: ResetAll(%s): flush: %w", af.path, err)
	}
	if err := af.w.Position(dataStartPosition); err != nil {
		return fmt.Errorf("arrayfile: ResetAll(%s): Position: %w", af.path, err)
	}
	for i := int32(0); i < af.hdr.arrayLength; i++ {
		if err := af.w.WriteI64(value); err != nil {
			return fmt.Errorf("arrayfile: ResetAll(%s): %w", af.path, err)
		}
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: ResetAll(%s): flush: %w", af.path, err)
	}
	return nil
}

// ResetAllWithSCN is ResetAll followed by an unconditional water-mark
// update, mirroring resetAll(long, long) in the source.
func (af *ArrayFile) ResetAllWithSCN(value int64, maxScn uint64) error {
	af.mu.Lock()
	defer af.mu.Unlock()
	if err := af.checkOpen(); err != nil {
		return err
	}
	if err := af.resetAll(value); err != nil {
		return err
	}
	af.logger.Info("update hwmScn and lwmScn", "path", af.path, "scn", maxScn)
	if err := writeHwmScn(af.w, &af.hdr, maxScn); err != nil {
		return fmt.Errorf("arrayfile: ResetAllWithSCN(%s): %w", af.path, err)
	}
	if err := writeLwmScn(af.w, &af.hdr, maxScn); err != nil {
		return fmt.Errorf("arrayfile: ResetAllWithSCN(%s): %w", af.path, err)
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: ResetAllWithSCN(%s): flush: %w", af.path, err)
	}
	return nil
}

// LoadInt16Array loads the entire body into a freshly allocated
// []int16. If the file doesn't exist or is empty, it returns a nil
// slice without error, enabling lazy initialisation on first use.
func (af *ArrayFile) LoadInt16Array() ([]int16, error) {
	return loadArray(af, func(r backend.Reader) (int16, error) { return r.ReadI16() })
}

// LoadInt32Array is LoadInt16Array for Int32-element files.
func (af *ArrayFile) LoadInt32Array() ([]int32, error) {
	return loadArray(af, func(r backend.Reader) (int32, error) { return r.ReadI32() })
}

// LoadInt64Array is LoadInt16Array for Int64-element files.
func (af *ArrayFile) LoadInt64Array() ([]int64, error) {
	return loadArray(af, func(r backend.Reader) (int64, error) { return r.ReadI64() })
}

func loadArray[T any](af *ArrayFile, readOne func(backend.Reader) (T, error)) ([]T, error) {
	if err := af.checkOpen(); err != nil {
		return nil, err
	}

	st, err := statSize(af.path)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Load(%s): %w", af.path, err)
	}
	if st == 0 {
		return nil, nil
	}

	start := time.Now()
	r, err := backend.OpenReader(af.path, af.ioType)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Load(%s): %w", af.path, err)
	}
	defer func() { _ = r.Close() }()

	if err := r.Position(dataStartPosition); err != nil {
		return nil, fmt.Errorf("arrayfile: Load(%s): Position: %w", af.path, err)
	}

	array := make([]T, af.hdr.arrayLength)
	for i := range array {
		v, err := readOne(r)
		if err != nil {
			return nil, fmt.Errorf("arrayfile: Load(%s): read element %d: %w", af.path, i, err)
		}
		array[i] = v
	}
	af.logger.Info("loaded", append([]any{"path", af.path}, elapsedFields(start)...)...)
	return array, nil
}

func statSize(path string) (int64, error) {
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}
