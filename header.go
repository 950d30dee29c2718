// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"fmt"

	"github.com/bpowers/arrayfile/internal/backend"
)

// headerSize is the fixed size in bytes of every ArrayFile header,
// chosen so the body start offset never moves across storage
// versions and stays aligned to common page sizes.
const headerSize = 1024

// storageVersion is the only on-disk format version this package
// understands.
const storageVersion uint64 = 0

const (
	offStorageVersion = 0
	offLwmScn         = 8
	offHwmScn         = 16
	offArrayLength    = 24
	offElementSize    = 28
	dataStartPosition = headerSize
)

// ElementKind is one of the three fixed widths an ArrayFile's body can
// be made of. It replaces the source's five independent per-width
// method families (int[]/long[]/short[] and their Memory*Array
// cousins) with a single closed set selected by element_size.
type ElementKind int

const (
	Int16 ElementKind = iota
	Int32
	Int64
)

// Size returns the number of bytes an element of this kind occupies.
func (k ElementKind) Size() int32 {
	switch k {
	case Int16:
		return 2
	case Int32:
		return 4
	case Int64:
		return 8
	default:
		return 0
	}
}

func elementKindForSize(elementSize int32) (ElementKind, error) {
	switch elementSize {
	case 2:
		return Int16, nil
	case 4:
		return Int32, nil
	case 8:
		return Int64, nil
	default:
		return 0, fmt.Errorf("arrayfile: element size %d not in {2,4,8}", elementSize)
	}
}

// header is the in-memory copy of the five fixed header fields. It is
// kept in sync with the on-disk copy by every mutator in this file and
// by the update/reset/resize protocols in the rest of the package.
type header struct {
	storageVersion uint64
	lwmScn         uint64
	hwmScn         uint64
	arrayLength    int32
	elementSize    int32
}

func (h *header) check() error {
	if h.storageVersion != storageVersion {
		return fmt.Errorf("%w: storage_version=%d, want %d", ErrCorruptHeader, h.storageVersion, storageVersion)
	}
	if h.hwmScn < h.lwmScn {
		return fmt.Errorf("%w: hwm_scn=%d < lwm_scn=%d", ErrCorruptHeader, h.hwmScn, h.lwmScn)
	}
	return nil
}

func (h *header) String() string {
	return fmt.Sprintf("version=%d lwmScn=%d hwmScn=%d arrayLength=%d elementSize=%d",
		h.storageVersion, h.lwmScn, h.hwmScn, h.arrayLength, h.elementSize)
}

// loadHeader reads the first headerSize bytes of r into a fresh
// header. It does not call check(); callers that need the version and
// water-mark invariants enforced call check() themselves (Open does;
// a raw header inspection tool might not want to).
func loadHeader(r backend.Reader) (*header, error) {
	if err := r.Position(0); err != nil {
		return nil, fmt.Errorf("loadHeader: Position: %w", err)
	}
	version, err := r.ReadI64()
	if err != nil {
		return nil, fmt.Errorf("loadHeader: read storage_version: %w", err)
	}
	lwm, err := r.ReadI64()
	if err != nil {
		return nil, fmt.Errorf("loadHeader: read lwm_scn: %w", err)
	}
	hwm, err := r.ReadI64()
	if err != nil {
		return nil, fmt.Errorf("loadHeader: read hwm_scn: %w", err)
	}
	arrayLength, err := r.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("loadHeader: read array_length: %w", err)
	}
	elementSize, err := r.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("loadHeader: read element_size: %w", err)
	}
	return &header{
		storageVersion: uint64(version),
		lwmScn:         uint64(lwm),
		hwmScn:         uint64(hwm),
		arrayLength:    arrayLength,
		elementSize:    elementSize,
	}, nil
}

// saveHeader writes all five fields to their fixed offsets and
// flushes. Used only when creating a brand-new file; incremental
// mutation goes through the field mutators below, which callers flush
// explicitly when ordering matters (see update.go/resize.go).
func saveHeader(w backend.Writer, h *header) error {
	if err := w.Position(0); err != nil {
		return fmt.Errorf("saveHeader: Position: %w", err)
	}
	if err := w.WriteI64(int64(h.storageVersion)); err != nil {
		return fmt.Errorf("saveHeader: write storage_version: %w", err)
	}
	if err := w.WriteI64(int64(h.lwmScn)); err != nil {
		return fmt.Errorf("saveHeader: write lwm_scn: %w", err)
	}
	if err := w.WriteI64(int64(h.hwmScn)); err != nil {
		return fmt.Errorf("saveHeader: write hwm_scn: %w", err)
	}
	if err := w.WriteI32(h.arrayLength); err != nil {
		return fmt.Errorf("saveHeader: write array_length: %w", err)
	}
	if err := w.WriteI32(h.elementSize); err != nil {
		return fmt.Errorf("saveHeader: write element_size: %w", err)
	}
	return w.Flush()
}

// writeLwmScn writes the LWM field at its fixed offset and updates the
// cached copy. It does not flush -- the §4.3 protocol controls when
// flushes happen.
func writeLwmScn(w backend.Writer, h *header, value uint64) error {
	if err := w.WriteI64At(offLwmScn, int64(value)); err != nil {
		return fmt.Errorf("writeLwmScn: %w", err)
	}
	h.lwmScn = value
	return nil
}

func writeHwmScn(w backend.Writer, h *header, value uint64) error {
	if err := w.WriteI64At(offHwmScn, int64(value)); err != nil {
		return fmt.Errorf("writeHwmScn: %w", err)
	}
	h.hwmScn = value
	return nil
}

func writeArrayLength(w backend.Writer, h *header, value int32) error {
	if err := w.WriteI32At(offArrayLength, value); err != nil {
		return fmt.Errorf("writeArrayLength: %w", err)
	}
	h.arrayLength = value
	return nil
}

// setWaterMarks rejects lwm > hwm, otherwise writes HWM first (flush),
// then LWM (flush) -- this ordering matters for the same reason it
// matters in update: a crash after the HWM write but before the LWM
// write must look like "a batch may be in flight", never the reverse.
func setWaterMarks(w backend.Writer, h *header, lwm, hwm uint64) error {
	if lwm > hwm {
		return fmt.Errorf("%w: lwm=%d hwm=%d", ErrInvalidWaterMarks, lwm, hwm)
	}
	if err := writeHwmScn(w, h, hwm); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("setWaterMarks: flush hwm: %w", err)
	}
	if err := writeLwmScn(w, h, lwm); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("setWaterMarks: flush lwm: %w", err)
	}
	return nil
}
