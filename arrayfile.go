// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package arrayfile implements the durable, fixed-element-size,
// append-ordered flat array file used as the backing store for a
// larger embedded key/value engine: a 1024-byte fixed header (storage
// version, low/high water mark SCNs, array length, element size)
// followed by a packed body of array_length elements of element_size
// bytes each.
//
// ArrayFile is not safe for concurrent use by multiple goroutines
// except that Update, Reset/ResetWithSCN/ResetAll/ResetAllWithSCN, and
// SetArrayLength are mutually serialised against each other via an
// internal mutex; positional single-element writes and simple
// accessors are unsynchronised and must not be interleaved with a
// serialised operation by more than one goroutine at a time.
package arrayfile

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bpowers/arrayfile/internal/backend"
)

// IOType selects between a memory-mapped and a conventional buffered
// backend. Both honour the same semantic contract; SetArrayLength's
// remap path is only available for Mapped.
type IOType = backend.IOType

const (
	Buffered = backend.Buffered
	Mapped   = backend.Mapped
)

// Option configures Open/Create, the same functional-options idiom
// builder.go uses for BuilderOption.
type Option func(*options)

type options struct {
	ioType IOType
	logger *slog.Logger
}

// WithIOType selects the backend Open/Create uses. The default is
// Buffered.
func WithIOType(t IOType) Option {
	return func(o *options) { o.ioType = t }
}

// WithLogger sets an optional logger for progress and recovery-signal
// messages. If not provided, no logging output is produced.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// ArrayFile is a handle on one open on-disk ArrayFile. Exactly one
// handle should own a given file at a time.
type ArrayFile struct {
	mu sync.Mutex

	path   string
	ioType IOType
	logger *slog.Logger

	w      backend.Writer
	closed bool

	hdr header
}

// Open opens an existing ArrayFile at path, loading and validating its
// header. It returns ErrCorruptHeader if storage_version mismatches or
// hwm_scn < lwm_scn, and a wrapped I/O error if the file is smaller
// than the header.
func Open(path string, opts ...Option) (*ArrayFile, error) {
	o := resolveOptions(opts)

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Open(%s): %w", path, err)
	}
	if st.Size() < headerSize {
		return nil, fmt.Errorf("arrayfile: Open(%s): file is %d bytes, need at least %d", path, st.Size(), headerSize)
	}

	r, err := backend.OpenReader(path, o.ioType)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Open(%s): %w", path, err)
	}
	hdr, err := loadHeader(r)
	_ = r.Close()
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Open(%s): %w", path, err)
	}
	if err := hdr.check(); err != nil {
		return nil, fmt.Errorf("arrayfile: Open(%s): %w", path, err)
	}

	w, err := backend.OpenWriter(path, o.ioType)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Open(%s): %w", path, err)
	}

	af := &ArrayFile{
		path:   path,
		ioType: o.ioType,
		logger: o.logger,
		w:      w,
		hdr:    *hdr,
	}
	af.logger.Info("opened array file", "path", path, "header", hdr.String())
	return af, nil
}

// Create creates a new ArrayFile at path with the given array length
// and element size, a zero-initialised body, and header
// (version=0, lwm=0, hwm=0). It fails if path already exists.
func Create(path string, arrayLength, elementSize int32, opts ...Option) (*ArrayFile, error) {
	o := resolveOptions(opts)

	if _, err := elementKindForSize(elementSize); err != nil {
		return nil, fmt.Errorf("arrayfile: Create(%s): %w", path, err)
	}
	if arrayLength < 0 {
		return nil, fmt.Errorf("arrayfile: Create(%s): %w: %d", path, ErrInvalidLength, arrayLength)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Create(%s): %w", path, err)
	}
	fileLength := int64(headerSize) + int64(arrayLength)*int64(elementSize)
	if err := f.Truncate(fileLength); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("arrayfile: Create(%s): Truncate: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("arrayfile: Create(%s): %w", path, err)
	}

	w, err := backend.OpenWriter(path, o.ioType)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: Create(%s): %w", path, err)
	}
	hdr := header{
		storageVersion: storageVersion,
		lwmScn:         0,
		hwmScn:         0,
		arrayLength:    arrayLength,
		elementSize:    elementSize,
	}
	if err := saveHeader(w, &hdr); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("arrayfile: Create(%s): %w", path, err)
	}

	af := &ArrayFile{
		path:   path,
		ioType: o.ioType,
		logger: o.logger,
		w:      w,
		hdr:    hdr,
	}
	af.logger.Info("created array file", "path", path, "header", hdr.String())
	return af, nil
}

func resolveOptions(opts []Option) options {
	o := options{
		ioType: Buffered,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Close flushes and releases the underlying Writer. Other operations
// on a closed handle return ErrClosedHandle; a second Close returns nil.
func (af *ArrayFile) Close() error {
	af.mu.Lock()
	defer af.mu.Unlock()
	if af.closed {
		return nil
	}
	af.closed = true
	if err := af.w.Close(); err != nil {
		return fmt.Errorf("arrayfile: Close(%s): %w", af.path, err)
	}
	return nil
}

func (af *ArrayFile) checkOpen() error {
	if af.closed {
		return ErrClosedHandle
	}
	return nil
}

// Name returns the base name of the backing file.
func (af *ArrayFile) Name() string { return filepath.Base(af.path) }

// Path returns the path the handle was opened or created with.
func (af *ArrayFile) Path() string { return af.path }

// Version returns the cached storage_version.
func (af *ArrayFile) Version() uint64 { return af.hdr.storageVersion }

// LwmScn returns the cached low water mark.
func (af *ArrayFile) LwmScn() uint64 { return af.hdr.lwmScn }

// HwmScn returns the cached high water mark.
func (af *ArrayFile) HwmScn() uint64 { return af.hdr.hwmScn }

// ArrayLength returns the cached element count.
func (af *ArrayFile) ArrayLength() int32 { return af.hdr.arrayLength }

// ElementSize returns the cached per-element byte width.
func (af *ArrayFile) ElementSize() int32 { return af.hdr.elementSize }

// ElementKind returns the ElementKind corresponding to ElementSize.
func (af *ArrayFile) ElementKind() ElementKind {
	k, _ := elementKindForSize(af.hdr.elementSize)
	return k
}

// NeedsRecovery reports whether lwm_scn < hwm_scn, the signal an
// external redo log uses to know a batch may have been in flight when
// the file was last closed (spec scenario S3).
func (af *ArrayFile) NeedsRecovery() bool {
	return af.hdr.lwmScn < af.hdr.hwmScn
}

// RecoveryRange returns the (lwm, hwm] SCN range an external redo log
// should replay. If NeedsRecovery is false the range is empty
// (lwm == hwm).
func (af *ArrayFile) RecoveryRange() (lwm, hwm uint64) {
	return af.hdr.lwmScn, af.hdr.hwmScn
}

// String renders a one-line summary of the cached header, the Go
// equivalent of the source's private getHeader() used in its startup
// log line.
func (af *ArrayFile) String() string {
	return fmt.Sprintf("%s: %s", af.path, af.hdr.String())
}

// Flush propagates buffered writes to the OS without making them
// durable. Exposed directly (not only as an internal step of
// Update/Reset*) so that callers doing unchecked positional writes
// (WriteI16/32/64) can flush them on their own schedule.
func (af *ArrayFile) Flush() error {
	if err := af.checkOpen(); err != nil {
		return err
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: Flush(%s): %w", af.path, err)
	}
	return nil
}

// Force makes previously flushed writes durable on stable storage.
func (af *ArrayFile) Force() error {
	if err := af.checkOpen(); err != nil {
		return err
	}
	if err := af.w.Force(); err != nil {
		return fmt.Errorf("arrayfile: Force(%s): %w", af.path, err)
	}
	return nil
}

// SetWaterMarks writes lwm and hwm directly, HWM first (flushed), then
// LWM (flushed). It returns ErrInvalidWaterMarks without touching the
// file if lwm > hwm.
func (af *ArrayFile) SetWaterMarks(lwm, hwm uint64) error {
	af.mu.Lock()
	defer af.mu.Unlock()
	if err := af.checkOpen(); err != nil {
		return err
	}
	if err := setWaterMarks(af.w, &af.hdr, lwm, hwm); err != nil {
		return fmt.Errorf("arrayfile: SetWaterMarks(%s): %w", af.path, err)
	}
	return nil
}

func elapsedFields(start time.Time) []any {
	return []any{"elapsed", time.Since(start)}
}
