// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package backend

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mappedWriter/mappedReader implement Writer/Reader directly on top of
// golang.org/x/sys/unix (Mmap, Munmap, and Madvise with MADV_RANDOM for
// the writer, MADV_SEQUENTIAL for the reader), rather than through a
// higher-level mmap wrapper package.

type mappedWriter struct {
	f    *os.File
	data []byte
	off  int64
}

func newMappedWriter(path string) (*mappedWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	w := &mappedWriter{f: f}
	if err := w.mapFile(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *mappedWriter) mapFile() error {
	st, err := w.f.Stat()
	if err != nil {
		return fmt.Errorf("f.Stat: %w", err)
	}
	size := st.Size()
	if size == 0 {
		w.data = nil
		return nil
	}
	data, err := unix.Mmap(int(w.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("unix.Mmap: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		return fmt.Errorf("unix.Madvise: %w", err)
	}
	w.data = data
	return nil
}

// Remap drops the current mapping and re-maps the file at its current
// (possibly resized) length. Used by arrayfile.SetArrayLength.
func (w *mappedWriter) Remap() error {
	if w.data != nil {
		if err := unix.Munmap(w.data); err != nil {
			return fmt.Errorf("unix.Munmap: %w", err)
		}
		w.data = nil
	}
	return w.mapFile()
}

func (w *mappedWriter) Close() error {
	var err error
	if w.data != nil {
		err = unix.Munmap(w.data)
		w.data = nil
	}
	if cerr := w.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("mappedWriter.Close: %w", err)
	}
	return nil
}

func (w *mappedWriter) bounds(offset, n int64) error {
	if offset < 0 || n < 0 || offset+n > int64(len(w.data)) {
		return fmt.Errorf("offset %d+len %d out of bounds (mapping len %d)", offset, n, len(w.data))
	}
	return nil
}

func (w *mappedWriter) Position(offset int64) error {
	if offset < 0 || offset > int64(len(w.data)) {
		return fmt.Errorf("offset %d out of bounds (mapping len %d)", offset, len(w.data))
	}
	w.off = offset
	return nil
}

func (w *mappedWriter) WriteI16(v int16) error {
	if err := w.WriteI16At(w.off, v); err != nil {
		return err
	}
	w.off += 2
	return nil
}

func (w *mappedWriter) WriteI32(v int32) error {
	if err := w.WriteI32At(w.off, v); err != nil {
		return err
	}
	w.off += 4
	return nil
}

func (w *mappedWriter) WriteI64(v int64) error {
	if err := w.WriteI64At(w.off, v); err != nil {
		return err
	}
	w.off += 8
	return nil
}

func (w *mappedWriter) WriteBytes(b []byte) error {
	if err := w.WriteBytesAt(w.off, b); err != nil {
		return err
	}
	w.off += int64(len(b))
	return nil
}

func (w *mappedWriter) WriteI16At(offset int64, v int16) error {
	if err := w.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(w.data[offset:offset+2], uint16(v))
	return nil
}

func (w *mappedWriter) WriteI32At(offset int64, v int32) error {
	if err := w.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(w.data[offset:offset+4], uint32(v))
	return nil
}

func (w *mappedWriter) WriteI64At(offset int64, v int64) error {
	if err := w.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(w.data[offset:offset+8], uint64(v))
	return nil
}

func (w *mappedWriter) WriteBytesAt(offset int64, b []byte) error {
	if err := w.bounds(offset, int64(len(b))); err != nil {
		return err
	}
	copy(w.data[offset:], b)
	return nil
}

// Flush is a no-op: writes to a MAP_SHARED mapping are visible to the
// OS (and to other mappings of the same file) as soon as they happen.
func (w *mappedWriter) Flush() error {
	return nil
}

// Force calls msync(MS_SYNC) to make mapped writes durable.
func (w *mappedWriter) Force() error {
	if len(w.data) == 0 {
		return nil
	}
	if err := unix.Msync(w.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("unix.Msync: %w", err)
	}
	return nil
}

type mappedReader struct {
	f    *os.File
	data []byte
	off  int64
}

func newMappedReader(path string) (*mappedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	r := &mappedReader{f: f}
	if st.Size() > 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("unix.Mmap: %w", err)
		}
		_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
		r.data = data
	}
	return r, nil
}

func (r *mappedReader) Close() error {
	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	if cerr := r.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("mappedReader.Close: %w", err)
	}
	return nil
}

func (r *mappedReader) Position(offset int64) error {
	if offset < 0 || offset > int64(len(r.data)) {
		return fmt.Errorf("offset %d out of bounds (mapping len %d)", offset, len(r.data))
	}
	r.off = offset
	return nil
}

func (r *mappedReader) ReadI16() (int16, error) {
	if r.off+2 > int64(len(r.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	v := int16(binary.LittleEndian.Uint16(r.data[r.off : r.off+2]))
	r.off += 2
	return v, nil
}

func (r *mappedReader) ReadI32() (int32, error) {
	if r.off+4 > int64(len(r.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off : r.off+4]))
	r.off += 4
	return v, nil
}

func (r *mappedReader) ReadI64() (int64, error) {
	if r.off+8 > int64(len(r.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.off : r.off+8]))
	r.off += 8
	return v, nil
}

func (r *mappedReader) ReadBytes(n int) ([]byte, error) {
	if r.off+int64(n) > int64(len(r.data)) {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	copy(buf, r.data[r.off:r.off+int64(n)])
	r.off += int64(n)
	return buf, nil
}
