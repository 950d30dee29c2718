// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package backend

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// defaultBufferSize is sized for sequential write throughput on a
// typical page-cache-backed filesystem.
const defaultBufferSize = 256 * 1024

// FileWriter is usually an *os.File, but specified as an interface for
// easier testing -- same idiom as datafile.FileWriter.
type FileWriter interface {
	io.Writer
	io.WriterAt
	io.Closer
	Sync() error
}

type bufferedWriter struct {
	f FileWriter
	w *bufio.Writer
}

func newBufferedWriter(path string) (*bufferedWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	return &bufferedWriter{
		f: f,
		w: bufio.NewWriterSize(f, defaultBufferSize),
	}, nil
}

func (w *bufferedWriter) Close() error {
	err := w.w.Flush()
	if cerr := w.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("bufferedWriter.Close: %w", err)
	}
	return nil
}

// Position flushes any buffered cursor writes, then repositions the
// cursor. Positional WriteAt-style calls never go through this cursor,
// so they are unaffected by it.
func (w *bufferedWriter) Position(offset int64) error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	if seeker, ok := w.f.(io.Seeker); ok {
		if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("Seek: %w", err)
		}
		return nil
	}
	return fmt.Errorf("backend: underlying FileWriter does not support Seek")
}

func (w *bufferedWriter) WriteI16(v int16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *bufferedWriter) WriteI32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *bufferedWriter) WriteI64(v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *bufferedWriter) WriteBytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

func (w *bufferedWriter) WriteI16At(offset int64, v int16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	_, err := w.f.WriteAt(buf[:], offset)
	return err
}

func (w *bufferedWriter) WriteI32At(offset int64, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.f.WriteAt(buf[:], offset)
	return err
}

func (w *bufferedWriter) WriteI64At(offset int64, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.f.WriteAt(buf[:], offset)
	return err
}

func (w *bufferedWriter) WriteBytesAt(offset int64, b []byte) error {
	_, err := w.f.WriteAt(b, offset)
	return err
}

func (w *bufferedWriter) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	return nil
}

func (w *bufferedWriter) Force() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	return nil
}

type bufferedReader struct {
	f *os.File
	r *bufio.Reader
}

func newBufferedReader(path string) (*bufferedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	return &bufferedReader{
		f: f,
		r: bufio.NewReaderSize(f, defaultBufferSize),
	}, nil
}

func (r *bufferedReader) Close() error {
	return r.f.Close()
}

func (r *bufferedReader) Position(offset int64) error {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("Seek: %w", err)
	}
	r.r.Reset(r.f)
	return nil
}

func (r *bufferedReader) ReadI16() (int16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(buf[:])), nil
}

func (r *bufferedReader) ReadI32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func (r *bufferedReader) ReadI64() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func (r *bufferedReader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
