// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package backend provides the Writer/Reader abstractions the arrayfile
// core is built on, plus a buffered (bufio+os.File) and a memory-mapped
// implementation of each.
package backend

import "io"

// IOType selects which concrete Writer/Reader implementation Open*
// returns. Both variants must honour the same semantic contract; only
// the Mapped variant additionally satisfies Remappable.
type IOType int

const (
	// Buffered uses a conventional bufio.Writer/Reader over an *os.File.
	Buffered IOType = iota
	// Mapped memory-maps the backing file.
	Mapped
)

func (t IOType) String() string {
	switch t {
	case Buffered:
		return "buffered"
	case Mapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// Writer is the abstraction the arrayfile core writes through. Callers
// may mix cursor-style writes (Position + WriteI*) with positional
// writes (WriteI*At); the two are never flushed automatically into
// each other's path, so a caller that interleaves them across a
// serialised and an unsynchronised operation is responsible for
// flushing as needed (see arrayfile's concurrency notes).
type Writer interface {
	io.Closer

	// Position moves the write cursor used by the WriteI16/32/64 and
	// WriteBytes methods below.
	Position(offset int64) error

	WriteI16(v int16) error
	WriteI32(v int32) error
	WriteI64(v int64) error
	WriteBytes(b []byte) error

	WriteI16At(offset int64, v int16) error
	WriteI32At(offset int64, v int32) error
	WriteI64At(offset int64, v int64) error
	WriteBytesAt(offset int64, b []byte) error

	// Flush propagates buffered writes to the OS. It is not durable on
	// its own -- callers that need durability call Force after Flush.
	Flush() error
	// Force makes previously-written (and flushed) data durable on
	// stable storage before it returns.
	Force() error
}

// Reader is the abstraction used for sequential bulk loads.
type Reader interface {
	io.Closer

	Position(offset int64) error

	ReadI16() (int16, error)
	ReadI32() (int32, error)
	ReadI64() (int64, error)
	ReadBytes(n int) ([]byte, error)
}

// Remappable is an optional capability of Mapped Writers: refresh the
// mapping after the backing file's size has changed underneath it.
type Remappable interface {
	Remap() error
}

// OpenWriter opens path for writing using the given IOType. The file
// must already exist with its final initial size -- OpenWriter never
// creates or resizes files.
func OpenWriter(path string, ioType IOType) (Writer, error) {
	switch ioType {
	case Mapped:
		return newMappedWriter(path)
	default:
		return newBufferedWriter(path)
	}
}

// OpenReader opens path for reading using the given IOType.
func OpenReader(path string, ioType IOType) (Reader, error) {
	switch ioType {
	case Mapped:
		return newMappedReader(path)
	default:
		return newBufferedReader(path)
	}
}
