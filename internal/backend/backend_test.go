// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package backend

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTestFile(t *testing.T, size int64) string {
	t.Helper()
	f, err := os.CreateTemp("", "arrayfile-backend.*.test")
	require.NoError(t, err)
	path := f.Name()
	t.Cleanup(func() { _ = os.Remove(path) })
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func testWriterReader(t *testing.T, ioType IOType) {
	path := createTestFile(t, 64)

	w, err := OpenWriter(path, ioType)
	require.NoError(t, err)

	require.NoError(t, w.WriteI64At(0, 0x0102030405060708))
	require.NoError(t, w.WriteI32At(8, 42))
	require.NoError(t, w.WriteI16At(12, -7))
	require.NoError(t, w.WriteBytesAt(14, []byte("hello world")))

	require.NoError(t, w.Position(32))
	require.NoError(t, w.WriteI64(1))
	require.NoError(t, w.WriteI64(2))
	require.NoError(t, w.WriteI64(3))

	require.NoError(t, w.Flush())
	require.NoError(t, w.Force())
	require.NoError(t, w.Close())

	r, err := OpenReader(path, ioType)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Position(0))
	v64, err := r.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(0x0102030405060708), v64)

	v32, err := r.ReadI32()
	require.NoError(t, err)
	require.Equal(t, int32(42), v32)

	v16, err := r.ReadI16()
	require.NoError(t, err)
	require.Equal(t, int16(-7), v16)

	b, err := r.ReadBytes(11)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))

	require.NoError(t, r.Position(32))
	for i := int64(1); i <= 3; i++ {
		v, err := r.ReadI64()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestBufferedWriterReader(t *testing.T) {
	testWriterReader(t, Buffered)
}

func TestMappedWriterReader(t *testing.T) {
	testWriterReader(t, Mapped)
}

func TestMappedWriterRemap(t *testing.T) {
	path := createTestFile(t, 16)

	w, err := OpenWriter(path, Mapped)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteI64At(0, 99))

	require.NoError(t, os.Truncate(path, 32))

	remappable, ok := w.(Remappable)
	require.True(t, ok)
	require.NoError(t, remappable.Remap())

	require.NoError(t, w.WriteI64At(16, 100))

	r, err := OpenReader(path, Mapped)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Position(0))
	v, err := r.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(99), v)

	require.NoError(t, r.Position(16))
	v, err = r.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(100), v)
}

func TestIOTypeString(t *testing.T) {
	require.Equal(t, "buffered", Buffered.String())
	require.Equal(t, "mapped", Mapped.String())
}
