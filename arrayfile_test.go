// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "a.dat")
}

// S1 -- new file, single write, reopen.
func TestScenarioS1(t *testing.T) {
	path := tempPath(t)

	af, err := Create(path, 4, 4)
	require.NoError(t, err)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 1040, st.Size())

	require.NoError(t, af.WriteI32(2, int32(-0x21524111)))
	require.NoError(t, af.Flush())
	require.NoError(t, af.Close())

	af2, err := Open(path)
	require.NoError(t, err)
	defer af2.Close()

	arr, err := af2.LoadInt32Array()
	require.NoError(t, err)
	require.Equal(t, []int32{0, 0, int32(-0x21524111), 0}, arr)

	require.EqualValues(t, 0, af2.Version())
	require.EqualValues(t, 0, af2.LwmScn())
	require.EqualValues(t, 0, af2.HwmScn())
	require.EqualValues(t, 4, af2.ArrayLength())
	require.EqualValues(t, 4, af2.ElementSize())
}

// S2 -- batched update publishes SCN.
func TestScenarioS2(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	require.NoError(t, af.WriteI32(2, int32(-0x21524111)))
	require.NoError(t, af.Flush())
	require.NoError(t, af.Close())

	af2, err := Open(path)
	require.NoError(t, err)

	err = af2.Update([]Entry{
		{
			Values: []EntryValue{
				{Pos: 0, Value: 0x1111},
				{Pos: 3, Value: 0x3333},
			},
			MaxSCN: 42,
		},
	})
	require.NoError(t, err)
	require.NoError(t, af2.Close())

	af3, err := Open(path)
	require.NoError(t, err)
	defer af3.Close()

	require.EqualValues(t, 42, af3.LwmScn())
	require.EqualValues(t, 42, af3.HwmScn())

	arr, err := af3.LoadInt32Array()
	require.NoError(t, err)
	require.Equal(t, []int32{0x1111, 0, int32(-0x21524111), 0x3333}, arr)
}

// S3 -- crash between HWM and LWM does not raise CorruptHeader on reopen.
func TestScenarioS3(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)

	require.NoError(t, writeHwmScn(af.w, &af.hdr, 99))
	require.NoError(t, af.w.Flush())
	require.NoError(t, af.Close())

	af2, err := Open(path)
	require.NoError(t, err)
	defer af2.Close()

	require.EqualValues(t, 0, af2.LwmScn())
	require.EqualValues(t, 99, af2.HwmScn())
	require.True(t, af2.NeedsRecovery())
	lwm, hwm := af2.RecoveryRange()
	require.EqualValues(t, 0, lwm)
	require.EqualValues(t, 99, hwm)
}

// S4 -- invalid water marks rejected, header unchanged on disk.
func TestScenarioS4(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	defer af.Close()

	err = af.SetWaterMarks(10, 5)
	require.ErrorIs(t, err, ErrInvalidWaterMarks)
	require.EqualValues(t, 0, af.LwmScn())
	require.EqualValues(t, 0, af.HwmScn())
}

// S5 -- grow then shrink.
func TestScenarioS5(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 8)
	require.NoError(t, err)

	require.NoError(t, af.Reset([]int64{1, 2, 3, 4}))

	require.NoError(t, af.SetArrayLength(6))
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 1024+48, st.Size())

	arr, err := af.LoadInt64Array()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 0, 0}, arr)

	require.NoError(t, af.SetArrayLength(2))
	st, err = os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 1024+16, st.Size())

	arr, err = af.LoadInt64Array()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, arr)

	require.NoError(t, af.Close())
}

// S6 -- reset_all guard.
func TestScenarioS6(t *testing.T) {
	path4 := tempPath(t)
	af4, err := Create(path4, 4, 4)
	require.NoError(t, err)
	defer af4.Close()

	err = af4.ResetAll(0)
	require.ErrorIs(t, err, ErrElementSizeMismatch)

	path8 := filepath.Join(t.TempDir(), "b.dat")
	af8, err := Create(path8, 4, 8)
	require.NoError(t, err)
	defer af8.Close()

	require.NoError(t, af8.ResetAll(0x7))
	arr, err := af8.LoadInt64Array()
	require.NoError(t, err)
	require.Equal(t, []int64{0x7, 0x7, 0x7, 0x7}, arr)
}

func TestOpenTooSmallIsIoError(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0644))

	_, err := Open(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCorruptHeader)
}

func TestOpenHwmLessThanLwmIsCorruptHeader(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	require.NoError(t, af.SetWaterMarks(5, 10))
	require.NoError(t, af.w.WriteI64At(offLwmScn, 10))
	require.NoError(t, af.w.WriteI64At(offHwmScn, 5))
	require.NoError(t, af.w.Flush())
	require.NoError(t, af.Close())

	_, err = Open(path)
	require.ErrorIs(t, err, ErrCorruptHeader)
}

func TestUpdateEmptyBatchIsNoop(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	defer af.Close()

	before, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, af.Update(nil))
	require.NoError(t, af.Update([]Entry{}))

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())
	require.EqualValues(t, 0, af.HwmScn())
}

func TestSetArrayLengthNoopWhenUnchanged(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	defer af.Close()

	require.NoError(t, af.SetArrayLength(4))
	require.EqualValues(t, 4, af.ArrayLength())
}

func TestClosedHandleErrors(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	require.NoError(t, af.Close())

	require.ErrorIs(t, af.Flush(), ErrClosedHandle)
	require.ErrorIs(t, af.Force(), ErrClosedHandle)
	require.ErrorIs(t, af.SetWaterMarks(0, 0), ErrClosedHandle)
	require.ErrorIs(t, af.Update([]Entry{{Values: []EntryValue{{Pos: 0, Value: 1}}}}), ErrClosedHandle)
	require.ErrorIs(t, af.Reset([]int32{1}), ErrClosedHandle)
	require.ErrorIs(t, af.ResetAll(1), ErrClosedHandle)
	require.ErrorIs(t, af.SetArrayLength(8), ErrClosedHandle)

	// closing twice is fine
	require.NoError(t, af.Close())
}

func TestReservedRegionUntouched(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	marker := []byte("reserved-bytes-marker")
	_, err = f.WriteAt(marker, 32)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, af.Update([]Entry{{Values: []EntryValue{{Pos: 0, Value: 7}}, MaxSCN: 1}}))
	require.NoError(t, af.Reset([]int32{1, 2, 3, 4}))
	require.NoError(t, af.SetArrayLength(6))
	require.NoError(t, af.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, marker, got[32:32+len(marker)])
}

func TestMappedBackendRoundTrip(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 8, WithIOType(Mapped))
	require.NoError(t, err)

	require.NoError(t, af.Update([]Entry{
		{Values: []EntryValue{{Pos: 1, Value: 55}}, MaxSCN: 5},
	}))
	require.NoError(t, af.Close())

	af2, err := Open(path, WithIOType(Mapped))
	require.NoError(t, err)
	defer af2.Close()

	arr, err := af2.LoadInt64Array()
	require.NoError(t, err)
	require.Equal(t, []int64{0, 55, 0, 0}, arr)
	require.EqualValues(t, 5, af2.LwmScn())
}

func TestSetArrayLengthWithRename(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.dat")
	newPath := filepath.Join(dir, "new.dat")

	af, err := Create(oldPath, 2, 8)
	require.NoError(t, err)

	require.NoError(t, af.SetArrayLength(4, WithRenameTo(newPath)))
	require.Equal(t, newPath, af.Path())

	_, err = os.Stat(oldPath)
	require.True(t, os.IsNotExist(err))
	require.NoError(t, af.Close())

	af2, err := Open(newPath)
	require.NoError(t, err)
	defer af2.Close()
	require.EqualValues(t, 4, af2.ArrayLength())
}

// Property 2 -- for all (index, value) with a valid index and matching
// element width: write then reopen then read yields value, through the
// public unchecked positional-write API rather than the backend.Writer.
func TestWriteThenReopenYieldsValue(t *testing.T) {
	t.Run("Int16", func(t *testing.T) {
		path := tempPath(t)
		af, err := Create(path, 4, 2)
		require.NoError(t, err)
		require.NoError(t, af.WriteI16(1, int16(0x1234)))
		require.NoError(t, af.Flush())
		require.NoError(t, af.Close())

		af2, err := Open(path)
		require.NoError(t, err)
		defer af2.Close()
		arr, err := af2.LoadInt16Array()
		require.NoError(t, err)
		require.Equal(t, []int16{0, 0x1234, 0, 0}, arr)
	})

	t.Run("Int32", func(t *testing.T) {
		path := tempPath(t)
		af, err := Create(path, 4, 4)
		require.NoError(t, err)
		require.NoError(t, af.WriteI32(3, int32(-0x21524111)))
		require.NoError(t, af.Flush())
		require.NoError(t, af.Close())

		af2, err := Open(path)
		require.NoError(t, err)
		defer af2.Close()
		arr, err := af2.LoadInt32Array()
		require.NoError(t, err)
		require.Equal(t, []int32{0, 0, 0, int32(-0x21524111)}, arr)
	})

	t.Run("Int64", func(t *testing.T) {
		path := tempPath(t)
		af, err := Create(path, 4, 8)
		require.NoError(t, err)
		require.NoError(t, af.WriteI64(0, int64(0x0102030405060708)))
		require.NoError(t, af.Flush())
		require.NoError(t, af.Close())

		af2, err := Open(path)
		require.NoError(t, err)
		defer af2.Close()
		arr, err := af2.LoadInt64Array()
		require.NoError(t, err)
		require.Equal(t, []int64{0x0102030405060708, 0, 0, 0}, arr)
	})
}

// WriteI16/32/64 return ErrClosedHandle after Close, like every other
// operation on the handle.
func TestWriteOnClosedHandleErrors(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 4, 4)
	require.NoError(t, err)
	require.NoError(t, af.Close())

	require.ErrorIs(t, af.WriteI32(0, 1), ErrClosedHandle)
}
