// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetDoesNotTouchWaterMarks(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 3, 4)
	require.NoError(t, err)
	defer af.Close()

	require.NoError(t, af.SetWaterMarks(1, 2))
	require.NoError(t, af.Reset([]int32{9, 8, 7}))

	require.EqualValues(t, 1, af.LwmScn())
	require.EqualValues(t, 2, af.HwmScn())

	arr, err := af.LoadInt32Array()
	require.NoError(t, err)
	require.Equal(t, []int32{9, 8, 7}, arr)
}

func TestResetWithSCNSetsEqualWaterMarks(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 3, 2)
	require.NoError(t, err)
	defer af.Close()

	require.NoError(t, af.ResetWithSCN([]int16{1, 2, 3}, 77))

	require.EqualValues(t, 77, af.LwmScn())
	require.EqualValues(t, 77, af.HwmScn())
}

func TestResetAllWithSCN(t *testing.T) {
	path := tempPath(t)
	af, err := Create(path, 3, 8)
	require.NoError(t, err)
	defer af.Close()

	require.NoError(t, af.ResetAllWithSCN(5, 88))

	require.EqualValues(t, 88, af.LwmScn())
	require.EqualValues(t, 88, af.HwmScn())

	arr, err := af.LoadInt64Array()
	require.NoError(t, err)
	require.Equal(t, []int64{5, 5, 5}, arr)
}
