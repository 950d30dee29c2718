// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import "errors"

// Sentinel errors the core raises. Underlying I/O failures are not one
// of these -- they propagate wrapped with fmt.Errorf("...: %w", err),
// so callers that want to distinguish "disk full" from "bad header"
// should errors.Is against the sentinels below and otherwise treat a
// non-nil error as a plain I/O failure.
var (
	// ErrCorruptHeader is returned by Open when storage_version
	// mismatches the version this package supports, or when
	// hwm_scn < lwm_scn on disk.
	ErrCorruptHeader = errors.New("arrayfile: corrupt header")

	// ErrInvalidWaterMarks is returned by SetWaterMarks when lwm > hwm.
	ErrInvalidWaterMarks = errors.New("arrayfile: invalid water marks")

	// ErrInvalidLength is returned by SetArrayLength for a negative length.
	ErrInvalidLength = errors.New("arrayfile: invalid array length")

	// ErrElementSizeMismatch is returned by ResetAll/ResetAllWithSCN when
	// the file's element size isn't 8 bytes.
	ErrElementSizeMismatch = errors.New("arrayfile: element size mismatch")

	// ErrClosedHandle is returned by any operation on a closed handle.
	ErrClosedHandle = errors.New("arrayfile: handle is closed")
)
