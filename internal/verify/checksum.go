// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package verify provides an opt-in whole-body checksum for ArrayFile
// bodies. It is not part of the on-disk format -- the header+body
// layout has no room for a per-record checksum -- it exists for
// cmd/arrayfile-tool's verify subcommand and for test helpers that
// want a cheap round-trip equality check cheaper than diffing the
// whole body.
package verify

import "github.com/dgryski/go-farm"

// BodyChecksum hashes the packed bytes of an ArrayFile body (everything
// after the 1024-byte header) with farm.Hash64, applied once over the
// whole body instead of once per record.
func BodyChecksum(body []byte) uint64 {
	return farm.Hash64(body)
}

// Int16Checksum encodes vs as little-endian bytes and returns its
// BodyChecksum, so callers holding a loaded in-memory array don't need
// to re-serialise it themselves just to verify against a stored
// checksum.
func Int16Checksum(vs []int16) uint64 {
	buf := make([]byte, len(vs)*2)
	for i, v := range vs {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return farm.Hash64(buf)
}

// Int32Checksum is Int16Checksum for []int32.
func Int32Checksum(vs []int32) uint64 {
	buf := make([]byte, len(vs)*4)
	for i, v := range vs {
		buf[i*4] = byte(v)
		buf[i*4+1] = byte(v >> 8)
		buf[i*4+2] = byte(v >> 16)
		buf[i*4+3] = byte(v >> 24)
	}
	return farm.Hash64(buf)
}

// Int64Checksum is Int16Checksum for []int64.
func Int64Checksum(vs []int64) uint64 {
	buf := make([]byte, len(vs)*8)
	for i, v := range vs {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(v >> (8 * b))
		}
	}
	return farm.Hash64(buf)
}
