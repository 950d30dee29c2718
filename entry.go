// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"fmt"

	"github.com/bpowers/arrayfile/internal/backend"
)

// EntryValue is one positional write inside an Entry: a position in
// [0, array_length) plus the bytes to write there. Value is carried as
// the widest fixed-width type (int64) and truncated to the file's
// actual element_size when applied -- this is what lets update accept
// a single EntryValue shape regardless of whether the ArrayFile holds
// Int16, Int32, or Int64 elements, mirroring EntryValue.updateArrayFile
// in the source except generalized over all three widths instead of
// one per subclass.
type EntryValue struct {
	Pos   int
	Value int64
}

// Position implements internal/possort.Positioned.
func (v EntryValue) Position() int { return v.Pos }

// apply writes v's value at its computed byte offset via w, truncated
// to elementSize. It is the Go equivalent of
// EntryValue.updateArrayFile(writer, position) in the source.
func (v EntryValue) apply(w backend.Writer, elementSize int32) error {
	offset := int64(dataStartPosition) + int64(v.Pos)*int64(elementSize)
	switch elementSize {
	case 2:
		return w.WriteI16At(offset, int16(v.Value))
	case 4:
		return w.WriteI32At(offset, int32(v.Value))
	case 8:
		return w.WriteI64At(offset, v.Value)
	default:
		return fmt.Errorf("arrayfile: apply: element size %d not in {2,4,8}", elementSize)
	}
}

// Entry is a caller-supplied batch of positional writes that all share
// a single governing SCN.
type Entry struct {
	Values []EntryValue
	MaxSCN uint64
}

// flattenEntries concatenates every Entry's Values into one slice and
// returns the batch's maxScnBatch = max(hwm, all entry.MaxSCN), the Go
// equivalent of EntryUtility.sortEntriesToValues's flatten step plus
// update's own maxScn computation (kept together here since both scan
// the same entries slice once). When the entries hold no values it
// returns nil and hwmScn unchanged, without looking at any MaxSCN.
func flattenEntries(entries []Entry, hwmScn uint64) (values []EntryValue, maxScnBatch uint64) {
	maxScnBatch = hwmScn
	n := 0
	for _, e := range entries {
		n += len(e.Values)
	}
	if n == 0 {
		return nil, maxScnBatch
	}
	values = make([]EntryValue, 0, n)
	for _, e := range entries {
		values = append(values, e.Values...)
		if e.MaxSCN > maxScnBatch {
			maxScnBatch = e.MaxSCN
		}
	}
	return values, maxScnBatch
}
