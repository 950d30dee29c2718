// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"fmt"
	"time"

	"github.com/bpowers/arrayfile/internal/possort"
)

// Update applies a batch of entries durably. Entries are flattened,
// sorted by position for sequential I/O, then applied under the
// three-phase HWM->data->LWM protocol from §4.3: after this call
// returns successfully, lwm_scn == hwm_scn == max(pre-update hwm_scn,
// every entry's MaxSCN). An empty or nil batch is a no-op and never
// touches the file.
//
// If any step fails, the file is left in a well-defined state: lwm
// still denotes the last durable batch and hwm denotes the most
// recent attempt; an external redo log resolves the gap by replaying
// entries with scn > lwm_scn.
func (af *ArrayFile) Update(entries []Entry) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if err := af.checkOpen(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()

	values, maxScn := flattenEntries(entries, af.hdr.hwmScn)
	if len(values) == 0 {
		return nil
	}

	if dups := possort.SortByPosition(values, int(af.hdr.arrayLength)); len(dups) > 0 {
		af.logger.Warn("duplicate positions in batch, last sorted write wins",
			"path", af.path, "positions", dups)
	}

	af.logger.Info("write hwmScn", "path", af.path, "hwmScn", maxScn)
	if err := writeHwmScn(af.w, &af.hdr, maxScn); err != nil {
		return fmt.Errorf("arrayfile: Update(%s): %w", af.path, err)
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: Update(%s): flush hwm: %w", af.path, err)
	}

	for _, v := range values {
		if err := v.apply(af.w, af.hdr.elementSize); err != nil {
			return fmt.Errorf("arrayfile: Update(%s): apply pos %d: %w", af.path, v.Pos, err)
		}
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: Update(%s): flush data: %w", af.path, err)
	}

	af.logger.Info("write lwmScn", "path", af.path, "lwmScn", maxScn)
	if err := writeLwmScn(af.w, &af.hdr, maxScn); err != nil {
		return fmt.Errorf("arrayfile: Update(%s): %w", af.path, err)
	}
	if err := af.w.Flush(); err != nil {
		return fmt.Errorf("arrayfile: Update(%s): flush lwm: %w", af.path, err)
	}

	args := append([]any{"path", af.path, "count", len(values), "entries", len(entries)}, elapsedFields(start)...)
	af.logger.Info("entries flushed", args...)
	return nil
}
