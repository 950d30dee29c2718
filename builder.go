// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package arrayfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// BuilderOption configures the ArrayFileBuilder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	logger *slog.Logger
}

// WithBuilderLogger sets an optional logger for the builder to use for
// progress updates. If not provided, no logging output is produced.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(opts *builderOptions) {
		opts.logger = logger
	}
}

// ArrayFileBuilder constructs a brand-new ArrayFile offline from an
// in-memory array: the same "build in a temp location, then publish
// atomically" idiom table.go's Builder uses for the KV store's data
// file, applied here to materialising a whole ArrayFile body+header in
// one shot instead of creating the file in place and growing it with
// positional writes the way the source's newFile constructor does.
type ArrayFileBuilder struct {
	resultPath  string
	elementSize int32
	logger      *slog.Logger
}

// NewArrayFileBuilder creates a builder that will publish to resultPath
// on Finalize.
func NewArrayFileBuilder(resultPath string, elementSize int32, opts ...BuilderOption) (*ArrayFileBuilder, error) {
	if _, err := elementKindForSize(elementSize); err != nil {
		return nil, fmt.Errorf("arrayfile: NewArrayFileBuilder(%s): %w", resultPath, err)
	}
	resultPath, err := filepath.Abs(resultPath)
	if err != nil {
		return nil, fmt.Errorf("arrayfile: NewArrayFileBuilder(%s): filepath.Abs: %w", resultPath, err)
	}

	var options builderOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	return &ArrayFileBuilder{
		resultPath:  resultPath,
		elementSize: elementSize,
		logger:      options.logger,
	}, nil
}

// Finalize serialises header(version=0, lwm=0, hwm=0, arrayLength,
// elementSize) followed by the packed body of array, then atomically
// publishes the result to resultPath via atomic.WriteFile -- the
// library-backed replacement for table.go's manual
// os.CreateTemp+os.Rename+os.Chmod sequence.
func (b *ArrayFileBuilder) Finalize(array any) error {
	body, arrayLength, err := encodeBody(b.elementSize, array)
	if err != nil {
		return fmt.Errorf("arrayfile: Finalize(%s): %w", b.resultPath, err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(body)))
	if err := writeHeaderTo(buf, &header{
		storageVersion: storageVersion,
		lwmScn:         0,
		hwmScn:         0,
		arrayLength:    arrayLength,
		elementSize:    b.elementSize,
	}); err != nil {
		return fmt.Errorf("arrayfile: Finalize(%s): %w", b.resultPath, err)
	}
	buf.Write(body)

	if err := atomic.WriteFile(b.resultPath, buf); err != nil {
		return fmt.Errorf("arrayfile: Finalize(%s): atomic.WriteFile: %w", b.resultPath, err)
	}

	b.logger.Info("built array file", "path", b.resultPath, "arrayLength", arrayLength, "elementSize", b.elementSize)
	return nil
}

// writeHeaderTo serialises h's five fields to w in the on-disk byte
// order, for use by Finalize which writes the whole file in one
// in-memory buffer rather than through a backend.Writer.
func writeHeaderTo(w io.Writer, h *header) error {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint64(buf[offStorageVersion:], h.storageVersion)
	binary.LittleEndian.PutUint64(buf[offLwmScn:], h.lwmScn)
	binary.LittleEndian.PutUint64(buf[offHwmScn:], h.hwmScn)
	binary.LittleEndian.PutUint32(buf[offArrayLength:], uint32(h.arrayLength))
	binary.LittleEndian.PutUint32(buf[offElementSize:], uint32(h.elementSize))
	_, err := w.Write(buf[:])
	return err
}

func encodeBody(elementSize int32, array any) (body []byte, arrayLength int32, err error) {
	switch a := array.(type) {
	case []int16:
		if elementSize != 2 {
			return nil, 0, fmt.Errorf("%w: elementSize=%d for []int16", ErrElementSizeMismatch, elementSize)
		}
		body = make([]byte, len(a)*2)
		for i, v := range a {
			binary.LittleEndian.PutUint16(body[i*2:], uint16(v))
		}
		return body, int32(len(a)), nil
	case []int32:
		if elementSize != 4 {
			return nil, 0, fmt.Errorf("%w: elementSize=%d for []int32", ErrElementSizeMismatch, elementSize)
		}
		body = make([]byte, len(a)*4)
		for i, v := range a {
			binary.LittleEndian.PutUint32(body[i*4:], uint32(v))
		}
		return body, int32(len(a)), nil
	case []int64:
		if elementSize != 8 {
			return nil, 0, fmt.Errorf("%w: elementSize=%d for []int64", ErrElementSizeMismatch, elementSize)
		}
		body = make([]byte, len(a)*8)
		for i, v := range a {
			binary.LittleEndian.PutUint64(body[i*8:], uint64(v))
		}
		return body, int32(len(a)), nil
	default:
		return nil, 0, fmt.Errorf("arrayfile: unsupported array type %T", array)
	}
}
