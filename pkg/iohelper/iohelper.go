// Package iohelper provides bounded readers and writers so that neither a
// runaway script nor a hostile request can exhaust memory.
package iohelper

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrTooLarge is returned by ReadAll when the source exceeds the limit.
var ErrTooLarge = errors.New("iohelper: input exceeds size limit")

// ReadBody reads from an io.Reader with a size limit, silently truncating.
// If r is nil, returns empty slice and no error.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadAll reads r fully but fails with ErrTooLarge instead of truncating.
func ReadAll(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// LimitedBuffer is an io.Writer that keeps the first Max bytes and discards
// the rest while still reporting full writes, so a subprocess never blocks
// on a full pipe. Safe for concurrent use.
type LimitedBuffer struct {
	Max int64

	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
}

// NewLimitedBuffer returns a buffer capped at max bytes.
func NewLimitedBuffer(max int64) *LimitedBuffer {
	return &LimitedBuffer{Max: max}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.Max - int64(b.buf.Len())
	switch {
	case room <= 0:
		if len(p) > 0 {
			b.truncated = true
		}
	case int64(len(p)) > room:
		b.buf.Write(p[:room])
		b.truncated = true
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

// Bytes returns a copy of the retained bytes.
func (b *LimitedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// Truncated reports whether any write was cut short.
func (b *LimitedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
