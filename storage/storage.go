// Package storage provides the non-volatile byte regions used by the
// firmware-update coordinator: a Device contract, bounded partitions of a
// device, and in-memory and file-backed devices for tests and host builds.
package storage

import (
	"sync"

	"presenter-fw/errcode"
)

// Erased is the value of an unwritten flash byte.
const Erased = 0xFF

// Device is a flat, byte-addressable non-volatile region. A successful
// WriteAt is durable when it returns.
type Device interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
}

// -----------------------------------------------------------------------------
// Partition
// -----------------------------------------------------------------------------

// Partition is a bounded window onto a Device.
type Partition struct {
	dev  Device
	off  int64
	size int64
}

func NewPartition(dev Device, off, size int64) (*Partition, error) {
	if off < 0 || size <= 0 || off+size > dev.Size() {
		return nil, errcode.Wrap(errcode.InvalidParams, "storage.partition", nil)
	}
	return &Partition{dev: dev, off: off, size: size}, nil
}

func (p *Partition) Size() int64 { return p.size }

func (p *Partition) ReadAt(b []byte, off int64) (int, error) {
	if err := p.check(len(b), off); err != nil {
		return 0, err
	}
	return p.dev.ReadAt(b, p.off+off)
}

func (p *Partition) WriteAt(b []byte, off int64) (int, error) {
	if err := p.check(len(b), off); err != nil {
		return 0, err
	}
	return p.dev.WriteAt(b, p.off+off)
}

func (p *Partition) check(n int, off int64) error {
	if off < 0 || off+int64(n) > p.size {
		return errcode.Overflow
	}
	return nil
}

// -----------------------------------------------------------------------------
// Mem
// -----------------------------------------------------------------------------

// Mem is a RAM-backed Device. Tests use FailWrites to model a flash fault.
type Mem struct {
	mu       sync.Mutex
	buf      []byte
	failErr  error
	failSkip int
	writes   int
}

func NewMem(size int) *Mem {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = Erased
	}
	return &Mem{buf: buf}
}

func (m *Mem) Size() int64 { return int64(len(m.buf)) }

func (m *Mem) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, errcode.Overflow
	}
	return copy(p, m.buf[off:]), nil
}

func (m *Mem) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, errcode.Overflow
	}
	if m.failErr != nil {
		if m.failSkip == 0 {
			return 0, m.failErr
		}
		m.failSkip--
	}
	m.writes++
	return copy(m.buf[off:], p), nil
}

// FailWrites makes every write after the next skip writes return err.
// A nil err clears the fault.
func (m *Mem) FailWrites(err error, skip int) {
	m.mu.Lock()
	m.failErr = err
	m.failSkip = skip
	m.mu.Unlock()
}

// Writes counts successful writes.
func (m *Mem) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
