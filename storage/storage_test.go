package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"presenter-fw/errcode"
)

func TestMemStartsErased(t *testing.T) {
	m := NewMem(16)
	b := make([]byte, 16)
	if _, err := m.ReadAt(b, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(b, bytes.Repeat([]byte{Erased}, 16)) {
		t.Fatalf("not erased: %x", b)
	}
}

func TestPartitionBounds(t *testing.T) {
	m := NewMem(64)
	p, err := NewPartition(m, 16, 32)
	if err != nil {
		t.Fatalf("NewPartition: %v", err)
	}
	if _, err := p.WriteAt([]byte{1, 2, 3}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	raw := make([]byte, 3)
	_, _ = m.ReadAt(raw, 16)
	if !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Fatalf("partition offset not applied: %x", raw)
	}
	if _, err := p.WriteAt(make([]byte, 4), 30); err != errcode.Overflow {
		t.Fatalf("write past end: err = %v", err)
	}
	if _, err := NewPartition(m, 48, 32); err == nil {
		t.Fatal("partition beyond device accepted")
	}
}

func TestMemFailWrites(t *testing.T) {
	m := NewMem(8)
	boom := errors.New("program failed")
	m.FailWrites(boom, 1)
	if _, err := m.WriteAt([]byte{1}, 0); err != nil {
		t.Fatalf("skipped write failed: %v", err)
	}
	if _, err := m.WriteAt([]byte{1}, 1); err != boom {
		t.Fatalf("err = %v, want injected fault", err)
	}
	m.FailWrites(nil, 0)
	if _, err := m.WriteAt([]byte{1}, 1); err != nil {
		t.Fatalf("write after clear: %v", err)
	}
	if m.Writes() != 2 {
		t.Fatalf("writes = %d", m.Writes())
	}
}

func TestFilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	f, err := OpenFile(path, 32)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteAt([]byte("dfu"), 4); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	f, err = OpenFile(path, 32)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	b := make([]byte, 5)
	if _, err := f.ReadAt(b, 3); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(b, []byte{Erased, 'd', 'f', 'u', Erased}) {
		t.Fatalf("got %x", b)
	}
}
