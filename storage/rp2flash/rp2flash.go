//go:build rp2040 || rp2350

// Package rp2flash exposes the on-board QSPI flash above the program image
// as a storage.Device. Writes are read-modify-erase-write per erase block.
package rp2flash

import (
	"machine"

	"presenter-fw/errcode"
)

type Device struct {
	blk   []byte
	bsize int64
}

func New() *Device {
	bs := machine.Flash.EraseBlockSize()
	return &Device{blk: make([]byte, bs), bsize: bs}
}

func (d *Device) Size() int64 { return machine.Flash.Size() }

func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.Size() {
		return 0, errcode.Overflow
	}
	return machine.Flash.ReadAt(p, off)
}

func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.Size() {
		return 0, errcode.Overflow
	}
	written := 0
	for written < len(p) {
		cur := off + int64(written)
		base := cur - cur%d.bsize
		if _, err := machine.Flash.ReadAt(d.blk, base); err != nil {
			return written, err
		}
		n := copy(d.blk[cur-base:], p[written:])
		if err := machine.Flash.EraseBlocks(base/d.bsize, 1); err != nil {
			return written, err
		}
		if _, err := machine.Flash.WriteAt(d.blk, base); err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}
