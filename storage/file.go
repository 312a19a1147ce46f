//go:build !tinygo

package storage

import (
	"bytes"
	"os"

	"presenter-fw/errcode"
)

// File is a Device backed by a host file, used by the host simulator so an
// update survives a restart. Every write is followed by fsync.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens or creates path and pads it to size with erased bytes.
func OpenFile(path string, size int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if cur := st.Size(); cur < size {
		pad := bytes.Repeat([]byte{Erased}, int(size-cur))
		if _, err := f.WriteAt(pad, cur); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &File{f: f, size: size}, nil
}

func (d *File) Size() int64 { return d.size }

func (d *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, errcode.Overflow
	}
	return d.f.ReadAt(p, off)
}

func (d *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, errcode.Overflow
	}
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, d.f.Sync()
}

func (d *File) Close() error { return d.f.Close() }
