package dfu

import (
	"encoding/binary"
	"hash/crc32"

	"presenter-fw/errcode"
	"presenter-fw/storage"
	"presenter-fw/types"
)

// Store is the non-volatile side of an update: the image region plus a
// small state record the bootloader and the next boot read back.
type Store interface {
	WriteAt(p []byte, off int64) (int, error)
	ReadAt(p []byte, off int64) (int, error)
	Capacity() int64

	LoadState() (Record, error)
	SaveState(r Record) error
	// MarkReady commits a verified image of length bytes for swap.
	MarkReady(length uint32) error
}

// Record is the persisted coordinator state.
type Record struct {
	State  types.UpdateState
	Reason errcode.Code
	Offset uint32
	Length uint32
}

const (
	recordMagic = 0x44465531 // "DFU1"
	recordSize  = 20
)

var errCorrupt = errcode.Wrap(errcode.Storage, "dfu.record", nil)

func (r Record) encode() []byte {
	var b [recordSize]byte
	binary.LittleEndian.PutUint32(b[0:4], recordMagic)
	b[4] = byte(r.State)
	if r.State == types.StateFailed {
		b[5] = r.Reason.Index()
	}
	binary.LittleEndian.PutUint32(b[8:12], r.Offset)
	binary.LittleEndian.PutUint32(b[12:16], r.Length)
	binary.LittleEndian.PutUint32(b[16:20], crc32.ChecksumIEEE(b[:16]))
	return b[:]
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordSize ||
		binary.LittleEndian.Uint32(b[0:4]) != recordMagic ||
		binary.LittleEndian.Uint32(b[16:20]) != crc32.ChecksumIEEE(b[:16]) ||
		b[4] > byte(types.StateFailed) {
		return Record{}, errCorrupt
	}
	r := Record{
		State:  types.UpdateState(b[4]),
		Offset: binary.LittleEndian.Uint32(b[8:12]),
		Length: binary.LittleEndian.Uint32(b[12:16]),
	}
	if r.State == types.StateFailed {
		r.Reason = errcode.FromIndex(b[5])
	}
	return r, nil
}

// -----------------------------------------------------------------------------
// Flash-backed store
// -----------------------------------------------------------------------------

// FlashStore lays the image and the state record out on one device:
// [start, start+imageSize) for the image, followed by stateSize bytes for
// the record.
type FlashStore struct {
	image *storage.Partition
	state *storage.Partition
}

func NewFlashStore(dev storage.Device, start, imageSize, stateSize int64) (*FlashStore, error) {
	if stateSize < recordSize {
		return nil, errcode.Wrap(errcode.InvalidParams, "dfu.store", nil)
	}
	img, err := storage.NewPartition(dev, start, imageSize)
	if err != nil {
		return nil, err
	}
	st, err := storage.NewPartition(dev, start+imageSize, stateSize)
	if err != nil {
		return nil, err
	}
	return &FlashStore{image: img, state: st}, nil
}

func (s *FlashStore) WriteAt(p []byte, off int64) (int, error) { return s.image.WriteAt(p, off) }
func (s *FlashStore) ReadAt(p []byte, off int64) (int, error)  { return s.image.ReadAt(p, off) }
func (s *FlashStore) Capacity() int64                          { return s.image.Size() }

// LoadState returns Idle for an erased or corrupt record.
func (s *FlashStore) LoadState() (Record, error) {
	var b [recordSize]byte
	if _, err := s.state.ReadAt(b[:], 0); err != nil {
		return Record{}, err
	}
	r, err := decodeRecord(b[:])
	if err != nil {
		return Record{State: types.StateIdle}, nil
	}
	return r, nil
}

func (s *FlashStore) SaveState(r Record) error {
	_, err := s.state.WriteAt(r.encode(), 0)
	return err
}

func (s *FlashStore) MarkReady(length uint32) error {
	return s.SaveState(Record{State: types.StateReadyToSwap, Offset: length, Length: length})
}
