package types

import (
	"encoding/binary"

	"presenter-fw/errcode"
)

// ------------------------
// Firmware update events
// ------------------------

// UpdateOp tags an UpdateEvent.
type UpdateOp uint8

const (
	UpdateBegin  UpdateOp = 0x01
	UpdateAbort  UpdateOp = 0x02
	UpdateVerify UpdateOp = 0x03
	UpdateQuery  UpdateOp = 0x04
	UpdateChunk  UpdateOp = 0x10 // data characteristic, never a control opcode

	// UpdateInvalid stands in for a write that did not parse. The
	// coordinator treats it as a protocol violation.
	UpdateInvalid UpdateOp = 0xFF
)

func (o UpdateOp) String() string {
	switch o {
	case UpdateBegin:
		return "begin"
	case UpdateAbort:
		return "abort"
	case UpdateVerify:
		return "verify"
	case UpdateQuery:
		return "status"
	case UpdateChunk:
		return "chunk"
	case UpdateInvalid:
		return "invalid"
	}
	return "unknown"
}

// DigestSize is the length of a BLAKE2s-256 image digest.
const DigestSize = 32

// UpdateEvent is one unit of update-protocol work. Only the fields relevant
// to Op are set.
type UpdateEvent struct {
	Op     UpdateOp
	Length uint32 // Begin
	Offset uint32 // Chunk
	Data   []byte // Chunk
	Digest []byte // Verify
}

// ParseControl decodes a write to the firmware control characteristic.
//
//	01 <len u32>      begin
//	02                abort
//	03 <digest[32]>   verify
//	04                status refresh
func ParseControl(b []byte) (UpdateEvent, error) {
	if len(b) == 0 {
		return UpdateEvent{}, errcode.InvalidPayload
	}
	op := UpdateOp(b[0])
	body := b[1:]
	switch op {
	case UpdateBegin:
		if len(body) != 4 {
			return UpdateEvent{}, errcode.InvalidPayload
		}
		return UpdateEvent{Op: op, Length: binary.LittleEndian.Uint32(body)}, nil
	case UpdateAbort, UpdateQuery:
		return UpdateEvent{Op: op}, nil
	case UpdateVerify:
		if len(body) != DigestSize {
			return UpdateEvent{}, errcode.InvalidPayload
		}
		return UpdateEvent{Op: op, Digest: append([]byte(nil), body...)}, nil
	}
	return UpdateEvent{}, errcode.Unsupported
}

// ParseData decodes a write to the firmware data characteristic:
// offset u32 little-endian followed by the chunk bytes.
func ParseData(b []byte) (UpdateEvent, error) {
	if len(b) <= 4 {
		return UpdateEvent{}, errcode.InvalidPayload
	}
	return UpdateEvent{
		Op:     UpdateChunk,
		Offset: binary.LittleEndian.Uint32(b[:4]),
		Data:   append([]byte(nil), b[4:]...),
	}, nil
}

// Control encodes e for the control characteristic (peer side, tests, simulator).
func (e UpdateEvent) Control() []byte {
	switch e.Op {
	case UpdateBegin:
		b := []byte{byte(e.Op), 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(b[1:], e.Length)
		return b
	case UpdateVerify:
		return append([]byte{byte(e.Op)}, e.Digest...)
	}
	return []byte{byte(e.Op)}
}

// Frame encodes a chunk for the data characteristic.
func (e UpdateEvent) Frame() []byte {
	b := make([]byte, 4+len(e.Data))
	binary.LittleEndian.PutUint32(b, e.Offset)
	copy(b[4:], e.Data)
	return b
}

// ------------------------
// Coordinator state
// ------------------------

type UpdateState uint8

const (
	StateIdle UpdateState = iota
	StateReceiving
	StateVerifying
	StateReadyToSwap
	StateFailed
)

func (s UpdateState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateVerifying:
		return "verifying"
	case StateReadyToSwap:
		return "ready_to_swap"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// UpdateStatus is a snapshot of the Coordinator state. Offset and Length are
// meaningful in Receiving and Verifying; Reason only in Failed.
type UpdateStatus struct {
	State  UpdateState  `yaml:"state"`
	Offset uint32       `yaml:"offset"`
	Length uint32       `yaml:"length"`
	Reason errcode.Code `yaml:"reason,omitempty"`
	TSms   int64        `yaml:"ts_ms"`
}

// Bytes encodes the status characteristic:
// state u8, reason u8, offset u32 LE, length u32 LE.
func (s UpdateStatus) Bytes() []byte {
	var b [10]byte
	b[0] = byte(s.State)
	if s.State == StateFailed {
		b[1] = s.Reason.Index()
	}
	binary.LittleEndian.PutUint32(b[2:6], s.Offset)
	binary.LittleEndian.PutUint32(b[6:10], s.Length)
	return b[:]
}

// DecodeUpdateStatus is the inverse of Bytes (TSms is not carried).
func DecodeUpdateStatus(b []byte) (UpdateStatus, bool) {
	if len(b) != 10 || b[0] > byte(StateFailed) {
		return UpdateStatus{}, false
	}
	s := UpdateStatus{
		State:  UpdateState(b[0]),
		Offset: binary.LittleEndian.Uint32(b[2:6]),
		Length: binary.LittleEndian.Uint32(b[6:10]),
	}
	if s.State == StateFailed {
		s.Reason = errcode.FromIndex(b[1])
	}
	return s, true
}
