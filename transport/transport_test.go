package transport

import (
	"testing"
	"time"

	"presenter-fw/errcode"
	"presenter-fw/types"
)

func TestDecodeWriteInterval(t *testing.T) {
	ev, err := DecodeWrite(CharInterval, []byte{2, 0, 0, 0})
	if err != nil {
		t.Fatalf("DecodeWrite: %v", err)
	}
	if ev.Kind != EventInterval || ev.Interval != 2*time.Second {
		t.Fatalf("got %+v", ev)
	}
	if _, err := DecodeWrite(CharInterval, []byte{1, 2, 3}); err != errcode.InvalidPayload {
		t.Fatalf("3-byte interval: err = %v", err)
	}
}

func TestDecodeWriteMalformedUpdate(t *testing.T) {
	ev, err := DecodeWrite(CharUpdateControl, []byte{0x7E})
	if err != nil {
		t.Fatalf("DecodeWrite: %v", err)
	}
	if ev.Kind != EventUpdate || ev.Update.Op != types.UpdateInvalid {
		t.Fatalf("got %+v", ev)
	}
	ev, _ = DecodeWrite(CharUpdateData, []byte{0, 0, 0, 0, 0xAA})
	if ev.Update.Op != types.UpdateChunk || len(ev.Update.Data) != 1 {
		t.Fatalf("chunk: %+v", ev.Update)
	}
}

func TestDecodeWriteReadOnly(t *testing.T) {
	if _, err := DecodeWrite(CharTemperature, []byte{1, 0}); err != errcode.Unsupported {
		t.Fatalf("err = %v", err)
	}
}

func TestSubscribeEvent(t *testing.T) {
	if ev, ok := SubscribeEvent(CharPresses, true); !ok || ev.Kind != EventPressNotify || !ev.Notify {
		t.Fatalf("presses: %+v %v", ev, ok)
	}
	if _, ok := SubscribeEvent(CharUpdateStatus, true); ok {
		t.Fatal("status subscription should not surface")
	}
}
