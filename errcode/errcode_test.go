package errcode

import (
	"errors"
	"testing"
)

func TestOf(t *testing.T) {
	cause := errors.New("flash: write timeout")
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{Busy, Busy},
		{Wrap(Storage, "dfu.write", cause), Storage},
		{cause, Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("Of(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestEUnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(Storage, "dfu.write", cause)
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to see the cause")
	}
	if got, want := e.Error(), "dfu.write: storage: boom"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	for _, c := range []Code{OK, OutOfOrder, Overflow, Protocol, Storage, DigestMismatch, InvalidParams, FailedState} {
		if got := FromIndex(c.Index()); got != c {
			t.Fatalf("FromIndex(Index(%q)) = %q", c, got)
		}
	}
	if Busy.Index() != Error.Index() {
		t.Fatal("codes outside the wire table must map to Error")
	}
	if FromIndex(200) != Error {
		t.Fatal("unknown index must map to Error")
	}
}
