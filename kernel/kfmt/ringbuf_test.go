package kfmt

import (
	"io"
	"io/ioutil"
	"testing"
)

func TestRingBufferReadWrite(t *testing.T) {
	var rb ringBuffer

	if _, err := rb.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected read of empty buffer to return io.EOF; got %v", err)
	}

	payload := "the quick brown fox jumps over the lazy dog"
	if n, err := rb.Write([]byte(payload)); n != len(payload) || err != nil {
		t.Fatalf("expected write to return (%d, nil); got (%d, %v)", len(payload), n, err)
	}

	got, err := ioutil.ReadAll(&rb)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Fatalf("expected to read back %q; got %q", payload, string(got))
	}
}

func TestRingBufferOverwritesOldestData(t *testing.T) {
	var rb ringBuffer

	// Overfill the buffer so the write index wraps past the read index.
	big := make([]byte, ringBufferSize+16)
	for i := range big {
		big[i] = byte('a' + (i % 26))
	}
	rb.Write(big)

	got, err := ioutil.ReadAll(&rb)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) >= len(big) {
		t.Fatalf("expected oldest data to be dropped; read %d bytes", len(got))
	}

	// The retained bytes must be the tail of the written data.
	exp := big[len(big)-len(got):]
	for i := range got {
		if got[i] != exp[i] {
			t.Fatalf("byte %d: expected %q; got %q", i, exp[i], got[i])
		}
	}
}
