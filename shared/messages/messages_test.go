package messages

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	in := Envelope{Kind: 3, From: 42, Payload: []byte{1, 2, 3, 4}}

	frame, err := Marshal(TagEnvelope, in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	tag, body, err := Split(frame)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if tag != TagEnvelope {
		t.Fatalf("tag = %d, want TagEnvelope", tag)
	}

	var out Envelope
	if err := Unmarshal(body, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Kind != in.Kind || out.From != in.From || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestSplitEmptyFrame(t *testing.T) {
	if _, _, err := Split(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestWelcomeRoundTrip(t *testing.T) {
	frame, err := Marshal(TagWelcome, Welcome{NetworkID: 7, Peers: []uint64{1, 2}, RelayName: "relay"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	tag, body, err := Split(frame)
	if err != nil || tag != TagWelcome {
		t.Fatalf("Split: tag=%d err=%v", tag, err)
	}
	var w Welcome
	if err := Unmarshal(body, &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if w.NetworkID != 7 || len(w.Peers) != 2 || w.RelayName != "relay" {
		t.Fatalf("round trip mismatch: %+v", w)
	}
}
