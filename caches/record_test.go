package caches

import (
	"errors"
	"testing"
	"time"
)

func TestRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "image bytes", data: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}},
		{name: "empty body", data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeRecord(tt.data, time.Now())
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			got, err := DecodeRecord(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if string(got) != string(tt.data) {
				t.Errorf("expected %q, got %q", tt.data, got)
			}
		})
	}
}

func TestDecodeRecordCorrupt(t *testing.T) {
	b, err := EncodeRecord([]byte("payload"), time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "garbage", input: []byte("not a record")},
		{name: "truncated", input: b[:len(b)/2]},
		{name: "flipped payload byte", input: flipByte(b, []byte("payload"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRecord(tt.input); !errors.Is(err, ErrCorruptItem) {
				t.Errorf("expected ErrCorruptItem, got %v", err)
			}
		})
	}
}

// flipByte returns a copy of b with the first byte of needle altered.
func flipByte(b, needle []byte) []byte {
	out := append([]byte(nil), b...)
	for i := 0; i+len(needle) <= len(out); i++ {
		if string(out[i:i+len(needle)]) == string(needle) {
			out[i] ^= 0xff
			return out
		}
	}
	return out
}

func TestValidationErrorIs(t *testing.T) {
	var err error = ValidationError{Reason: "nil client"}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ValidationError to match ErrValidation")
	}
}
